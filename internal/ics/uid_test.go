package ics

import (
	"regexp"
	"testing"
	"time"
)

var uidPattern = regexp.MustCompile(`^\d{8}-\d{1,5}@[a-z.]+$`)

func TestEventUID(t *testing.T) {
	date := time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC)

	uid := EventUID(date, "Independence Day", "malayalam")
	if !uidPattern.MatchString(uid) {
		t.Fatalf("uid %q does not match %s", uid, uidPattern)
	}
	if uid[:9] != "20250815-" {
		t.Errorf("uid %q does not start with the date", uid)
	}

	if again := EventUID(date, "Independence Day", "malayalam"); again != uid {
		t.Errorf("uid not deterministic: %q != %q", again, uid)
	}

	next := EventUID(date.AddDate(0, 0, 1), "Independence Day", "malayalam")
	if next[9:] != uid[9:] {
		t.Errorf("digest depends on date: %q vs %q", uid, next)
	}
}

func TestEventUIDNormalizesName(t *testing.T) {
	date := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	composed := EventUID(date, "F\u00eate", "example.org")
	decomposed := EventUID(date, "Fe\u0302te", "example.org")
	if composed != decomposed {
		t.Errorf("canonically equal names produced %q and %q", composed, decomposed)
	}
}

func TestNameDigestBounded(t *testing.T) {
	names := []string{"", "a", "Onam", "വിഷു", "ചന്ദ്ര ഗ്രഹണം", "a very long festival name with many words in it"}
	for _, n := range names {
		if d := nameDigest(n); d >= uidDigestMod {
			t.Errorf("nameDigest(%q) = %d, out of range", n, d)
		}
	}
}

func TestParsedEventsShareUIDForSameInput(t *testing.T) {
	a, _, err := testParser.ParseLine("9-5 : Thiruvonam")
	if err != nil {
		t.Fatal(err)
	}
	b, _, err := testParser.ParseLine("  9-5 :   Thiruvonam ")
	if err != nil {
		t.Fatal(err)
	}
	if a.UID != b.UID {
		t.Errorf("same date and name gave %q and %q", a.UID, b.UID)
	}
}
