package ics

import (
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/text/unicode/norm"
)

const (
	uidDateLayout = "20060102"
	uidDigestMod  = 100000
)

// EventUID derives the UID "YYYYMMDD-<digest>@<domain>" for an event.
//
// The digest is xxhash64 of the NFC-normalized name, reduced modulo 100000,
// so it is stable across runs and processes. Only the name is hashed; two
// different names on the same date collide roughly once in 100000 pairs.
func EventUID(date time.Time, name, domain string) string {
	return date.Format(uidDateLayout) + "-" + strconv.FormatUint(nameDigest(name), 10) + "@" + domain
}

func nameDigest(name string) uint64 {
	return xxhash.Sum64String(norm.NFC.String(name)) % uidDigestMod
}
