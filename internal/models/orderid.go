package models

import (
	"crypto/rand"
	"strconv"
	"time"
)

const (
	orderIDPrefix    = "ORD"
	orderIDSuffixLen = 5
	base36           = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// NewOrderID generates an order identifier from a millisecond timestamp and a
// random base-36 suffix, e.g. "ORD1756368000123K7Q2M". The timestamp keeps
// ids roughly ordered; the suffix disambiguates concurrent issuance. Callers
// persist the id under a unique constraint and regenerate on collision.
func NewOrderID(now time.Time) string {
	var b [orderIDSuffixLen]byte
	if _, err := rand.Read(b[:]); err != nil {
		// Clock-derived suffix when the random source is unavailable.
		return orderIDPrefix + strconv.FormatInt(now.UnixMilli(), 10) +
			strconv.FormatInt(int64(now.Nanosecond()%100000), 10)
	}
	suffix := make([]byte, orderIDSuffixLen)
	for i, v := range b {
		suffix[i] = base36[int(v)%len(base36)]
	}
	return orderIDPrefix + strconv.FormatInt(now.UnixMilli(), 10) + string(suffix)
}
