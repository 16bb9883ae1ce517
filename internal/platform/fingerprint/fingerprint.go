// Package fingerprint computes the short, deterministic content digest used
// to decorate audit entries, consent grants and integrity proofs.
//
// The digest is a DJB2 variant over UTF-16 code units. It is NOT
// cryptographic: two equal digests mean "same logical input" and nothing
// stronger. It must never be presented as tamper-proof.
package fingerprint

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"
)

// Seed is the DJB2 initial value.
const Seed uint32 = 5381

// Sum32 folds s into a 32-bit DJB2 value: h = (h*33) XOR c for each UTF-16
// code unit c, with unsigned wraparound.
func Sum32(s string) uint32 {
	h := Seed
	for _, c := range utf16.Encode([]rune(s)) {
		h = (h * 33) ^ uint32(c)
	}
	return h
}

// Digest renders Sum32(s) as 8 lowercase hex digits, repeated four times and
// prefixed with "0x". The result only looks like a long hash.
func Digest(s string) string {
	return "0x" + strings.Repeat(fmt.Sprintf("%08x", Sum32(s)), 4)
}

// TransactionID is Digest(seed + "-" + now in unix millis). Two calls with the
// same seed differ unless they land in the same millisecond, so the result is
// only a display reference and never an integrity value.
func TransactionID(seed string, now time.Time) string {
	return Digest(seed + "-" + strconv.FormatInt(now.UnixMilli(), 10))
}

// Equal reports whether two digests were produced from the same input.
func Equal(a, b string) bool {
	return a != "" && a == b
}
