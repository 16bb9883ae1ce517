package fingerprint

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSum32_KnownValues(t *testing.T) {
	// h = 5381; "a" is 97: 5381*33 ^ 97 = 177573 ^ 97 = 177604
	assert.Equal(t, uint32(5381), Sum32(""))
	assert.Equal(t, uint32(177604), Sum32("a"))
	// "ab": 177604*33 ^ 98 = 5860932 ^ 98 = 5860902
	assert.Equal(t, uint32(5860902), Sum32("ab"))
}

func TestSum32_Wraparound(t *testing.T) {
	s := strings.Repeat("z", 64)
	h := Seed
	for i := 0; i < 64; i++ {
		h = h*33 ^ 'z'
	}
	assert.Equal(t, h, Sum32(s))
}

func TestSum32_UTF16CodeUnits(t *testing.T) {
	// U+1F600 is a surrogate pair, hashed as two code units.
	h := Seed
	h = h*33 ^ 0xD83D
	h = h*33 ^ 0xDE00
	assert.Equal(t, h, Sum32("\U0001F600"))
}

func TestDigest_Shape(t *testing.T) {
	d := Digest("a")
	assert.Len(t, d, 2+32)
	assert.True(t, strings.HasPrefix(d, "0x"))
	assert.Equal(t, "0x"+strings.Repeat("0002b5c4", 4), d)
	assert.Equal(t, "0x"+strings.Repeat("00001505", 4), Digest(""))
}

func TestDigest_Pure(t *testing.T) {
	inputs := []string{"", "PT-0001", "p-1-2026-01-01T00:00:00Z-critical", "Granted consent-HOSPITAL:Metro"}
	for _, in := range inputs {
		assert.Equal(t, Digest(in), Digest(in), "digest of %q must be stable", in)
	}
	assert.NotEqual(t, Digest("record-a"), Digest("record-b"))
}

func TestTransactionID(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	assert.Equal(t, Digest("seed-1700000000123"), TransactionID("seed", at))
	assert.Equal(t, TransactionID("seed", at), TransactionID("seed", at))
	assert.NotEqual(t, TransactionID("seed", at), TransactionID("seed", at.Add(time.Millisecond)))
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(Digest("x"), Digest("x")))
	assert.False(t, Equal(Digest("x"), Digest("y")))
	assert.False(t, Equal("", ""))
}
