package qrlogin

import (
	"math/big"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bigDeriveToken accumulates with unbounded precision and masks once.
func bigDeriveToken(secret string) uint32 {
	e := new(big.Int)
	tmp := new(big.Int)
	for _, c := range secret {
		tmp.Lsh(e, 5)
		tmp.Add(tmp, big.NewInt(int64(c)))
		e.Add(e, tmp)
	}
	e.And(e, big.NewInt(kTokenMask))
	return uint32(e.Uint64())
}

func TestDeriveToken_KnownValues(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint32(0), DeriveToken(""))
	assert.Equal(t, uint32(97), DeriveToken("a"))
	// ((97*33)+98)*33 + 99
	assert.Equal(t, uint32(108966), DeriveToken("abc"))
	// Runes, not bytes: U+4E8C is one step.
	assert.Equal(t, uint32(0x4E8C), DeriveToken("二"))
}

func TestDeriveToken_MatchesUnboundedReference(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-*_二维码"
	runes := []rune(alphabet)

	inputs := []string{
		strings.Repeat("z", 512),
		"Nh0GFhlJuWw6R8fW9lzN-mqj3Q4xM2KCbJfHTL6mDRmqNwkZ8HmK0b4WQ9kKFiz7",
	}
	for i := 0; i < 200; i++ {
		n := 1 + rng.Intn(128)
		var sb strings.Builder
		for j := 0; j < n; j++ {
			sb.WriteRune(runes[rng.Intn(len(runes))])
		}
		inputs = append(inputs, sb.String())
	}

	for _, in := range inputs {
		got := DeriveToken(in)
		require.Equal(t, bigDeriveToken(in), got, "secret %q", in)
		require.LessOrEqual(t, got, uint32(kTokenMask))
		require.Equal(t, got, DeriveToken(in), "not deterministic for %q", in)
	}
}

func TestNewQRCode_DerivesDecimalToken(t *testing.T) {
	t.Parallel()

	qr := NewQRCode(".qrcode.png", "abc")
	assert.Equal(t, "108966", qr.Token)
	assert.Equal(t, "abc", qr.Secret)
	assert.Equal(t, ".qrcode.png", qr.ImagePath)
}
