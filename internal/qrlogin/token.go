package qrlogin

import "strconv"

const kTokenMask = 0x7FFFFFFF

// DeriveToken computes the ptqrtoken for a qrsig value: a times-33 string hash
// over the secret's runes, masked to 31 bits.
//
// The accumulator wraps at 64 bits. Every step is ring arithmetic and the
// final mask is a reduction mod 2^31, so the result is identical to running
// the accumulation with unbounded precision and masking once at the end.
func DeriveToken(secret string) uint32 {
	var e uint64
	for _, c := range secret {
		e = (e << 5) + e + uint64(c)
	}
	return uint32(e & kTokenMask)
}

func formatToken(token uint32) string {
	return strconv.FormatUint(uint64(token), 10)
}
