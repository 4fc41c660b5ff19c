package nand

import "math/bits"

// Line/column parity ECC over a 256-byte region, SmartMedia style:
// 16 line-parity bits (one pair per byte-address bit), 6 column-parity
// bits (one pair per bit-address bit), stored inverted so an erased
// (all-0xFF) region carries an all-0xFF code.

// EccResult classifies a stored code against a freshly computed one.
type EccResult int

const (
	EccOK EccResult = iota
	EccCorrectable
	EccUncorrectable
)

// EccCompute returns the 3-byte parity code for a 256-byte region.
// Shorter input is treated as padded with 0xFF to 256 bytes.
func EccCompute(data []byte) [3]byte {
	var lp [8][2]byte // [bit of byte address][0=clear, 1=set]
	var colpar byte
	for i := 0; i < 256; i++ {
		b := byte(0xFF)
		if i < len(data) {
			b = data[i]
		}
		par := byte(bits.OnesCount8(b) & 1)
		for k := 0; k < 8; k++ {
			lp[k][(i>>k)&1] ^= par
		}
		colpar ^= b
	}
	var raw [3]byte
	for k := 0; k < 4; k++ {
		raw[0] |= lp[k][0] << (2 * k)
		raw[0] |= lp[k][1] << (2*k + 1)
		raw[1] |= lp[k+4][0] << (2 * k)
		raw[1] |= lp[k+4][1] << (2*k + 1)
	}
	for t := 0; t < 3; t++ {
		var cp [2]byte
		for b := 0; b < 8; b++ {
			cp[(b>>t)&1] ^= (colpar >> b) & 1
		}
		raw[2] |= cp[0] << (2 * t)
		raw[2] |= cp[1] << (2*t + 1)
	}
	return [3]byte{^raw[0], ^raw[1], ^raw[2] & 0xFF}
}

// EccCheck compares a stored code with one computed from the data read
// back. A zero syndrome is clean; exactly one syndrome bit means the
// stored code itself took the hit; one bit set in each parity pair is a
// single correctable data-bit error. Anything else is uncorrectable.
func EccCheck(stored, computed [3]byte) EccResult {
	syn := uint32(stored[0]^computed[0]) |
		uint32(stored[1]^computed[1])<<8 |
		uint32(stored[2]^computed[2])<<16
	syn &= 0x3FFFFF // 22 meaningful parity bits
	if syn == 0 {
		return EccOK
	}
	if bits.OnesCount32(syn) == 1 {
		return EccCorrectable
	}
	pairs := 0
	for p := 0; p < 11; p++ {
		pair := (syn >> (2 * p)) & 3
		if pair == 1 || pair == 2 {
			pairs++
		} else if pair == 3 {
			return EccUncorrectable
		}
	}
	if pairs == 11 {
		return EccCorrectable
	}
	return EccUncorrectable
}
