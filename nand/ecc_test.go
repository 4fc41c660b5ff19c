package nand

import "testing"

func eccRegion(seed byte) []byte {
	data := make([]byte, 256)
	for i := range data {
		data[i] = seed + byte(i*7)
	}
	return data
}

func TestEccErasedRegion(t *testing.T) {
	erased := make([]byte, 256)
	for i := range erased {
		erased[i] = 0xFF
	}
	code := EccCompute(erased)
	if code != [3]byte{0xFF, 0xFF, 0xFF} {
		t.Fatalf("ECC of erased region = %x, want ff ff ff", code)
	}
}

func TestEccClean(t *testing.T) {
	data := eccRegion(0x5A)
	stored := EccCompute(data)
	if got := EccCheck(stored, EccCompute(data)); got != EccOK {
		t.Fatalf("clean region checks as %v, want EccOK", got)
	}
}

func TestEccSingleBitError(t *testing.T) {
	data := eccRegion(0x11)
	stored := EccCompute(data)
	data[100] ^= 0x08
	if got := EccCheck(stored, EccCompute(data)); got != EccCorrectable {
		t.Fatalf("single data-bit error checks as %v, want EccCorrectable", got)
	}
}

func TestEccErrorInStoredCode(t *testing.T) {
	data := eccRegion(0x33)
	stored := EccCompute(data)
	stored[1] ^= 0x10
	if got := EccCheck(stored, EccCompute(data)); got != EccCorrectable {
		t.Fatalf("single code-bit error checks as %v, want EccCorrectable", got)
	}
}

func TestEccDoubleBitError(t *testing.T) {
	data := eccRegion(0x77)
	stored := EccCompute(data)
	data[10] ^= 0x01
	data[200] ^= 0x40
	if got := EccCheck(stored, EccCompute(data)); got != EccUncorrectable {
		t.Fatalf("double-bit error checks as %v, want EccUncorrectable", got)
	}
}
