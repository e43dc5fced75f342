package morton

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		a uint32
		b uint32
		z uint64
	}{
		{a: 0b0, b: 0b0, z: 0b0},
		{a: 0b1, b: 0b0, z: 0b01},
		{a: 0b0, b: 0b1, z: 0b10},
		{a: 0b1, b: 0b1, z: 0b11},
		{a: 0b11, b: 0b0, z: 0b0101},
		{a: 0b0, b: 0b11, z: 0b1010},
		{a: 0b10, b: 0b01, z: 0b0110},
		{a: 0b1111111111111111, b: 0b0, z: 0b01010101010101010101010101010101},
		{a: 0xffffffff, b: 0x0, z: 0x5555555555555555},
		{a: 0xffffffff, b: 0xffffffff, z: 0xffffffffffffffff},
	}
	for _, tt := range tests {
		name := fmt.Sprintf("Encode(%b,%b)", tt.a, tt.b)
		t.Run(name, func(t *testing.T) {
			got := Encode(tt.a, tt.b)
			require.Equalf(t, tt.z, got, "%032b and %032b should interleave into %064b, got %064b", tt.a, tt.b, tt.z, got)
		})
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		z uint64
		a uint32
		b uint32
	}{
		{z: 0b0, a: 0b0, b: 0b0},
		{z: 0b11, a: 0b1, b: 0b1},
		{z: 0b0101, a: 0b11, b: 0b0},
		{z: 0b0110, a: 0b10, b: 0b01},
		{z: 0x5555555555555555, a: 0xffffffff, b: 0x0},
	}
	for _, tt := range tests {
		name := fmt.Sprintf("Decode(%b)", tt.z)
		t.Run(name, func(t *testing.T) {
			gotA, gotB := Decode(tt.z)
			require.Equal(t, [2]uint32{tt.a, tt.b}, [2]uint32{gotA, gotB})
		})
	}
}

func TestRoundTrip(t *testing.T) {
	for a := uint32(0); a < 32; a++ {
		for b := uint32(0); b < 32; b++ {
			gotA, gotB := Decode(Encode(a, b))
			require.Equal(t, a, gotA)
			require.Equal(t, b, gotB)
		}
	}
}
