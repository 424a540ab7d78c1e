package tron

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainops/tronledger/internal/domain"
)

// Known mainnet pair: the USDT TRC-20 contract address in both encodings.
const (
	usdtBase58 = "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"
	usdtHex    = "41a614f803b6fd780986a42c78ec9c7f77e6ded13c"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantHex string
		wantErr error
	}{
		{name: "base58", in: usdtBase58, wantHex: usdtHex},
		{name: "hex lower", in: usdtHex, wantHex: usdtHex},
		{name: "hex upper", in: strings.ToUpper(usdtHex), wantHex: usdtHex},
		{name: "hex with 0x prefix", in: "0x" + usdtHex, wantHex: usdtHex},
		{name: "surrounding whitespace", in: "  " + usdtBase58 + " ", wantHex: usdtHex},
		{
			name:    "zero address",
			in:      "T9yD14Nj9j7xAB4dbGeiX9h8unkKHxuWwb",
			wantHex: "410000000000000000000000000000000000000000",
		},
		{
			name:    "corrupted base58 checksum",
			in:      usdtBase58[:len(usdtBase58)-1] + "u",
			wantErr: domain.ErrChecksum,
		},
		{name: "empty", in: "", wantErr: domain.ErrBadAddress},
		{name: "blank", in: "   ", wantErr: domain.ErrBadAddress},
		{name: "hex without version prefix", in: "a614f803b6fd780986a42c78ec9c7f77e6ded13c", wantErr: domain.ErrBadAddress},
		{name: "hex too short", in: "41a614f8", wantErr: domain.ErrBadAddress},
		{name: "not an address at all", in: "0xzzzz", wantErr: domain.ErrBadAddress},
		{name: "base58 too short", in: "Tiny", wantErr: domain.ErrBadAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, err := Canonicalize(tt.in)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantHex, addr.Hex())
		})
	}
}

func TestAddress_RoundTrip(t *testing.T) {
	fromB58, err := Canonicalize(usdtBase58)
	require.NoError(t, err)
	fromHex, err := Canonicalize(usdtHex)
	require.NoError(t, err)

	assert.Equal(t, fromB58, fromHex)
	assert.Equal(t, usdtBase58, fromHex.Base58())
	assert.Equal(t, usdtHex, fromB58.Hex())
	assert.Equal(t, usdtHex, fromB58.String())

	// Canonical hex re-canonicalizes to itself.
	again, err := Canonicalize(fromB58.Hex())
	require.NoError(t, err)
	assert.Equal(t, fromB58, again)
}
