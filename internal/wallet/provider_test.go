package wallet

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	avatarerr "github.com/mrz1836/pharos-avatars/pkg/errors"
)

func testParams() ChainParams {
	return ChainParams{
		ChainID:   688688,
		ChainName: "Pharos Testnet",
		RPCURLs:   []string{"https://testnet.dplabs-internal.com"},
		Currency:  Currency{Name: "Pharos", Symbol: "PHRS", Decimals: 18},
	}
}

func TestChainParamsValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(p *ChainParams)
		field  string
	}{
		{"valid", func(*ChainParams) {}, ""},
		{"zero chain id", func(p *ChainParams) { p.ChainID = 0 }, "chainId"},
		{"blank name", func(p *ChainParams) { p.ChainName = "  " }, "chainName"},
		{"no rpc", func(p *ChainParams) { p.RPCURLs = nil }, "rpcUrls"},
		{"bad scheme", func(p *ChainParams) { p.RPCURLs = []string{"ftp://node"} }, "rpcUrls"},
		{"websocket ok", func(p *ChainParams) { p.RPCURLs = []string{"wss://node"} }, ""},
		{"no symbol", func(p *ChainParams) { p.Currency.Symbol = "" }, "nativeCurrency.symbol"},
		{"decimals", func(p *ChainParams) { p.Currency.Decimals = 6 }, "nativeCurrency.decimals"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := testParams()
			tt.mutate(&p)
			err := p.Validate()
			if tt.field == "" {
				require.NoError(t, err)
				return
			}
			var ae *avatarerr.AvatarError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, tt.field, ae.Details["field"])
		})
	}
}

func TestMapError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code int
		want *avatarerr.AvatarError
	}{
		{CodeUserRejected, avatarerr.ErrUserRejected},
		{CodeUnauthorized, avatarerr.ErrUnauthorized},
		{CodeUnrecognizedChain, avatarerr.ErrNetworkMismatch},
		{CodeDisconnected, avatarerr.ErrNetworkError},
		{CodeUnsupportedMethod, avatarerr.ErrGeneral},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.code), func(t *testing.T) {
			t.Parallel()
			pe := NewProviderError(tt.code, MethodSwitchChain, "nope")
			mapped := MapError(fmt.Errorf("outer: %w", pe))
			require.ErrorIs(t, mapped, tt.want)
			assert.Equal(t, tt.code, ErrorCode(mapped))
		})
	}

	assert.NoError(t, MapError(nil))
	plain := fmt.Errorf("boom")
	assert.Same(t, plain, MapError(plain))
}

func TestProviderErrorMessage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "eth_requestAccounts: user rejected the request (code 4001)",
		NewProviderError(CodeUserRejected, MethodRequestAccounts, "user rejected the request").Error())
	assert.Equal(t, "disconnected (code 4900)", NewProviderError(CodeDisconnected, "", "disconnected").Error())
	assert.True(t, IsCode(NewProviderError(CodeUnrecognizedChain, "", "x"), CodeUnrecognizedChain))
	assert.False(t, IsCode(nil, CodeUnrecognizedChain))
}
