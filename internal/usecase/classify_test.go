package usecase

import (
	"testing"

	"FinResolve/internal/service/providers"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		term, query string
		want        AssetHint
	}{
		{"PEPE", "is the pepe memecoin pumping", HintCrypto},
		{"AAPL", "apple stock earnings", HintStock},
		{"BTCUSDT", "", HintCrypto},
		{"BRK.B", "", HintStock},
		{"AAPL", "", HintUnknown},
		{"ARB", "arbitrum price", HintCrypto},
		{"0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", "", HintContract},
		{"  ", "crypto", HintUnknown},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Classify(tc.term, tc.query), "%s / %q", tc.term, tc.query)
	}
}

func TestIsCryptoQuery(t *testing.T) {
	assert.True(t, IsCryptoQuery([]string{"AAPL", "SOL"}, "solana token"))
	assert.False(t, IsCryptoQuery([]string{"AAPL", "MSFT"}, "compare these"))
}

func TestIsValidTicker(t *testing.T) {
	for _, s := range []string{"AAPL", "BRK.B", "BTC/USDT", "EURUSD", "ESZ24"} {
		assert.True(t, IsValidTicker(s), s)
	}
	for _, s := range []string{"apple", "TOOLONGTICKERX", "12", ""} {
		assert.False(t, IsValidTicker(s), s)
	}
}

func TestPreprocessQuery(t *testing.T) {
	assert.Equal(t, []string{"AAPL"}, PreprocessQuery("What's the price of AAPL today?"))
	assert.Equal(t, []string{"BTC", "ETH"}, PreprocessQuery("show me BTC and ETH and btc"))

	addr := "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
	got := PreprocessQuery("info on " + addr)
	assert.Contains(t, got, addr)

	assert.Equal(t, []string{"a"}, PreprocessQuery("a?"))
	assert.Empty(t, PreprocessQuery("   "))
}

func TestDetectChains(t *testing.T) {
	assert.Equal(t, []string{providers.ChainEthereum, providers.ChainBSC, providers.ChainPolygon}, DetectChains("dogwifhat price"))
	assert.Equal(t, []string{providers.ChainSolana}, DetectChains("bonk on solana"))
	assert.Equal(t, []string{providers.ChainArbitrum, providers.ChainEthereum}, DetectChains("bridge eth to arbitrum"))
}
