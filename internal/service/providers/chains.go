package providers

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/mr-tron/base58"
)

// Canonical chain names. They double as CoinGecko asset-platform ids.
const (
	ChainEthereum  = "ethereum"
	ChainBSC       = "binance-smart-chain"
	ChainPolygon   = "polygon-pos"
	ChainArbitrum  = "arbitrum-one"
	ChainOptimism  = "optimistic-ethereum"
	ChainBase      = "base"
	ChainSolana    = "solana"
	ChainAvalanche = "avalanche"
)

var evmAddressRe = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

var chainAliases = map[string]string{
	"eth":       ChainEthereum,
	"ethereum":  ChainEthereum,
	"mainnet":   ChainEthereum,
	"erc20":     ChainEthereum,
	"bsc":       ChainBSC,
	"bnb":       ChainBSC,
	"binance":   ChainBSC,
	"bep20":     ChainBSC,
	"polygon":   ChainPolygon,
	"matic":     ChainPolygon,
	"arbitrum":  ChainArbitrum,
	"arb":       ChainArbitrum,
	"optimism":  ChainOptimism,
	"op":        ChainOptimism,
	"base":      ChainBase,
	"solana":    ChainSolana,
	"sol":       ChainSolana,
	"spl":       ChainSolana,
	"avalanche": ChainAvalanche,
	"avax":      ChainAvalanche,
}

// moralisChains maps canonical chains to the ids the Moralis EVM API expects.
var moralisChains = map[string]string{
	ChainEthereum:  "eth",
	ChainBSC:       "bsc",
	ChainPolygon:   "polygon",
	ChainArbitrum:  "arbitrum",
	ChainOptimism:  "optimism",
	ChainBase:      "base",
	ChainAvalanche: "avalanche",
}

// chainPriority orders contract lookups, lower first.
var chainPriority = map[string]int{
	ChainEthereum:  1,
	ChainBSC:       2,
	ChainBase:      2,
	ChainPolygon:   3,
	ChainSolana:    3,
	ChainArbitrum:  4,
	ChainAvalanche: 4,
	ChainOptimism:  5,
}

// ChainPriority returns the lookup priority of chain. Unknown chains go last.
func ChainPriority(chain string) int {
	if p, ok := chainPriority[NormalizeChain(chain)]; ok {
		return p
	}
	return 99
}

// ContractChains picks the chains a contract lookup for address should try, by
// priority. Solana mints only go to solana. EVM addresses keep the detected chains
// that can hold them and use fallback when none can. Non-addresses get nil.
func ContractChains(address string, detected, fallback []string) []string {
	switch {
	case IsSolanaAddress(address):
		return []string{ChainSolana}
	case !IsEVMAddress(address):
		return nil
	}
	var out []string
	seen := make(map[string]struct{})
	for _, list := range [][]string{detected, fallback} {
		for _, c := range list {
			c = NormalizeChain(c)
			if c == "" || c == ChainSolana {
				continue
			}
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
		if len(out) > 0 {
			break
		}
	}
	if len(out) == 0 {
		out = []string{ChainEthereum}
	}
	sort.SliceStable(out, func(i, j int) bool { return ChainPriority(out[i]) < ChainPriority(out[j]) })
	return out
}

// NormalizeChain maps user spellings ("eth", "bnb", "matic") to a canonical chain.
// Unknown names are returned lowercased.
func NormalizeChain(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if c, ok := chainAliases[n]; ok {
		return c
	}
	return n
}

// ChainAliases lists every recognised spelling, for query scanning.
func ChainAliases() map[string]string {
	out := make(map[string]string, len(chainAliases))
	for k, v := range chainAliases {
		out[k] = v
	}
	return out
}

// MoralisChain returns the Moralis chain id, or false for non-EVM chains.
func MoralisChain(chain string) (string, bool) {
	c, ok := moralisChains[NormalizeChain(chain)]
	return c, ok
}

// IsEVMAddress reports whether s is a 0x-prefixed 20-byte hex address.
func IsEVMAddress(s string) bool {
	return evmAddressRe.MatchString(s)
}

// IsSolanaAddress reports whether s is a base58 string decoding to a 32-byte key.
func IsSolanaAddress(s string) bool {
	if len(s) < 32 || len(s) > 44 {
		return false
	}
	b, err := base58.Decode(s)
	return err == nil && len(b) == 32
}

// IsContractAddress reports whether s looks like a contract address on any supported chain.
func IsContractAddress(s string) bool {
	return IsEVMAddress(s) || IsSolanaAddress(s)
}

// ValidateContract checks address against chain's strict pattern and returns the
// canonical chain. An empty chain is inferred from the address shape.
func ValidateContract(chain, address string) (string, error) {
	c := NormalizeChain(chain)
	switch {
	case c == "" && IsEVMAddress(address):
		return ChainEthereum, nil
	case c == "" && IsSolanaAddress(address):
		return ChainSolana, nil
	case c == ChainSolana && IsSolanaAddress(address):
		return c, nil
	case c != ChainSolana && c != "" && IsEVMAddress(address):
		return c, nil
	}
	return "", fmt.Errorf("%w: %q is not a contract address on %q", ErrInvalidInput, address, chain)
}
