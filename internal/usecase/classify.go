package usecase

import (
	"regexp"
	"sort"
	"strings"

	"FinResolve/internal/service/providers"
)

// AssetHint is a soft guess about what kind of asset a term names. It orders
// search routes and enables the token-list fast path; it never filters results.
type AssetHint string

const (
	HintUnknown  AssetHint = "unknown"
	HintStock    AssetHint = "stock"
	HintCrypto   AssetHint = "crypto"
	HintContract AssetHint = "contract"
)

var (
	cryptoKeywords = map[string]struct{}{
		"crypto": {}, "coin": {}, "token": {}, "meme": {}, "memecoin": {}, "blockchain": {},
		"defi": {}, "nft": {}, "altcoin": {}, "dex": {}, "airdrop": {}, "staking": {},
	}
	stockKeywords = map[string]struct{}{
		"stock": {}, "stocks": {}, "share": {}, "shares": {}, "equity": {}, "etf": {},
		"nasdaq": {}, "nyse": {}, "dividend": {}, "earnings": {}, "inc": {}, "corp": {},
	}
	pairSuffixRe = regexp.MustCompile(`^[A-Z0-9]{2,10}[-/]?(USDT|USDC|BUSD|USD|BTC|ETH)$`)

	stockTickerRe   = regexp.MustCompile(`^[A-Z]{1,5}(\.[A-Z])?$`)
	cryptoTickerRe  = regexp.MustCompile(`^[A-Z]{3,6}(/?[A-Z]{3,6})?$`)
	forexTickerRe   = regexp.MustCompile(`^[A-Z]{3}/?[A-Z]{3}$`)
	futuresTickerRe = regexp.MustCompile(`^[A-Z]{1,3}[FGHJKMNQUVXZ]\d{2}$`)

	questionPhraseRe = regexp.MustCompile(`(?i)\b(what's|how's|tell me about|price of|info on|show me|give me|can you|please)\b`)
	trailingPunctRe  = regexp.MustCompile(`[?!.]+$`)
	tokenRe          = regexp.MustCompile(`\b[A-Za-z0-9]{2,8}\b`)
	wordRe           = regexp.MustCompile(`[a-z0-9]+`)
)

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "or": {}, "but": {}, "not": {}, "are": {}, "was": {}, "has": {}, "had": {},
	"can": {}, "may": {}, "will": {}, "get": {}, "set": {}, "put": {}, "new": {}, "old": {}, "big": {},
	"all": {}, "any": {}, "for": {}, "who": {}, "why": {}, "how": {}, "when": {}, "where": {}, "here": {},
	"there": {}, "long": {}, "short": {}, "buy": {}, "sell": {}, "good": {}, "bad": {}, "best": {},
	"worst": {}, "high": {}, "low": {}, "should": {}, "would": {}, "could": {}, "might": {}, "like": {},
	"love": {}, "hate": {}, "want": {}, "need": {}, "help": {}, "today": {}, "doing": {}, "look": {},
	"seems": {}, "going": {}, "come": {},
}

// chainKeywords maps query words to the chain they imply.
var chainKeywords = map[string]string{
	"eth": providers.ChainEthereum, "ethereum": providers.ChainEthereum, "erc20": providers.ChainEthereum,
	"uniswap": providers.ChainEthereum, "metamask": providers.ChainEthereum,
	"bsc": providers.ChainBSC, "binance": providers.ChainBSC, "pancakeswap": providers.ChainBSC, "bnb": providers.ChainBSC,
	"polygon": providers.ChainPolygon, "matic": providers.ChainPolygon, "quickswap": providers.ChainPolygon,
	"sol": providers.ChainSolana, "solana": providers.ChainSolana, "spl": providers.ChainSolana,
	"raydium": providers.ChainSolana, "phantom": providers.ChainSolana,
	"arbitrum": providers.ChainArbitrum, "arb": providers.ChainArbitrum,
	"optimism": providers.ChainOptimism, "op": providers.ChainOptimism,
	"avax": providers.ChainAvalanche, "avalanche": providers.ChainAvalanche, "pangolin": providers.ChainAvalanche,
	"base": providers.ChainBase,
}

var defaultChains = []string{providers.ChainEthereum, providers.ChainBSC, providers.ChainPolygon}

// Classify guesses the asset kind of term, using the surrounding query for keywords.
func Classify(term, query string) AssetHint {
	t := strings.TrimSpace(term)
	if t == "" {
		return HintUnknown
	}
	if providers.IsContractAddress(t) {
		return HintContract
	}

	words := wordRe.FindAllString(strings.ToLower(query+" "+t), -1)
	crypto, stock := 0, 0
	for _, w := range words {
		if _, ok := cryptoKeywords[w]; ok {
			crypto++
		} else if _, ok := chainKeywords[w]; ok && w != "base" && w != "op" {
			crypto++
		}
		if _, ok := stockKeywords[w]; ok {
			stock++
		}
	}
	switch {
	case crypto > stock:
		return HintCrypto
	case stock > crypto:
		return HintStock
	}

	upper := strings.ToUpper(t)
	if pairSuffixRe.MatchString(upper) && len(upper) > 5 {
		return HintCrypto
	}
	if strings.Contains(upper, ".") && stockTickerRe.MatchString(upper) {
		return HintStock
	}
	return HintUnknown
}

// IsCryptoQuery reports whether any term or the query itself reads as crypto.
func IsCryptoQuery(terms []string, query string) bool {
	for _, t := range terms {
		if h := Classify(t, query); h == HintCrypto || h == HintContract {
			return true
		}
	}
	return false
}

// IsValidTicker reports whether s has the shape of a stock, crypto pair, forex or futures ticker.
func IsValidTicker(s string) bool {
	return stockTickerRe.MatchString(s) ||
		cryptoTickerRe.MatchString(s) ||
		forexTickerRe.MatchString(s) ||
		futuresTickerRe.MatchString(s)
}

// PreprocessQuery strips question phrasing from a free-text query and returns the
// candidate symbol tokens. When nothing survives it returns the cleaned query as a
// single term.
func PreprocessQuery(query string) []string {
	cleaned := questionPhraseRe.ReplaceAllString(query, "")
	cleaned = strings.TrimSpace(trailingPunctRe.ReplaceAllString(strings.TrimSpace(cleaned), ""))

	var out []string
	seen := make(map[string]struct{})
	for _, tok := range tokenRe.FindAllString(cleaned, -1) {
		l := strings.ToLower(tok)
		if _, stop := stopWords[l]; stop {
			continue
		}
		if _, dup := seen[l]; dup {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, tok)
	}
	// Contract addresses are longer than any token the pattern keeps.
	for _, f := range strings.Fields(cleaned) {
		f = strings.Trim(f, ",;:()[]\"'")
		if providers.IsContractAddress(f) {
			out = append(out, f)
		}
	}
	if len(out) == 0 && cleaned != "" {
		return []string{cleaned}
	}
	return out
}

// DetectChains returns the chains a query mentions, in canonical form and sorted.
// A query that names none gets the default EVM set.
func DetectChains(query string) []string {
	set := make(map[string]struct{})
	for _, w := range wordRe.FindAllString(strings.ToLower(query), -1) {
		if c, ok := chainKeywords[w]; ok {
			set[c] = struct{}{}
		}
	}
	if len(set) == 0 {
		return append([]string(nil), defaultChains...)
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
