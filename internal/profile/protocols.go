package profile

import "strings"

// Registry resolves contract addresses to protocol labels, carries the
// discovery exclusion set, and knows which fungible tokens are priced.
// This is lookup data, kept small and replaceable.
type Registry struct {
	// protocols maps a contract address prefix to a protocol label.
	protocols map[string]string
	// excluded holds infrastructure principals (exchanges, bridges, known
	// protocol treasuries) that are never whales.
	excluded map[string]struct{}
	// tokens maps a fully-qualified asset identifier to its display
	// symbol and base-unit decimals.
	tokens map[string]TokenInfo
}

// TokenInfo describes a tracked fungible token.
type TokenInfo struct {
	Symbol   string
	Decimals int
}

// DefaultRegistry returns the built-in mainnet registry.
func DefaultRegistry() *Registry {
	return &Registry{
		protocols: map[string]string{
			"SP2C2YFP12AJZB4MABJBAJ55XECVS7E4PMMZ89YZR": "ALEX",
			"SP102V8P0F7JX67ARQ77WEA3D3CFB5XW39REDT0AM": "Arkadiko",
			"SP2XD7417HGPRTREMKF748VNEQPDRR0RMANB7X1NK": "Velar",
			"SP4SZE494VC2YC5JYG7AYFQ44F5Q4PYV7DVMDPBG":  "StackingDAO",
			"SP3K8BC0PPEVCV7NZ6QSRWPQ2JE9E5B6N3PA0KBR9": "Zest",
			"SM26NBC8SFHNW4P1Y4DFH27974P56WN86C92HPEHH": "Bitflow",
			"SP1Z92MPDQEWZXW36VX71Q25HKF5K2EPCJ304F275": "Stackswap",
			"SP000000000000000000002Q6VF78":             "PoX",
		},
		excluded: map[string]struct{}{
			// Exchange hot wallets and bridges, not whales.
			"SP3Y2ZSH8P7D50B0VBTSX11S7XSG24M1VB9YFQA4K": {},
			"SP1P72Z3704VMT3DMHPP2CB8TGQWGDBHD3RPR9GZS": {},
			"SP2TZK01NKDC89J6TA56SA47SDF7RTHYEQ79AAB9A": {},
			"SM3KNVZS30WM7F89SXKVVFY4SN9RMPZZ9FX929N0V": {},
			// PoX and boot contracts show up constantly in global feeds.
			"SP000000000000000000002Q6VF78": {},
		},
		tokens: map[string]TokenInfo{
			"SP2C2YFP12AJZB4MABJBAJ55XECVS7E4PMMZ89YZR.age000-governance-token::alex": {Symbol: "ALEX", Decimals: 8},
			"SP102V8P0F7JX67ARQ77WEA3D3CFB5XW39REDT0AM.arkadiko-token::diko":          {Symbol: "DIKO", Decimals: 6},
			"SP4SZE494VC2YC5JYG7AYFQ44F5Q4PYV7DVMDPBG.ststx-token::ststx":             {Symbol: "stSTX", Decimals: 6},
			"SP3K8BC0PPEVCV7NZ6QSRWPQ2JE9E5B6N3PA0KBR9.token-susdt::bridged-usdt":     {Symbol: "sUSDT", Decimals: 8},
		},
	}
}

// ProtocolFor resolves the contract address prefix of a contract ID to a
// known protocol label. Unknown contracts return ("", false) and are
// silently dropped from protocol sets, not labeled "unknown".
func (r *Registry) ProtocolFor(contractID string) (string, bool) {
	for prefix, label := range r.protocols {
		if strings.HasPrefix(contractID, prefix) {
			return label, true
		}
	}
	return "", false
}

// IsExcluded reports whether the principal is known infrastructure.
func (r *Registry) IsExcluded(address string) bool {
	_, ok := r.excluded[address]
	return ok
}

// TokenFor resolves a fully-qualified asset identifier to its token info.
func (r *Registry) TokenFor(assetID string) (TokenInfo, bool) {
	info, ok := r.tokens[assetID]
	return info, ok
}
