// Package symbols translates between the canonical coin notation used
// throughout the pipeline ("BTC") and the native symbol formats of each
// supported exchange.
package symbols

import "strings"

// ToBinance converts various exchange-specific symbol formats to Binance style.
// It ensures symbols are uppercase without separators and uses BTC instead of XBT.
// Currently supported exchanges: binance, bybit, kucoin, okx.
func ToBinance(exchange, sym string) string {
	switch strings.ToLower(exchange) {
	case "binance":
		switch sym {
		case "1000BONKUSDT":
			sym = "BONKUSDT"
		case "1000PEPEUSDT":
			sym = "PEPEUSDT"
		case "1000SHIBUSDT":
			sym = "SHIBUSDT"
		}
	case "bybit":
		switch sym {
		case "1000BONKUSDT":
			sym = "BONKUSDT"
		case "1000PEPEUSDT":
			sym = "PEPEUSDT"
		case "SHIB1000USDT":
			sym = "SHIBUSDT"
		}
	case "kucoin":
		sym = strings.ReplaceAll(sym, "-", "")
		sym = strings.TrimSuffix(sym, "M")
		if strings.HasPrefix(sym, "XBT") {
			sym = "BTC" + sym[3:]
		}
	case "okx":
		sym = strings.TrimSuffix(sym, "-SWAP")
		sym = strings.ReplaceAll(sym, "-", "")
	default:
		// others already use the desired format
	}
	return sym
}

// Coin extracts the canonical coin from a Binance-style USDT pair.
func Coin(symbol string) string {
	return strings.TrimSuffix(strings.ToUpper(symbol), "USDT")
}

// BinancePair is the Binance spot/futures symbol for a coin.
func BinancePair(coin string) string {
	return strings.ToUpper(coin) + "USDT"
}

// OkxInstID is the OKX spot instrument identifier for a coin.
func OkxInstID(coin string) string {
	return strings.ToUpper(coin) + "-USDT"
}

// KucoinPair is the KuCoin spot symbol for a coin.
func KucoinPair(coin string) string {
	return strings.ToUpper(coin) + "-USDT"
}

// KucoinFuturesSymbol is the KuCoin perpetual contract symbol for a coin.
// KuCoin futures keep the legacy XBT notation for bitcoin.
func KucoinFuturesSymbol(coin string) string {
	coin = strings.ToUpper(coin)
	if coin == "BTC" {
		coin = "XBT"
	}
	return coin + "USDTM"
}

// coingeckoIDs covers coins whose CoinGecko identifier cannot be derived by
// lowercasing the ticker.
var coingeckoIDs = map[string]string{
	"BTC":     "bitcoin",
	"ETH":     "ethereum",
	"SOL":     "solana",
	"XRP":     "ripple",
	"DOGE":    "dogecoin",
	"ADA":     "cardano",
	"AVAX":    "avalanche-2",
	"LINK":    "chainlink",
	"BNB":     "binancecoin",
	"HYPE":    "hyperliquid",
	"VIRTUAL": "virtual-protocol",
	"ZORA":    "zora",
	"SKY":     "sky-mavis",
	"SYRUP":   "syrup",
	"ETHFI":   "ether-fi",
	"WLFI":    "world-liberty-financial",
	"PUMP":    "pump",
	"LIT":     "litentry",
	"ASTER":   "aster",
}

// CoingeckoID maps a coin ticker to its CoinGecko identifier. Unknown tickers
// fall back to the lowercased ticker, which matches many smaller listings.
func CoingeckoID(coin string) string {
	coin = strings.ToUpper(coin)
	if id, ok := coingeckoIDs[coin]; ok {
		return id
	}
	return strings.ToLower(coin)
}
