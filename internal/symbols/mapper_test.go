package symbols

import "testing"

func TestToBinance(t *testing.T) {
	tests := []struct {
		exchange string
		in       string
		want     string
	}{
		{"bybit", "SHIB1000USDT", "SHIBUSDT"},
		{"bybit", "BTCUSDT", "BTCUSDT"},
		{"binance", "1000PEPEUSDT", "PEPEUSDT"},
		{"kucoin", "XBTUSDTM", "BTCUSDT"},
		{"kucoin", "ETH-USDT", "ETHUSDT"},
		{"okx", "BTC-USDT-SWAP", "BTCUSDT"},
	}
	for _, tc := range tests {
		if got := ToBinance(tc.exchange, tc.in); got != tc.want {
			t.Errorf("ToBinance(%s, %s) = %s, want %s", tc.exchange, tc.in, got, tc.want)
		}
	}
}

func TestCoinPairRoundTrip(t *testing.T) {
	if Coin("BTCUSDT") != "BTC" {
		t.Fatalf("Coin(BTCUSDT) = %s", Coin("BTCUSDT"))
	}
	if BinancePair("btc") != "BTCUSDT" {
		t.Fatalf("BinancePair(btc) = %s", BinancePair("btc"))
	}
	if OkxInstID("ETH") != "ETH-USDT" {
		t.Fatalf("OkxInstID(ETH) = %s", OkxInstID("ETH"))
	}
	if KucoinFuturesSymbol("BTC") != "XBTUSDTM" {
		t.Fatalf("KucoinFuturesSymbol(BTC) = %s", KucoinFuturesSymbol("BTC"))
	}
	if KucoinFuturesSymbol("SOL") != "SOLUSDTM" {
		t.Fatalf("KucoinFuturesSymbol(SOL) = %s", KucoinFuturesSymbol("SOL"))
	}
}

func TestCoingeckoID(t *testing.T) {
	if CoingeckoID("BTC") != "bitcoin" {
		t.Fatalf("unexpected id for BTC: %s", CoingeckoID("BTC"))
	}
	if CoingeckoID("HYPE") != "hyperliquid" {
		t.Fatalf("unexpected id for HYPE: %s", CoingeckoID("HYPE"))
	}
	if CoingeckoID("NEWCOIN") != "newcoin" {
		t.Fatalf("unknown tickers must lowercase, got %s", CoingeckoID("NEWCOIN"))
	}
}
