package heatmap

import (
	"math"
	"testing"

	"liqflow/internal/models"
)

func TestLongShortRatio(t *testing.T) {
	cases := []struct {
		funding          float64
		long, short float64
	}{
		{0.0006, 0.60, 0.40},
		{0.0003, 0.55, 0.45},
		{0.0001, 0.50, 0.50},
		{-0.0001, 0.50, 0.50},
		{-0.0003, 0.45, 0.55},
		{-0.0006, 0.40, 0.60},
	}
	for _, tc := range cases {
		l, s := LongShortRatio(tc.funding)
		if l != tc.long || s != tc.short {
			t.Errorf("LongShortRatio(%v) = %v/%v, want %v/%v", tc.funding, l, s, tc.long, tc.short)
		}
		if math.Abs(l+s-1.0) > 1e-12 {
			t.Errorf("ratios must sum to 1, got %v", l+s)
		}
	}
}

func TestLiquidationPriceConverges(t *testing.T) {
	entry := 95000.0
	var lastLong, lastShort float64
	for _, lev := range []int{5, 10, 20, 50, 100} {
		long := LiquidationPrice(entry, lev, models.SideLong)
		short := LiquidationPrice(entry, lev, models.SideShort)
		if long >= entry || short <= entry {
			t.Fatalf("leverage %d: long %v and short %v must straddle entry", lev, long, short)
		}
		if lastLong != 0 && (long <= lastLong || short >= lastShort) {
			t.Fatalf("higher leverage must liquidate closer to entry")
		}
		lastLong, lastShort = long, short
	}
}

func TestBucketRounding(t *testing.T) {
	cases := map[float64]int{
		86450:   86000,
		86500:   87000, // exact half rounds away from zero
		86550:   87000,
		95000:   95000,
		94999.9: 95000,
	}
	for price, want := range cases {
		if got := Bucket(price); got != want {
			t.Errorf("Bucket(%v) = %d, want %d", price, got, want)
		}
	}
}

func TestEstimateKnownScenario(t *testing.T) {
	// 95000 price, $5B OI, strongly positive funding -> 60/40 split
	h := Estimate(95000, 5e9, 0.0006)

	if h.LongRatio != 0.60 || h.ShortRatio != 0.40 {
		t.Fatalf("unexpected ratio split %v/%v", h.LongRatio, h.ShortRatio)
	}

	// 10x longs liquidate at 95000*0.91 = 86450 -> bucket 86000,
	// holding 5e9 * 0.60 * 0.25 = 750M
	got := h.LongLiquidations[86000]
	if math.Abs(got-750_000_000) > 1 {
		t.Fatalf("expected 750M at bucket 86000, got %v", got)
	}

	// 5x tier liquidates 18% away, still inside the ±20% window
	if _, ok := h.LongLiquidations[Bucket(95000 * (1 - 0.9/5))]; !ok {
		t.Fatalf("5x long tier should be inside the window")
	}
}

func TestEstimateTotalsMatchBuckets(t *testing.T) {
	h := Estimate(95000, 5e9, 0.0001)

	var longSum, shortSum float64
	for _, usd := range h.LongLiquidations {
		longSum += usd
	}
	for _, usd := range h.ShortLiquidations {
		shortSum += usd
	}
	if math.Abs(longSum-h.TotalLongAtRisk) > 1e-6 {
		t.Fatalf("long total %v != bucket sum %v", h.TotalLongAtRisk, longSum)
	}
	if math.Abs(shortSum-h.TotalShortAtRisk) > 1e-6 {
		t.Fatalf("short total %v != bucket sum %v", h.TotalShortAtRisk, shortSum)
	}
}

func TestEstimateDegenerateInputs(t *testing.T) {
	h := Estimate(0, 5e9, 0.0001)
	if len(h.LongLiquidations) != 0 || h.TotalLongAtRisk != 0 {
		t.Fatalf("zero price must yield an empty heatmap")
	}
	h = Estimate(95000, 0, 0.0001)
	if len(h.ShortLiquidations) != 0 || h.TotalShortAtRisk != 0 {
		t.Fatalf("zero OI must yield an empty heatmap")
	}
}

func TestMajorZonesFilterSortAndCap(t *testing.T) {
	longs := map[int]float64{
		86000: 750_000_000,
		90000: 600_000_000,
		78000: 499_999_999, // below threshold
	}
	shorts := map[int]float64{
		99000:  800_000_000,
		104000: 550_000_000,
		108000: 510_000_000,
		112000: 505_000_000,
	}

	zones := MajorZones(longs, shorts, 95000)
	if len(zones) != 5 {
		t.Fatalf("expected cap at 5 zones, got %d", len(zones))
	}
	for i := 1; i < len(zones); i++ {
		if zones[i].DistancePct < zones[i-1].DistancePct {
			t.Fatalf("zones must sort by distance ascending")
		}
	}
	if zones[0].Price != 99000 {
		t.Fatalf("closest zone should be 99000, got %d", zones[0].Price)
	}
	for _, z := range zones {
		if z.USDValue < 500_000_000 {
			t.Fatalf("zone below threshold leaked through: %+v", z)
		}
	}
}

func TestBuildInsightLevels(t *testing.T) {
	cases := []struct {
		score   float64
		summary string
	}{
		{80, "CRITICAL: High probability of flash crash/squeeze"},
		{60, "FRAGILE: Expect wicky price action"},
		{30, "CAUTION: Standard market conditions"},
		{10, "STABLE: Safe for larger positions"},
	}
	for _, tc := range cases {
		insight := BuildInsight(&models.FragilityScore{Score: tc.score}, nil, nil)
		if insight.Summary != tc.summary {
			t.Errorf("score %v: summary %q, want %q", tc.score, insight.Summary, tc.summary)
		}
	}
}

func TestBuildInsightProximityAndImbalance(t *testing.T) {
	zones := []models.LiquidationZone{{Price: 93000, USDValue: 750_000_000, Side: models.SideLong, DistancePct: 2.1}}
	est := &models.EstimatedHeatmap{TotalLongAtRisk: 3e9, TotalShortAtRisk: 1e9}

	insight := BuildInsight(&models.FragilityScore{Score: 10}, zones, est)
	if len(insight.Details) != 2 {
		t.Fatalf("expected proximity and imbalance details, got %v", insight.Details)
	}
	if insight.Recommendation != "Watch for liquidity sweep at major zone." {
		t.Fatalf("unexpected recommendation %q", insight.Recommendation)
	}
}
