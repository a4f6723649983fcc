package bot

import (
	"math/big"
	"testing"
)

func TestMinAmountOut(t *testing.T) {
	cases := []struct {
		name     string
		amount   int64
		price    int64
		decimals uint8
		want     int64
	}{
		// 100 USDC × 5e14 wei per USDC unit, less 1%
		{"usdc to weth", 100_000_000, 500_000_000, 6, 49_500_000_000_000_000},
		{"one unit", 1_000_000, 1_000_000, 6, 990_000},
		{"truncates down", 100, 1000, 6, 0},
		{"zero amount", 0, 1000, 6, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := minAmountOut(big.NewInt(tc.amount), big.NewInt(tc.price), tc.decimals)
			if got.Cmp(big.NewInt(tc.want)) != 0 {
				t.Fatalf("minAmountOut(%d, %d, %d) = %s, want %d",
					tc.amount, tc.price, tc.decimals, got, tc.want)
			}
		})
	}
}

func TestPriceSwingPct(t *testing.T) {
	cases := []struct {
		name          string
		current, last int64
		want          int64
	}{
		{"no move", 1000, 1000, 0},
		{"ten percent up", 1100, 1000, 10},
		{"ten percent down", 900, 1000, 10},
		{"eleven percent", 1111, 1000, 11},
		{"just under eleven", 1109, 1000, 10}, // integer division truncates
		{"doubled", 2000, 1000, 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := priceSwingPct(big.NewInt(tc.current), big.NewInt(tc.last))
			if got.Cmp(big.NewInt(tc.want)) != 0 {
				t.Fatalf("priceSwingPct(%d, %d) = %s, want %d", tc.current, tc.last, got, tc.want)
			}
		})
	}
}
