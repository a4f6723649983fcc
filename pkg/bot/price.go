package bot

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/drinkius/gearbot/pkg/gear"
)

// currentPrice queries the oracle for the value of one whole quote unit
// (scaled by the quote asset's decimals) in tokenOut. The same reading is
// used as the creation baseline, the circuit-breaker comparison, and the
// slippage bound.
func currentPrice(oracle gear.PriceOracle, quote, tokenOut common.Address, quoteDecimals uint8) (*big.Int, error) {
	one := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(quoteDecimals)), nil)
	price, err := oracle.Convert(one, quote, tokenOut)
	if err != nil {
		return nil, fmt.Errorf("oracle convert: %w", err)
	}
	if price == nil || price.Sign() < 0 {
		return nil, fmt.Errorf("oracle returned invalid price")
	}
	return price, nil
}

// minAmountOut computes the lowest acceptable swap output: the oracle-implied
// amount less a 1% slippage allowance.
//
//	amount × price × 9900 / (10^quoteDecimals × 10000)
func minAmountOut(amount, price *big.Int, quoteDecimals uint8) *big.Int {
	out := new(big.Int).Mul(amount, price)
	out.Mul(out, big.NewInt(9900))
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(quoteDecimals)), nil)
	scale.Mul(scale, big.NewInt(10000))
	return out.Quo(out, scale)
}

// priceSwingPct returns the absolute price move from last in whole percent.
func priceSwingPct(current, last *big.Int) *big.Int {
	diff := new(big.Int).Sub(current, last)
	diff.Abs(diff)
	diff.Mul(diff, big.NewInt(100))
	return diff.Quo(diff, last)
}
