package score

import (
	"math"

	"github.com/walletscope/txscore/internal/explorer"
)

// Fallback tip buckets in wei, used when the cohort carries no tip
// percentiles: a near-zero tip is cheap, anything past 5 gwei is expensive.
const (
	tipNegligibleWei = 1e6 // ~0.001 gwei
	tipModerateWei   = 5e9 // 5 gwei
)

// economicScore ranks the transaction's fees against the cohort baseline and
// deducts for EIP-1559 overpayment. Weights: 70 price rank, 20 tip rank,
// 10 overpay ratio.
func economicScore(tx explorer.Transaction, cohort CohortStats) (float64, []Explanation) {
	var expl []Explanation

	eGP := tx.EffectiveGasPrice()
	tip := tx.PriorityFee
	baseFee := tx.BaseFee
	if baseFee == nil {
		baseFee = cohort.BaseFeeLast
	}

	rankPrice := 0.5
	if eGP != 0 {
		rankPrice = rankAgainst(eGP, cohort.GasPrice)
	}
	rankTip := 0.5
	if tip != 0 {
		rankTip = rankAgainst(tip, cohort.Tip)
	}

	// Cohort fallbacks: with no gas-price percentiles, bucket the ratio of the
	// effective price to the theoretical minimum; with no tip percentiles,
	// bucket the absolute tip.
	if len(cohort.GasPrice) == 0 && eGP != 0 && baseFee != nil {
		minRequired := *baseFee + tip
		switch ratio := eGP / math.Max(minRequired, 1); {
		case ratio <= 1.02:
			rankPrice = 0.35
		case ratio <= 1.10:
			rankPrice = 0.55
		default:
			rankPrice = 0.80
		}
	}
	if len(cohort.Tip) == 0 {
		switch {
		case tip <= tipNegligibleWei:
			rankTip = 0.35
		case tip <= tipModerateWei:
			rankTip = 0.55
		default:
			rankTip = 0.80
		}
	}

	minRequired := tip
	if baseFee != nil {
		minRequired += *baseFee
	}
	overpay := 0.0
	if eGP != 0 {
		overpay = clamp(safeDiv(eGP-minRequired, eGP, 0), 0, 1)
	}
	if eGP != 0 && baseFee != nil {
		expl = append(expl, Explanation{
			Label: "EIP-1559 overpay ratio",
			Value: round4(overpay),
			Delta: -round2(10 * overpay),
		})
	}

	economic := clamp(100-rankPrice*70-rankTip*20-overpay*10, 0, 100)
	expl = append(expl, Explanation{
		Label: "Economic (gas price percentile)",
		Value: round3(rankPrice),
		Delta: round2(-rankPrice * 70),
	})
	expl = append(expl, Explanation{
		Label: "Gas vs required",
		Value: map[string]float64{
			"effective_gwei": round6(eGP / 1e9),
			"required_gwei":  round6(minRequired / 1e9),
		},
		Delta: 0,
	})
	return economic, expl
}
