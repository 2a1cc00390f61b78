package score

import (
	"math"

	"github.com/walletscope/txscore/internal/explorer"
)

// Aggregation weights. Risk is kept out of the no-risk variant so consumers
// can show how much the security dimension moved the blended score.
const (
	weightEconomic  = 0.35
	weightTechnical = 0.25
	weightStrategic = 0.10
	weightRisk      = 0.30
)

// confidenceFor measures how much of the expected signal set was actually
// observed: [0.7, 1.0], where 0.7 is the floor even with no data at all.
// Missing cohort percentiles each shave 0.05, since fallback ranks are
// weaker evidence than a real market baseline.
func confidenceFor(tx explorer.Transaction, enr EnrichmentBundle, cohort CohortStats) float64 {
	present, total := 0.0, 5.0
	if tx.EffectiveGasPrice() != 0 {
		present++
	}
	if tx.PriorityFee != 0 {
		present++
	}
	baseFee := tx.BaseFee
	if baseFee == nil {
		baseFee = cohort.BaseFeeLast
	}
	if baseFee != nil && *baseFee != 0 {
		present++
	}
	if tx.GasUsed != 0 {
		present++
	}
	if tx.GasLimit != 0 {
		present++
	}
	if enr.Interpreter != nil {
		total++
		present++
	}
	confidence := 0.7 + 0.3*(present/total)
	if len(cohort.GasPrice) == 0 {
		confidence = math.Max(0.7, confidence-0.05)
	}
	if len(cohort.Tip) == 0 {
		confidence = math.Max(0.7, confidence-0.05)
	}
	return confidence
}

// aggregate folds the four sub-scores into the final record. The confidence
// multiplier applies to the blended score only; the no-risk variant stays
// unadjusted so it remains comparable across transactions.
func aggregate(subs Subscores, confidence float64) (final, finalNoRisk float64) {
	finalNoRisk = weightEconomic*subs.Economic + weightTechnical*subs.Technical + weightStrategic*subs.Strategic
	final = clamp(finalNoRisk+weightRisk*subs.RiskSecurity, 0, 100)
	finalNoRisk = clamp(finalNoRisk, 0, 100)
	final = clamp(final*confidence, 0, 100)
	return final, finalNoRisk
}
