package score

import (
	"github.com/walletscope/txscore/internal/explorer"
)

// Percentiles maps a percentile (50, 80, 95) to its threshold value. An empty
// map means the sample was insufficient and callers must use fallback paths;
// it is deliberately distinct from a map of zero thresholds.
type Percentiles map[int]float64

// CohortStats is the market-condition baseline shared by a scoring batch.
// Built once per batch and treated as read-only afterwards.
type CohortStats struct {
	GasPrice Percentiles `json:"gas_price_pctl"`
	Tip      Percentiles `json:"tip_pctl"`

	// BaseFeeLast is the most recently observed block base fee in wei.
	BaseFeeLast *float64 `json:"base_fee_last,omitempty"`

	SampleBlocks int `json:"sample_blocks"`
	SampleTxs    int `json:"sample_txs"`
}

// Empty reports whether no percentile thresholds were derived at all.
func (c CohortStats) Empty() bool {
	return len(c.GasPrice) == 0 && len(c.Tip) == 0
}

// EnrichmentBundle carries per-transaction auxiliary data. Any field may be
// nil or empty: absence degrades the corresponding contribution to a neutral
// default and is never an error.
type EnrichmentBundle struct {
	AddressInfo    *explorer.AddressInfo        `json:"address_info,omitempty"`
	Detail         *explorer.TransactionDetail  `json:"transaction_details,omitempty"`
	Interpreter    *explorer.InterpreterVerdict `json:"interpreter_data,omitempty"`
	TokenTransfers []explorer.TokenTransfer     `json:"token_transfers,omitempty"`
	Logs           []explorer.LogEvent          `json:"logs,omitempty"`
}

// Explanation is one audit record of a rule that fired during scoring. The
// list is append-only and never drives control flow.
type Explanation struct {
	Label string  `json:"label"`
	Value any     `json:"value,omitempty"`
	Delta float64 `json:"delta"`
}

// Subscores are the four scoring dimensions, each clamped to [0,100].
type Subscores struct {
	Economic     float64 `json:"economic"`
	Technical    float64 `json:"technical"`
	RiskSecurity float64 `json:"risk_security"`
	Strategic    float64 `json:"strategic"`
}

// ScoredTransaction is the terminal scoring artifact handed to presentation
// and explanation collaborators.
type ScoredTransaction struct {
	TxHash           string                       `json:"tx_hash"`
	Subscores        Subscores                    `json:"subscores"`
	FinalScore       float64                      `json:"final_score"`
	FinalScoreNoRisk float64                      `json:"final_score_no_risk"`
	RiskLevel        string                       `json:"risk_level"`
	Confidence       float64                      `json:"confidence"`
	Explanations     []Explanation                `json:"explanations"`
	Interpreter      *explorer.InterpreterVerdict `json:"interpreter_analysis,omitempty"`
	Enrichment       EnrichmentBundle             `json:"enhanced_data"`
}

const (
	// RiskLow..RiskHigh bucket the raw risk sub-score.
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// safeDiv divides a by b, returning def when b is zero.
func safeDiv(a, b, def float64) float64 {
	if b == 0 {
		return def
	}
	return a / b
}

func round2(v float64) float64 { return roundTo(v, 100) }
func round3(v float64) float64 { return roundTo(v, 1000) }
func round4(v float64) float64 { return roundTo(v, 10000) }
func round6(v float64) float64 { return roundTo(v, 1000000) }

func roundTo(v float64, scale float64) float64 {
	if v < 0 {
		return float64(int64(v*scale-0.5)) / scale
	}
	return float64(int64(v*scale+0.5)) / scale
}
