package score

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/walletscope/txscore/internal/explorer"
)

// Engine scores transactions against a cohort baseline. It holds no state:
// scoring is a pure computation over its inputs, so one Engine can serve
// concurrent batches.
type Engine struct{}

func NewEngine() *Engine { return &Engine{} }

// ScoreTransaction produces the full scored record for one transaction.
// The cohort is read-only; enrichment fields may be absent and only ever
// soften contributions, never fail them.
func (e *Engine) ScoreTransaction(tx explorer.Transaction, enr EnrichmentBundle, cohort CohortStats) ScoredTransaction {
	economic, econExpl := economicScore(tx, cohort)
	technical, techExpl := technicalScore(tx, enr)
	risk, riskExpl := riskScore(tx, enr)
	strategic, stratExpl := strategicScore(enr)

	explanations := make([]Explanation, 0, len(econExpl)+len(techExpl)+len(riskExpl)+len(stratExpl))
	explanations = append(explanations, econExpl...)
	explanations = append(explanations, techExpl...)
	explanations = append(explanations, riskExpl...)
	explanations = append(explanations, stratExpl...)

	subs := Subscores{
		Economic:     economic,
		Technical:    technical,
		RiskSecurity: risk,
		Strategic:    strategic,
	}
	confidence := confidenceFor(tx, enr, cohort)
	final, finalNoRisk := aggregate(subs, confidence)

	return ScoredTransaction{
		TxHash: tx.Hash,
		Subscores: Subscores{
			Economic:     round2(economic),
			Technical:    round2(technical),
			RiskSecurity: round2(risk),
			Strategic:    round2(strategic),
		},
		FinalScore:       round2(final),
		FinalScoreNoRisk: round2(finalNoRisk),
		RiskLevel:        riskBucket(risk),
		Confidence:       round3(confidence),
		Explanations:     explanations,
		Interpreter:      enr.Interpreter,
		Enrichment:       enr,
	}
}

// ScoreBatch scores every transaction independently and in parallel against
// the shared cohort. The output preserves input order regardless of
// completion order; a missing enrichment entry degrades to an empty bundle.
func (e *Engine) ScoreBatch(ctx context.Context, txs []explorer.Transaction, enrichments []EnrichmentBundle, cohort CohortStats) []ScoredTransaction {
	out := make([]ScoredTransaction, len(txs))
	g, _ := errgroup.WithContext(ctx)
	for i, tx := range txs {
		i, tx := i, tx
		enr := EnrichmentBundle{}
		if i < len(enrichments) {
			enr = enrichments[i]
		}
		g.Go(func() error {
			out[i] = e.ScoreTransaction(tx, enr, cohort)
			return nil
		})
	}
	_ = g.Wait()
	return out
}
