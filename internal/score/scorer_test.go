package score

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"github.com/walletscope/txscore/internal/explorer"
)

func fullCohort() CohortStats {
	return CohortStats{
		GasPrice:    Percentiles{50: 20e9, 80: 30e9, 95: 45e9},
		Tip:         Percentiles{50: 1e9, 80: 2e9, 95: 3e9},
		BaseFeeLast: fp(10e9),
	}
}

func simpleTransfer() explorer.Transaction {
	return explorer.Transaction{
		Hash:        "0xaa",
		GasUsed:     21000,
		GasLimit:    21000,
		GasPrice:    12e9,
		PriorityFee: 1e9,
		BaseFee:     fp(10e9),
		Types:       []string{"coin_transfer"},
	}
}

func TestConfidenceBounds(t *testing.T) {
	// No data at all: floor.
	if got := confidenceFor(explorer.Transaction{}, EnrichmentBundle{}, CohortStats{}); got != 0.7 {
		t.Fatalf("empty confidence = %v, want 0.7", got)
	}
	// Every signal present, interpreter included, full cohort: ceiling.
	enr := EnrichmentBundle{Interpreter: &explorer.InterpreterVerdict{RiskLevel: "low"}}
	if got := confidenceFor(simpleTransfer(), enr, fullCohort()); got != 1.0 {
		t.Fatalf("full confidence = %v, want 1.0", got)
	}
}

func TestConfidencePenalizesMissingPercentiles(t *testing.T) {
	tx := simpleTransfer()
	full := confidenceFor(tx, EnrichmentBundle{}, fullCohort())
	sparse := confidenceFor(tx, EnrichmentBundle{}, CohortStats{BaseFeeLast: fp(10e9)})
	if !approx(full-sparse, 0.10, 1e-9) {
		t.Fatalf("missing both percentile maps should cost 0.10: full=%v sparse=%v", full, sparse)
	}
	if sparse < 0.7 {
		t.Fatalf("confidence below floor: %v", sparse)
	}
}

func TestAggregateWeights(t *testing.T) {
	subs := Subscores{Economic: 80, Technical: 90, RiskSecurity: 100, Strategic: 85}
	final, noRisk := aggregate(subs, 1.0)
	wantNoRisk := 0.35*80 + 0.25*90 + 0.10*85
	if !approx(noRisk, wantNoRisk, 1e-9) {
		t.Fatalf("finalNoRisk = %v, want %v", noRisk, wantNoRisk)
	}
	if !approx(final, wantNoRisk+0.30*100, 1e-9) {
		t.Fatalf("final = %v, want %v", final, wantNoRisk+30)
	}
}

func TestAggregateConfidenceOnlyScalesFinal(t *testing.T) {
	subs := Subscores{Economic: 80, Technical: 90, RiskSecurity: 100, Strategic: 85}
	fullFinal, fullNoRisk := aggregate(subs, 1.0)
	scaledFinal, scaledNoRisk := aggregate(subs, 0.8)
	if !approx(scaledFinal, fullFinal*0.8, 1e-9) {
		t.Fatalf("scaled final = %v, want %v", scaledFinal, fullFinal*0.8)
	}
	if scaledNoRisk != fullNoRisk {
		t.Fatalf("no-risk variant must ignore confidence: %v vs %v", scaledNoRisk, fullNoRisk)
	}
}

func TestAggregateClamps(t *testing.T) {
	final, noRisk := aggregate(Subscores{Economic: 100, Technical: 100, RiskSecurity: 100, Strategic: 100}, 1.0)
	if final > 100 || noRisk > 100 {
		t.Fatalf("scores escaped [0,100]: final=%v noRisk=%v", final, noRisk)
	}
}

func TestScoreTransactionSimpleTransfer(t *testing.T) {
	engine := NewEngine()
	got := engine.ScoreTransaction(simpleTransfer(), EnrichmentBundle{}, fullCohort())

	if got.TxHash != "0xaa" {
		t.Fatalf("hash = %q", got.TxHash)
	}
	// Exact-limit coin transfer: technical clamps at 100, risk untouched.
	if got.Subscores.Technical != 100 || got.Subscores.RiskSecurity != 100 {
		t.Fatalf("subscores = %+v", got.Subscores)
	}
	if got.Subscores.Strategic != 85 {
		t.Fatalf("strategic = %v, want transfer base 85", got.Subscores.Strategic)
	}
	if got.RiskLevel != RiskLow {
		t.Fatalf("risk level = %q", got.RiskLevel)
	}
	if got.FinalScore < 0 || got.FinalScore > 100 {
		t.Fatalf("final score out of range: %v", got.FinalScore)
	}
	if got.FinalScore >= got.FinalScoreNoRisk+30*0.30+1 {
		t.Fatalf("final vs no-risk inconsistent: %v / %v", got.FinalScore, got.FinalScoreNoRisk)
	}
	if got.Confidence < 0.7 || got.Confidence > 1.0 {
		t.Fatalf("confidence out of range: %v", got.Confidence)
	}
	if len(got.Explanations) == 0 {
		t.Fatal("explanations missing")
	}
}

func TestScoreTransactionRiskyContract(t *testing.T) {
	engine := NewEngine()
	tx := explorer.Transaction{
		Hash:         "0xbb",
		GasUsed:      180000,
		GasLimit:     200000,
		GasPrice:     25e9,
		PriorityFee:  2e9,
		BaseFee:      fp(10e9),
		ToIsContract: true,
	}
	enr := EnrichmentBundle{Interpreter: &explorer.InterpreterVerdict{RiskLevel: "high"}}
	got := engine.ScoreTransaction(tx, enr, fullCohort())

	// -15 unverified contract, -35 interpreter high.
	if got.Subscores.RiskSecurity != 50 {
		t.Fatalf("risk = %v, want 50", got.Subscores.RiskSecurity)
	}
	if got.RiskLevel != RiskMedium {
		t.Fatalf("risk level = %q, want medium", got.RiskLevel)
	}
	if got.Interpreter == nil || got.Interpreter.RiskLevel != "high" {
		t.Fatalf("interpreter verdict not carried: %+v", got.Interpreter)
	}
}

func TestScoreTransactionIdempotent(t *testing.T) {
	engine := NewEngine()
	tx := simpleTransfer()
	cohort := fullCohort()
	a := engine.ScoreTransaction(tx, EnrichmentBundle{}, cohort)
	b := engine.ScoreTransaction(tx, EnrichmentBundle{}, cohort)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("scoring not deterministic:\n%+v\n%+v", a, b)
	}
}

func TestScoreBatchPreservesOrder(t *testing.T) {
	engine := NewEngine()
	cohort := fullCohort()
	var txs []explorer.Transaction
	for i := 0; i < 32; i++ {
		txs = append(txs, explorer.Transaction{
			Hash:     fmt.Sprintf("0x%02d", i),
			GasUsed:  float64(20000 + i*1000),
			GasLimit: 200000,
			GasPrice: float64(10+i) * 1e9,
		})
	}
	out := engine.ScoreBatch(context.Background(), txs, nil, cohort)
	if len(out) != len(txs) {
		t.Fatalf("batch length = %d, want %d", len(out), len(txs))
	}
	for i, s := range out {
		if s.TxHash != txs[i].Hash {
			t.Fatalf("order lost at %d: %q vs %q", i, s.TxHash, txs[i].Hash)
		}
	}
}

func TestScoreBatchMissingEnrichment(t *testing.T) {
	engine := NewEngine()
	txs := []explorer.Transaction{simpleTransfer(), simpleTransfer()}
	enrichments := []EnrichmentBundle{{Interpreter: &explorer.InterpreterVerdict{RiskLevel: "low"}}}
	out := engine.ScoreBatch(context.Background(), txs, enrichments, fullCohort())
	if out[0].Subscores.RiskSecurity != 95 {
		t.Fatalf("enriched tx risk = %v, want 95", out[0].Subscores.RiskSecurity)
	}
	// Second transaction has no enrichment entry: neutral defaults.
	if out[1].Subscores.RiskSecurity != 100 {
		t.Fatalf("unenriched tx risk = %v, want 100", out[1].Subscores.RiskSecurity)
	}
}

func TestScoreBatchEmptyCohortStillScores(t *testing.T) {
	engine := NewEngine()
	out := engine.ScoreBatch(context.Background(), []explorer.Transaction{simpleTransfer()}, nil, CohortStats{})
	got := out[0]
	if got.FinalScore <= 0 || got.FinalScore > 100 {
		t.Fatalf("fallback final score out of range: %v", got.FinalScore)
	}
	// Fallback mode costs confidence relative to a full baseline.
	withCohort := engine.ScoreBatch(context.Background(), []explorer.Transaction{simpleTransfer()}, nil, fullCohort())
	if got.Confidence >= withCohort[0].Confidence {
		t.Fatalf("fallback confidence %v should be below baseline %v", got.Confidence, withCohort[0].Confidence)
	}
}
