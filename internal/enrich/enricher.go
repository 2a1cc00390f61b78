// Package enrich gathers the optional per-transaction context the scoring
// dimensions feed on: recipient metadata, decoded detail, interpreter
// verdict, event logs and token transfers. Every fetch is best-effort; a
// failed or timed-out call leaves its field absent and the scorers degrade
// to neutral defaults.
package enrich

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/walletscope/txscore/internal/explorer"
	"github.com/walletscope/txscore/internal/logging"
	"github.com/walletscope/txscore/internal/score"
)

const defaultCallTimeout = 10 * time.Second

// Enricher fans out explorer lookups per transaction.
type Enricher struct {
	ds          explorer.DataSource
	callTimeout time.Duration
}

func New(ds explorer.DataSource, callTimeout time.Duration) *Enricher {
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}
	return &Enricher{ds: ds, callTimeout: callTimeout}
}

// Fetch assembles the enrichment bundle for one transaction. All five
// lookups run concurrently with independent timeouts and are joined before
// returning; each branch swallows its own failure so siblings are unaffected.
func (e *Enricher) Fetch(ctx context.Context, tx explorer.Transaction) score.EnrichmentBundle {
	logger := logging.With("enrich")
	var bundle score.EnrichmentBundle

	g, gctx := errgroup.WithContext(ctx)
	if tx.To != "" {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, e.callTimeout)
			defer cancel()
			info, err := e.ds.AddressInfo(cctx, tx.To)
			if err != nil {
				logger.Debug("address_info_failed", "tx", tx.Hash, "error", err.Error())
				return nil
			}
			bundle.AddressInfo = info
			return nil
		})
	}
	g.Go(func() error {
		cctx, cancel := context.WithTimeout(gctx, e.callTimeout)
		defer cancel()
		detail, err := e.ds.TransactionDetail(cctx, tx.Hash)
		if err != nil {
			logger.Debug("transaction_detail_failed", "tx", tx.Hash, "error", err.Error())
			return nil
		}
		bundle.Detail = detail
		return nil
	})
	g.Go(func() error {
		cctx, cancel := context.WithTimeout(gctx, e.callTimeout)
		defer cancel()
		verdict, err := e.ds.InterpreterVerdict(cctx, tx.Hash)
		if err != nil {
			logger.Debug("interpreter_verdict_failed", "tx", tx.Hash, "error", err.Error())
			return nil
		}
		bundle.Interpreter = verdict
		return nil
	})
	g.Go(func() error {
		cctx, cancel := context.WithTimeout(gctx, e.callTimeout)
		defer cancel()
		logs, err := e.ds.TransactionLogs(cctx, tx.Hash)
		if err != nil {
			logger.Debug("transaction_logs_failed", "tx", tx.Hash, "error", err.Error())
			return nil
		}
		bundle.Logs = logs
		return nil
	})
	g.Go(func() error {
		cctx, cancel := context.WithTimeout(gctx, e.callTimeout)
		defer cancel()
		transfers, err := e.ds.TokenTransfers(cctx, tx.Hash)
		if err != nil {
			logger.Debug("token_transfers_failed", "tx", tx.Hash, "error", err.Error())
			return nil
		}
		bundle.TokenTransfers = transfers
		return nil
	})
	_ = g.Wait()
	return bundle
}

// FetchBatch enriches a batch concurrently, one independent fan-out per
// transaction. The result preserves input order; one transaction's failures
// never touch another's bundle.
func (e *Enricher) FetchBatch(ctx context.Context, txs []explorer.Transaction) []score.EnrichmentBundle {
	out := make([]score.EnrichmentBundle, len(txs))
	g, gctx := errgroup.WithContext(ctx)
	for i, tx := range txs {
		i, tx := i, tx
		g.Go(func() error {
			out[i] = e.Fetch(gctx, tx)
			return nil
		})
	}
	_ = g.Wait()
	return out
}
