package score

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/walletscope/txscore/internal/explorer"
	"github.com/walletscope/txscore/internal/logging"
)

const (
	// DefaultCohortBlocks and DefaultCohortTxCap bound the recent sample the
	// cohort baseline is computed from.
	DefaultCohortBlocks = 12
	DefaultCohortTxCap  = 600

	perBlockTxCap = 200
)

// CohortBuilder samples recent blocks and their transactions to produce the
// shared fee baseline for a scoring batch.
type CohortBuilder struct {
	ds         explorer.DataSource
	blockLimit int
	txCap      int
}

// NewCohortBuilder validates its caps at construction time: non-positive
// bounds are a programmer error, not a runtime degradation.
func NewCohortBuilder(ds explorer.DataSource, blockLimit, txCap int) (*CohortBuilder, error) {
	if ds == nil {
		return nil, fmt.Errorf("cohort builder requires a data source")
	}
	if blockLimit <= 0 {
		return nil, fmt.Errorf("blockLimit must be > 0, got %d", blockLimit)
	}
	if txCap <= 0 {
		return nil, fmt.Errorf("txCap must be > 0, got %d", txCap)
	}
	return &CohortBuilder{ds: ds, blockLimit: blockLimit, txCap: txCap}, nil
}

// Build fetches up to blockLimit recent blocks, fans out one transaction
// fetch per block, joins them all, and computes the 50/80/95 percentiles of
// effective gas price and priority tip over at most txCap transactions.
// Every fetch failure is swallowed: partial data still yields a usable
// baseline, and total failure yields empty stats that downstream scoring
// handles through its fallback paths.
func (b *CohortBuilder) Build(ctx context.Context) CohortStats {
	start := time.Now()
	logger := logging.With("score.cohort")
	stats := CohortStats{GasPrice: Percentiles{}, Tip: Percentiles{}}

	blocks, err := b.ds.RecentBlocks(ctx, b.blockLimit)
	if err != nil {
		logger.Warn("recent_blocks_failed", "error", err.Error())
		return stats
	}
	if len(blocks) == 0 {
		return stats
	}
	// Blocks arrive newest first; the first reported base fee is the latest.
	for _, blk := range blocks {
		if blk.BaseFee != nil {
			fee := *blk.BaseFee
			stats.BaseFeeLast = &fee
			break
		}
	}

	// One fan-out batch, all branches started together. Branch failures are
	// recorded as missing results, never propagated, so one bad block cannot
	// abort its siblings.
	results := make([][]explorer.BlockTransaction, len(blocks))
	g, gctx := errgroup.WithContext(ctx)
	for i, blk := range blocks {
		i, blk := i, blk
		g.Go(func() error {
			txs, err := b.ds.BlockTransactions(gctx, blk.Number, perBlockTxCap)
			if err != nil {
				logger.Debug("block_transactions_failed", "block", blk.Number, "error", err.Error())
				return nil
			}
			results[i] = txs
			return nil
		})
	}
	_ = g.Wait()

	// Consume joined results in block order up to the global cap. Results from
	// already-dispatched fetches past the cap are simply discarded.
	var gasPrices, tips []float64
	total := 0
	for i := range results {
		if total >= b.txCap {
			break
		}
		if results[i] == nil {
			continue
		}
		stats.SampleBlocks++
		for _, tx := range results[i] {
			if total >= b.txCap {
				break
			}
			total++
			if egp := tx.EffectiveGasPrice(); egp > 0 {
				gasPrices = append(gasPrices, egp)
			}
			if tx.Priority != nil {
				tips = append(tips, *tx.Priority)
			}
		}
	}
	stats.SampleTxs = total
	stats.GasPrice = ComputePercentiles(gasPrices)
	stats.Tip = ComputePercentiles(tips)

	logger.Info("cohort_built",
		"blocks_sampled", stats.SampleBlocks,
		"tx_sampled", stats.SampleTxs,
		"gas_pctl", len(stats.GasPrice) > 0,
		"tip_pctl", len(stats.Tip) > 0,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return stats
}
