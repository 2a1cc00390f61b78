package score

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/walletscope/txscore/internal/explorer"
	"github.com/walletscope/txscore/internal/logging"
)

type stubSource struct {
	mu        sync.Mutex
	blocks    []explorer.Block
	blocksErr error
	blockTx   map[uint64][]explorer.BlockTransaction
	failBlock map[uint64]bool
	calls     int
}

func (s *stubSource) RecentBlocks(context.Context, int) ([]explorer.Block, error) {
	return s.blocks, s.blocksErr
}

func (s *stubSource) BlockTransactions(_ context.Context, number uint64, _ int) ([]explorer.BlockTransaction, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.failBlock[number] {
		return nil, errors.New("upstream 502")
	}
	return s.blockTx[number], nil
}

func (s *stubSource) AddressTransactions(context.Context, string, int) ([]explorer.Transaction, error) {
	return nil, errors.New("not implemented")
}

func (s *stubSource) AddressInfo(context.Context, string) (*explorer.AddressInfo, error) {
	return nil, errors.New("not implemented")
}

func (s *stubSource) TransactionDetail(context.Context, string) (*explorer.TransactionDetail, error) {
	return nil, errors.New("not implemented")
}

func (s *stubSource) InterpreterVerdict(context.Context, string) (*explorer.InterpreterVerdict, error) {
	return nil, errors.New("not implemented")
}

func (s *stubSource) TransactionLogs(context.Context, string) ([]explorer.LogEvent, error) {
	return nil, errors.New("not implemented")
}

func (s *stubSource) TokenTransfers(context.Context, string) ([]explorer.TokenTransfer, error) {
	return nil, errors.New("not implemented")
}

func TestNewCohortBuilderValidation(t *testing.T) {
	if _, err := NewCohortBuilder(nil, 12, 600); err == nil {
		t.Fatal("nil data source must be rejected")
	}
	if _, err := NewCohortBuilder(&stubSource{}, 0, 600); err == nil {
		t.Fatal("zero block limit must be rejected")
	}
	if _, err := NewCohortBuilder(&stubSource{}, 12, -1); err == nil {
		t.Fatal("negative tx cap must be rejected")
	}
}

func TestCohortBuild(t *testing.T) {
	logging.DiscardLogging()
	newest, older := 15e9, 12e9
	src := &stubSource{
		blocks: []explorer.Block{
			{Number: 102, BaseFee: &newest},
			{Number: 101, BaseFee: &older},
			{Number: 100},
		},
		blockTx: map[uint64][]explorer.BlockTransaction{
			102: {{GasPrice: 20e9, Priority: fp(1e9)}, {MaxFee: 25e9}},
			101: {{GasPrice: 18e9, Priority: fp(2e9)}},
			100: {{GasPrice: 30e9}},
		},
	}
	b, err := NewCohortBuilder(src, 3, 600)
	if err != nil {
		t.Fatal(err)
	}
	stats := b.Build(context.Background())

	if stats.SampleBlocks != 3 || stats.SampleTxs != 4 {
		t.Fatalf("sample counts = %d blocks / %d txs", stats.SampleBlocks, stats.SampleTxs)
	}
	if stats.BaseFeeLast == nil || *stats.BaseFeeLast != newest {
		t.Fatalf("base fee last = %v, want newest block's %v", stats.BaseFeeLast, newest)
	}
	// Four effective gas prices (MaxFee counts when GasPrice is absent), two tips.
	if len(stats.GasPrice) != 3 || len(stats.Tip) != 3 {
		t.Fatalf("percentile maps incomplete: gas %v tip %v", stats.GasPrice, stats.Tip)
	}
	if stats.GasPrice[50] > stats.GasPrice[95] {
		t.Fatalf("gas thresholds not ordered: %v", stats.GasPrice)
	}
}

func TestCohortBuildPartialFailure(t *testing.T) {
	logging.DiscardLogging()
	src := &stubSource{
		blocks: []explorer.Block{{Number: 2}, {Number: 1}},
		blockTx: map[uint64][]explorer.BlockTransaction{
			1: {{GasPrice: 10e9}},
		},
		failBlock: map[uint64]bool{2: true},
	}
	b, _ := NewCohortBuilder(src, 2, 600)
	stats := b.Build(context.Background())
	if stats.SampleBlocks != 1 || stats.SampleTxs != 1 {
		t.Fatalf("partial failure: %d blocks / %d txs, want 1/1", stats.SampleBlocks, stats.SampleTxs)
	}
	if len(stats.GasPrice) == 0 {
		t.Fatal("surviving block must still yield a baseline")
	}
}

func TestCohortBuildTotalFailure(t *testing.T) {
	logging.DiscardLogging()
	src := &stubSource{blocksErr: errors.New("explorer down")}
	b, _ := NewCohortBuilder(src, 2, 600)
	stats := b.Build(context.Background())
	if !stats.Empty() {
		t.Fatalf("total failure must yield empty stats, got %+v", stats)
	}
	if stats.GasPrice == nil || stats.Tip == nil {
		t.Fatal("empty stats must carry empty maps, not nil")
	}
}

func TestCohortBuildRespectsTxCap(t *testing.T) {
	logging.DiscardLogging()
	many := make([]explorer.BlockTransaction, 50)
	for i := range many {
		many[i] = explorer.BlockTransaction{GasPrice: float64(10+i) * 1e9}
	}
	src := &stubSource{
		blocks:  []explorer.Block{{Number: 3}, {Number: 2}, {Number: 1}},
		blockTx: map[uint64][]explorer.BlockTransaction{3: many, 2: many, 1: many},
	}
	b, _ := NewCohortBuilder(src, 3, 70)
	stats := b.Build(context.Background())
	if stats.SampleTxs != 70 {
		t.Fatalf("sample txs = %d, want cap 70", stats.SampleTxs)
	}
	// The cap lands mid-second-block; the third block's results are discarded.
	if stats.SampleBlocks != 2 {
		t.Fatalf("sample blocks = %d, want 2", stats.SampleBlocks)
	}
}
