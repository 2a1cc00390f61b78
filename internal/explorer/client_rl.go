package explorer

import "context"

// RLDataSource wraps a DataSource with a Limiter.
type RLDataSource struct {
	ds DataSource
	l  Limiter
}

func WrapWithLimiter(ds DataSource, l Limiter) DataSource { return RLDataSource{ds: ds, l: l} }

func (r RLDataSource) RecentBlocks(ctx context.Context, limit int) ([]Block, error) {
	if err := r.l.Wait(ctx); err != nil {
		return nil, err
	}
	return r.ds.RecentBlocks(ctx, limit)
}

func (r RLDataSource) BlockTransactions(ctx context.Context, number uint64, limit int) ([]BlockTransaction, error) {
	if err := r.l.Wait(ctx); err != nil {
		return nil, err
	}
	return r.ds.BlockTransactions(ctx, number, limit)
}

func (r RLDataSource) AddressTransactions(ctx context.Context, address string, limit int) ([]Transaction, error) {
	if err := r.l.Wait(ctx); err != nil {
		return nil, err
	}
	return r.ds.AddressTransactions(ctx, address, limit)
}

func (r RLDataSource) AddressInfo(ctx context.Context, address string) (*AddressInfo, error) {
	if err := r.l.Wait(ctx); err != nil {
		return nil, err
	}
	return r.ds.AddressInfo(ctx, address)
}

func (r RLDataSource) TransactionDetail(ctx context.Context, hash string) (*TransactionDetail, error) {
	if err := r.l.Wait(ctx); err != nil {
		return nil, err
	}
	return r.ds.TransactionDetail(ctx, hash)
}

func (r RLDataSource) InterpreterVerdict(ctx context.Context, hash string) (*InterpreterVerdict, error) {
	if err := r.l.Wait(ctx); err != nil {
		return nil, err
	}
	return r.ds.InterpreterVerdict(ctx, hash)
}

func (r RLDataSource) TransactionLogs(ctx context.Context, hash string) ([]LogEvent, error) {
	if err := r.l.Wait(ctx); err != nil {
		return nil, err
	}
	return r.ds.TransactionLogs(ctx, hash)
}

func (r RLDataSource) TokenTransfers(ctx context.Context, hash string) ([]TokenTransfer, error) {
	if err := r.l.Wait(ctx); err != nil {
		return nil, err
	}
	return r.ds.TokenTransfers(ctx, hash)
}
