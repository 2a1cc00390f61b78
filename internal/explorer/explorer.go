package explorer

import (
	"context"
	"encoding/json"
)

// DataSource defines the block-explorer surface the scoring engine needs.
// Concrete adapters (Blockscout-style REST APIs) satisfy this interface.
// Note: fee values are wei magnitudes; they arrive as decimal strings on the
// wire and are parsed at the edge. Zero means the field was absent.
type DataSource interface {
	// RecentBlocks returns up to limit most recent blocks, newest first.
	RecentBlocks(ctx context.Context, limit int) ([]Block, error)

	// BlockTransactions returns up to limit transactions of one block.
	BlockTransactions(ctx context.Context, number uint64, limit int) ([]BlockTransaction, error)

	// AddressTransactions returns the most recent transactions touching an
	// address, newest first.
	AddressTransactions(ctx context.Context, address string, limit int) ([]Transaction, error)

	// AddressInfo returns metadata for an address (balance, verification,
	// reputation). Implementations may cache.
	AddressInfo(ctx context.Context, address string) (*AddressInfo, error)

	// TransactionDetail returns the decoded view of a transaction.
	TransactionDetail(ctx context.Context, hash string) (*TransactionDetail, error)

	// InterpreterVerdict returns the explorer's classification of a
	// transaction, when the interpreter supports it.
	InterpreterVerdict(ctx context.Context, hash string) (*InterpreterVerdict, error)

	// TransactionLogs returns the event logs emitted by a transaction.
	TransactionLogs(ctx context.Context, hash string) ([]LogEvent, error)

	// TokenTransfers returns the token transfers touching a transaction.
	TokenTransfers(ctx context.Context, hash string) ([]TokenTransfer, error)
}

// Block is the slice of a block header the cohort sampler needs.
type Block struct {
	Number  uint64
	BaseFee *float64 // wei; nil when the block predates EIP-1559 or was not reported
}

// BlockTransaction carries the fee fields of one sampled transaction.
type BlockTransaction struct {
	GasPrice float64  // wei
	MaxFee   float64  // wei (EIP-1559 maxFeePerGas)
	Priority *float64 // wei (maxPriorityFeePerGas); nil when absent
}

// EffectiveGasPrice prefers the legacy gas price and falls back to the fee cap.
func (t BlockTransaction) EffectiveGasPrice() float64 {
	if t.GasPrice != 0 {
		return t.GasPrice
	}
	return t.MaxFee
}

// Transaction is the raw on-chain view of one wallet transaction.
type Transaction struct {
	Hash string
	From string
	To   string

	GasUsed     float64
	GasLimit    float64
	GasPrice    float64  // wei
	MaxFee      float64  // wei
	PriorityFee float64  // wei
	BaseFee     *float64 // wei; nil when unknown

	ValueWei string
	Status   string   // "ok", "error" or "" when pending/unknown
	Types    []string // explorer tags, e.g. "coin_transfer", "token_transfer"

	ToIsContract bool
	ToIsVerified bool
	ToIsScam     bool
}

// EffectiveGasPrice prefers the legacy gas price and falls back to the fee cap.
func (t Transaction) EffectiveGasPrice() float64 {
	if t.GasPrice != 0 {
		return t.GasPrice
	}
	return t.MaxFee
}

// ContractInfo is the nested contract view of an address payload.
type ContractInfo struct {
	IsVerified bool
}

// AddressInfo is explorer metadata about an address. Every field is optional;
// zero values mean the explorer did not report the field.
type AddressInfo struct {
	Hash          string
	BalanceWei    string
	IsContract    bool
	IsVerified    bool
	IsScam        bool
	CreationBlock *uint64
	Contract      *ContractInfo
	PublicTags    []string
}

// RecipientInfo is the decoded recipient of a transaction detail payload.
type RecipientInfo struct {
	Hash       string
	IsContract bool
	IsVerified bool
}

// TransactionDetail is the decoded view of one transaction.
type TransactionDetail struct {
	Method string
	To     *RecipientInfo
	Types  []string
	// Raw keeps the serialized payload for heuristics that scan the whole
	// decoded body (e.g. DEX name matching).
	Raw json.RawMessage
}

// InterpreterVerdict is the explorer interpreter's classification.
type InterpreterVerdict struct {
	RiskLevel      string  `json:"risk_level,omitempty"`
	Classification string  `json:"classification,omitempty"`
	Confidence     float64 `json:"confidence,omitempty"`
}

// LogEvent is one emitted event log.
type LogEvent struct {
	Address string
	Topics  []string
	Data    string
	Index   uint32
}

// TokenTransfer is one token movement inside a transaction.
type TokenTransfer struct {
	TokenAddress string
	TokenSymbol  string
	From         string
	To           string
	ValueRaw     string
	Decimals     int
}
