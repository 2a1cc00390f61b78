package explorer

import (
	"container/list"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/walletscope/txscore/internal/logging"
)

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// httpClient is a minimal REST client for Blockscout-style explorer APIs.
// It intentionally leaves rate limiting to wrappers (RLDataSource).
type httpClient struct {
	base        string
	providerLbl string
	hc          httpDoer
	maxRetries  int
	backoffBase time.Duration
	addrCache   *addressCache
}

const (
	defaultAddressCacheSize = 1024
	defaultAddressCacheTTL  = 5 * time.Minute
)

// NewHTTPClient constructs an explorer client for the given base URL using the
// provided http.Client (or a default one if nil).
func NewHTTPClient(base string, client *http.Client) (DataSource, error) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return nil, fmt.Errorf("empty explorer base URL")
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &httpClient{
		base:        base,
		providerLbl: deriveProviderLabel(base),
		hc:          client,
		maxRetries:  2,
		backoffBase: 100 * time.Millisecond,
		addrCache:   newAddressCache(defaultAddressCacheSize, defaultAddressCacheTTL),
	}, nil
}

func deriveProviderLabel(endpoint string) string {
	if u, err := url.Parse(endpoint); err == nil {
		u.User = nil
		if u.Host != "" {
			return u.Host
		}
	}
	return endpoint
}

// getJSON issues a GET with bounded retries. Network errors, 5xx and 429
// responses are retried with exponential backoff; other statuses fail fast.
func (c *httpClient) getJSON(ctx context.Context, path string, out any) error {
	var lastErr error
	attempts := c.maxRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		resp, err := c.hc.Do(req)
		retriable := true
		if err != nil {
			lastErr = err
		} else {
			func() {
				defer func() { _ = resp.Body.Close() }()
				if resp.StatusCode/100 != 2 {
					b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
					lastErr = fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
					if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode < 500 {
						retriable = false
					}
					return
				}
				lastErr = json.NewDecoder(resp.Body).Decode(out)
				retriable = false
			}()
			if lastErr == nil {
				return nil
			}
			if !retriable {
				return lastErr
			}
		}
		if attempt < attempts-1 {
			d := c.backoffBase * (1 << attempt)
			t := time.NewTimer(d)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
	}
	return lastErr
}

// weiValue decodes explorer fee fields that arrive as decimal strings, JSON
// numbers or null. Malformed values decode to zero rather than failing the
// whole payload.
type weiValue float64

func (w *weiValue) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == `""` {
		*w = 0
		return nil
	}
	s = strings.Trim(s, `"`)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*w = 0
		return nil
	}
	*w = weiValue(f)
	return nil
}

type wireAddressRef struct {
	Hash       string `json:"hash"`
	IsContract bool   `json:"is_contract"`
	IsVerified bool   `json:"is_verified"`
	IsScam     bool   `json:"is_scam"`
}

type wireBlock struct {
	Height  uint64   `json:"height"`
	BaseFee weiValue `json:"base_fee_per_gas"`
	// Blockscout omits base_fee_per_gas on pre-London blocks; detect absence
	// by re-scanning the raw item, not by the zero value.
}

func (c *httpClient) RecentBlocks(ctx context.Context, limit int) ([]Block, error) {
	var payload struct {
		Items []json.RawMessage `json:"items"`
	}
	if err := c.getJSON(ctx, "/api/v2/blocks?type=block", &payload); err != nil {
		return nil, err
	}
	out := make([]Block, 0, limit)
	for _, raw := range payload.Items {
		if len(out) >= limit {
			break
		}
		var wb wireBlock
		if err := json.Unmarshal(raw, &wb); err != nil {
			continue
		}
		b := Block{Number: wb.Height}
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(raw, &probe); err == nil {
			if v, ok := probe["base_fee_per_gas"]; ok && string(v) != "null" {
				fee := float64(wb.BaseFee)
				b.BaseFee = &fee
			}
		}
		out = append(out, b)
	}
	return out, nil
}

type wireBlockTx struct {
	GasPrice weiValue        `json:"gas_price"`
	MaxFee   weiValue        `json:"max_fee_per_gas"`
	Priority json.RawMessage `json:"max_priority_fee_per_gas"`
}

func (c *httpClient) BlockTransactions(ctx context.Context, number uint64, limit int) ([]BlockTransaction, error) {
	var payload struct {
		Items []wireBlockTx `json:"items"`
	}
	path := fmt.Sprintf("/api/v2/blocks/%d/transactions", number)
	if err := c.getJSON(ctx, path, &payload); err != nil {
		return nil, err
	}
	out := make([]BlockTransaction, 0, len(payload.Items))
	for _, it := range payload.Items {
		if len(out) >= limit {
			break
		}
		bt := BlockTransaction{GasPrice: float64(it.GasPrice), MaxFee: float64(it.MaxFee)}
		if tip, ok := decodeOptionalWei(it.Priority); ok {
			bt.Priority = &tip
		}
		out = append(out, bt)
	}
	return out, nil
}

func decodeOptionalWei(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var w weiValue
	if err := w.UnmarshalJSON(raw); err != nil {
		return 0, false
	}
	return float64(w), true
}

type wireTx struct {
	Hash     string          `json:"hash"`
	From     wireAddressRef  `json:"from"`
	To       *wireAddressRef `json:"to"`
	GasUsed  weiValue        `json:"gas_used"`
	GasLimit weiValue        `json:"gas_limit"`
	GasPrice weiValue        `json:"gas_price"`
	MaxFee   weiValue        `json:"max_fee_per_gas"`
	Priority weiValue        `json:"max_priority_fee_per_gas"`
	BaseFee  json.RawMessage `json:"base_fee_per_gas"`
	Value    string          `json:"value"`
	Status   string          `json:"status"`
	Types    []string        `json:"transaction_types"`
}

func (c *httpClient) AddressTransactions(ctx context.Context, address string, limit int) (result []Transaction, err error) {
	start := time.Now()
	logger := logging.With("explorer.http_client")
	defer func() {
		fields := []any{
			"provider", c.providerLbl,
			"address", strings.ToLower(address),
			"tx_returned", len(result),
			"elapsed_ms", time.Since(start).Milliseconds(),
		}
		if err != nil {
			logger.Warn("address_transactions_failed", append(fields, "error", err.Error())...)
			return
		}
		logger.Info("address_transactions", fields...)
	}()

	var payload struct {
		Items []wireTx `json:"items"`
	}
	path := "/api/v2/addresses/" + url.PathEscape(address) + "/transactions"
	if err = c.getJSON(ctx, path, &payload); err != nil {
		return nil, err
	}
	result = make([]Transaction, 0, limit)
	for _, it := range payload.Items {
		if len(result) >= limit {
			break
		}
		tx := Transaction{
			Hash:        it.Hash,
			From:        strings.ToLower(it.From.Hash),
			GasUsed:     float64(it.GasUsed),
			GasLimit:    float64(it.GasLimit),
			GasPrice:    float64(it.GasPrice),
			MaxFee:      float64(it.MaxFee),
			PriorityFee: float64(it.Priority),
			ValueWei:    it.Value,
			Status:      it.Status,
			Types:       it.Types,
		}
		if fee, ok := decodeOptionalWei(it.BaseFee); ok {
			tx.BaseFee = &fee
		}
		if it.To != nil {
			tx.To = strings.ToLower(it.To.Hash)
			tx.ToIsContract = it.To.IsContract
			tx.ToIsVerified = it.To.IsVerified
			tx.ToIsScam = it.To.IsScam
		}
		result = append(result, tx)
	}
	return result, nil
}

type wireAddressInfo struct {
	Hash          string          `json:"hash"`
	Balance       string          `json:"coin_balance"`
	IsContract    bool            `json:"is_contract"`
	IsVerified    bool            `json:"is_verified"`
	IsScam        bool            `json:"is_scam"`
	CreationBlock json.RawMessage `json:"creation_block_number"`
	Contract      *struct {
		IsVerified bool `json:"is_verified"`
	} `json:"contract"`
	PublicTags []struct {
		DisplayName string `json:"display_name"`
	} `json:"public_tags"`
}

func (c *httpClient) AddressInfo(ctx context.Context, address string) (*AddressInfo, error) {
	key := strings.ToLower(address)
	if cached, ok := c.addrCache.get(key, time.Now()); ok {
		return cached, nil
	}
	var wi wireAddressInfo
	if err := c.getJSON(ctx, "/api/v2/addresses/"+url.PathEscape(address), &wi); err != nil {
		return nil, err
	}
	info := &AddressInfo{
		Hash:       strings.ToLower(wi.Hash),
		BalanceWei: wi.Balance,
		IsContract: wi.IsContract,
		IsVerified: wi.IsVerified,
		IsScam:     wi.IsScam,
	}
	if blk, ok := decodeOptionalWei(wi.CreationBlock); ok {
		n := uint64(blk)
		info.CreationBlock = &n
	}
	if wi.Contract != nil {
		info.Contract = &ContractInfo{IsVerified: wi.Contract.IsVerified}
	}
	for _, tag := range wi.PublicTags {
		if tag.DisplayName != "" {
			info.PublicTags = append(info.PublicTags, tag.DisplayName)
		}
	}
	c.addrCache.add(key, info, time.Now())
	return info, nil
}

func (c *httpClient) TransactionDetail(ctx context.Context, hash string) (*TransactionDetail, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, "/api/v2/transactions/"+url.PathEscape(hash), &raw); err != nil {
		return nil, err
	}
	var wd struct {
		Method string          `json:"method"`
		To     *wireAddressRef `json:"to"`
		Types  []string        `json:"transaction_types"`
	}
	if err := json.Unmarshal(raw, &wd); err != nil {
		return nil, err
	}
	detail := &TransactionDetail{Method: wd.Method, Types: wd.Types, Raw: raw}
	if wd.To != nil {
		detail.To = &RecipientInfo{
			Hash:       strings.ToLower(wd.To.Hash),
			IsContract: wd.To.IsContract,
			IsVerified: wd.To.IsVerified,
		}
	}
	return detail, nil
}

func (c *httpClient) InterpreterVerdict(ctx context.Context, hash string) (*InterpreterVerdict, error) {
	var wv struct {
		RiskLevel      string   `json:"risk_level"`
		Classification string   `json:"classification"`
		Confidence     weiValue `json:"confidence"`
		Data           *struct {
			RiskLevel      string   `json:"risk_level"`
			Classification string   `json:"classification"`
			Confidence     weiValue `json:"confidence"`
		} `json:"data"`
	}
	if err := c.getJSON(ctx, "/api/v2/transactions/"+url.PathEscape(hash)+"/summary", &wv); err != nil {
		return nil, err
	}
	v := &InterpreterVerdict{
		RiskLevel:      wv.RiskLevel,
		Classification: wv.Classification,
		Confidence:     float64(wv.Confidence),
	}
	if wv.Data != nil {
		if v.RiskLevel == "" {
			v.RiskLevel = wv.Data.RiskLevel
		}
		if v.Classification == "" {
			v.Classification = wv.Data.Classification
		}
		if v.Confidence == 0 {
			v.Confidence = float64(wv.Data.Confidence)
		}
	}
	if v.RiskLevel == "" && v.Classification == "" {
		// Interpreter responded but carried no verdict; treat as absent.
		return nil, nil
	}
	return v, nil
}

func (c *httpClient) TransactionLogs(ctx context.Context, hash string) ([]LogEvent, error) {
	var payload struct {
		Items []struct {
			Address wireAddressRef `json:"address"`
			Topics  []string       `json:"topics"`
			Data    string         `json:"data"`
			Index   uint32         `json:"index"`
		} `json:"items"`
	}
	if err := c.getJSON(ctx, "/api/v2/transactions/"+url.PathEscape(hash)+"/logs", &payload); err != nil {
		return nil, err
	}
	out := make([]LogEvent, 0, len(payload.Items))
	for _, it := range payload.Items {
		out = append(out, LogEvent{
			Address: strings.ToLower(it.Address.Hash),
			Topics:  it.Topics,
			Data:    it.Data,
			Index:   it.Index,
		})
	}
	return out, nil
}

func (c *httpClient) TokenTransfers(ctx context.Context, hash string) ([]TokenTransfer, error) {
	var payload struct {
		Items []struct {
			Token struct {
				Address  string   `json:"address"`
				Symbol   string   `json:"symbol"`
				Decimals weiValue `json:"decimals"`
			} `json:"token"`
			From  wireAddressRef `json:"from"`
			To    wireAddressRef `json:"to"`
			Total struct {
				Value string `json:"value"`
			} `json:"total"`
		} `json:"items"`
	}
	if err := c.getJSON(ctx, "/api/v2/transactions/"+url.PathEscape(hash)+"/token-transfers", &payload); err != nil {
		return nil, err
	}
	out := make([]TokenTransfer, 0, len(payload.Items))
	for _, it := range payload.Items {
		out = append(out, TokenTransfer{
			TokenAddress: strings.ToLower(it.Token.Address),
			TokenSymbol:  it.Token.Symbol,
			From:         strings.ToLower(it.From.Hash),
			To:           strings.ToLower(it.To.Hash),
			ValueRaw:     it.Total.Value,
			Decimals:     int(it.Token.Decimals),
		})
	}
	return out, nil
}

// addressCache is a small LRU with TTL for address metadata lookups.
type addressCacheEntry struct {
	key       string
	value     *AddressInfo
	expiresAt time.Time
}

type addressCache struct {
	mu      sync.Mutex
	max     int
	ttl     time.Duration
	entries map[string]*list.Element
	ordered *list.List
}

func newAddressCache(max int, ttl time.Duration) *addressCache {
	if max <= 0 {
		max = defaultAddressCacheSize
	}
	if ttl <= 0 {
		ttl = defaultAddressCacheTTL
	}
	return &addressCache{
		max:     max,
		ttl:     ttl,
		entries: make(map[string]*list.Element, max),
		ordered: list.New(),
	}
}

func (c *addressCache) get(key string, now time.Time) (*AddressInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		e := el.Value.(*addressCacheEntry)
		if !now.Before(e.expiresAt) {
			c.removeElement(el)
			return nil, false
		}
		c.ordered.MoveToFront(el)
		return e.value, true
	}
	return nil, false
}

func (c *addressCache) add(key string, value *AddressInfo, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		e := el.Value.(*addressCacheEntry)
		e.value = value
		e.expiresAt = now.Add(c.ttl)
		c.ordered.MoveToFront(el)
		return
	}
	el := c.ordered.PushFront(&addressCacheEntry{key: key, value: value, expiresAt: now.Add(c.ttl)})
	c.entries[key] = el
	for c.ordered.Len() > c.max {
		c.removeElement(c.ordered.Back())
	}
}

func (c *addressCache) removeElement(el *list.Element) {
	entry := el.Value.(*addressCacheEntry)
	delete(c.entries, entry.key)
	c.ordered.Remove(el)
}
