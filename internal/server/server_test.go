package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/walletscope/txscore/internal/config"
	"github.com/walletscope/txscore/internal/explain"
	"github.com/walletscope/txscore/internal/explorer"
	"github.com/walletscope/txscore/internal/logging"
)

const wallet = "0x94e2623a8637f85ac367940d5594ed4498fedb51"

type fakeSource struct {
	blocks  []explorer.Block
	blockTx map[uint64][]explorer.BlockTransaction
	txs     []explorer.Transaction
	txsErr  error
}

func (f *fakeSource) RecentBlocks(context.Context, int) ([]explorer.Block, error) {
	return f.blocks, nil
}

func (f *fakeSource) BlockTransactions(_ context.Context, number uint64, _ int) ([]explorer.BlockTransaction, error) {
	return f.blockTx[number], nil
}

func (f *fakeSource) AddressTransactions(context.Context, string, int) ([]explorer.Transaction, error) {
	return f.txs, f.txsErr
}

func (f *fakeSource) AddressInfo(context.Context, string) (*explorer.AddressInfo, error) {
	return nil, errors.New("not found")
}

func (f *fakeSource) TransactionDetail(context.Context, string) (*explorer.TransactionDetail, error) {
	return nil, errors.New("not found")
}

func (f *fakeSource) InterpreterVerdict(context.Context, string) (*explorer.InterpreterVerdict, error) {
	return nil, errors.New("not found")
}

func (f *fakeSource) TransactionLogs(context.Context, string) ([]explorer.LogEvent, error) {
	return nil, errors.New("not found")
}

func (f *fakeSource) TokenTransfers(context.Context, string) ([]explorer.TokenTransfer, error) {
	return nil, errors.New("not found")
}

func testServer(t *testing.T, fake *fakeSource, explainer *explain.Client) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logging.DiscardLogging()
	cfg := config.Config{TxLimit: 3, CohortBlocks: 2, CohortTxCap: 10, HTTPTimeout: time.Second}
	srv := New(cfg, map[string]explorer.DataSource{"mainnet": fake}, nil, explainer)
	return srv.Router()
}

func do(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestUnknownNetwork(t *testing.T) {
	r := testServer(t, &fakeSource{}, nil)
	w := do(t, r, http.MethodGet, "/transactions/ropsten/"+wallet, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d want 404", w.Code)
	}
}

func TestInvalidAddress(t *testing.T) {
	r := testServer(t, &fakeSource{}, nil)
	for _, bad := range []string{"nothex", "0x1234", "0x5aaeb6053F3E94C9b9A09f33669435E7Ef1BeAed"} {
		w := do(t, r, http.MethodGet, "/transactions/mainnet/"+bad, "")
		if w.Code != http.StatusBadRequest {
			t.Fatalf("address %q: status = %d want 400", bad, w.Code)
		}
	}
}

func TestListTransactions(t *testing.T) {
	fake := &fakeSource{txs: []explorer.Transaction{
		{Hash: "0x1", GasUsed: 21000, GasLimit: 21000},
		{Hash: "0x2", GasUsed: 50000, GasLimit: 90000},
	}}
	r := testServer(t, fake, nil)
	w := do(t, r, http.MethodGet, "/transactions/mainnet/"+wallet, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", w.Code, w.Body.String())
	}
	var resp struct {
		Count   int    `json:"count"`
		Network string `json:"network"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 2 || resp.Network != "mainnet" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if got := w.Header().Get("X-Request-ID"); got == "" {
		t.Fatal("request ID header missing")
	}
}

func TestListTransactionsExplorerFailure(t *testing.T) {
	r := testServer(t, &fakeSource{txsErr: errors.New("boom")}, nil)
	w := do(t, r, http.MethodGet, "/transactions/mainnet/"+wallet, "")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d want 502", w.Code)
	}
}

func TestScoreTransactions(t *testing.T) {
	base := 10e9
	fake := &fakeSource{
		blocks: []explorer.Block{{Number: 2, BaseFee: &base}, {Number: 1, BaseFee: &base}},
		blockTx: map[uint64][]explorer.BlockTransaction{
			1: {{GasPrice: 12e9}, {GasPrice: 15e9}},
			2: {{GasPrice: 11e9}, {GasPrice: 20e9}},
		},
		txs: []explorer.Transaction{
			{Hash: "0xaa", GasUsed: 21000, GasLimit: 21000, GasPrice: 12e9, Types: []string{"coin_transfer"}},
			{Hash: "0xbb", GasUsed: 40000, GasLimit: 90000, GasPrice: 30e9},
		},
	}
	r := testServer(t, fake, nil)
	w := do(t, r, http.MethodGet, "/transactions/mainnet/"+wallet+"/scores", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", w.Code, w.Body.String())
	}
	var resp struct {
		Count        int `json:"count"`
		CohortBlocks int `json:"cohort_blocks"`
		Transactions []struct {
			TxHash     string  `json:"tx_hash"`
			FinalScore float64 `json:"final_score"`
			RiskLevel  string  `json:"risk_level"`
		} `json:"transactions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 2 || resp.CohortBlocks != 2 {
		t.Fatalf("unexpected envelope: %+v", resp)
	}
	// Order preserved regardless of scoring concurrency.
	if resp.Transactions[0].TxHash != "0xaa" || resp.Transactions[1].TxHash != "0xbb" {
		t.Fatalf("order lost: %+v", resp.Transactions)
	}
	for _, tx := range resp.Transactions {
		if tx.FinalScore < 0 || tx.FinalScore > 100 {
			t.Fatalf("final score out of range: %+v", tx)
		}
		if tx.RiskLevel == "" {
			t.Fatalf("missing risk level: %+v", tx)
		}
	}
}

func TestExplainUnconfigured(t *testing.T) {
	r := testServer(t, &fakeSource{}, nil)
	w := do(t, r, http.MethodPost, "/explain", `{"network":"mainnet","address":"`+wallet+`","transactions":[]}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d want 503", w.Code)
	}
}

type rtFunc func(req *http.Request) (*http.Response, error)

func (f rtFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func TestExplain(t *testing.T) {
	reply := `{"choices":[{"message":{"content":"{\"per_dimension\":{\"economic\":{\"why\":\"fine\",\"how_to_improve\":\"nothing\"}},\"overall_comment\":\"good\"}"}}]}`
	hc := &http.Client{Transport: rtFunc(func(*http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(reply))}, nil
	})}
	explainer, err := explain.New(explain.Config{BaseURL: "http://ai.local", Model: "asi1-mini"}, hc)
	if err != nil {
		t.Fatal(err)
	}
	r := testServer(t, &fakeSource{}, explainer)

	body := `{"network":"mainnet","address":"` + wallet + `","transactions":[{"tx_hash":"0x1"}]}`
	w := do(t, r, http.MethodPost, "/explain", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", w.Code, w.Body.String())
	}
	var resp struct {
		Explanations []explain.TxExplanation `json:"explanations"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Explanations) != 1 || resp.Explanations[0].TxHash != "0x1" {
		t.Fatalf("unexpected explanations: %+v", resp.Explanations)
	}
	if resp.Explanations[0].OverallComment != "good" {
		t.Fatalf("comment lost: %+v", resp.Explanations[0])
	}
}
