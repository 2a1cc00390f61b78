// Package explain turns scored transactions into natural-language
// explanations through a chat-completions style API. It is a presentation
// collaborator: scoring never depends on it, and its configuration arrives
// as an explicit value so both sides stay independently testable.
package explain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/walletscope/txscore/internal/score"
)

// Config selects the model endpoint and credentials for one client. No field
// is read from process-wide state.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client calls the configured chat-completions endpoint.
type Client struct {
	cfg Config
	hc  httpDoer
}

// New builds a client; a nil http.Client gets a default with the configured
// timeout.
func New(cfg Config, hc *http.Client) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("explain: empty base URL")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("explain: empty model")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, hc: hc}, nil
}

// PerDimExplanation explains one scoring dimension.
type PerDimExplanation struct {
	Why          string `json:"why"`
	HowToImprove string `json:"how_to_improve"`
}

// TxExplanation is the model's structured explanation for one transaction.
type TxExplanation struct {
	TxHash         string                       `json:"tx_hash"`
	PerDimension   map[string]PerDimExplanation `json:"per_dimension"`
	OverallComment string                       `json:"overall_comment"`
	Scores         score.Subscores              `json:"scores"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ExplainTransaction prompts the model for one transaction and parses its
// JSON reply. Unlike scoring, failures here surface as errors: explanation is
// a user-initiated operation with nothing sensible to degrade to.
func (c *Client) ExplainTransaction(ctx context.Context, network, address string, tx score.ScoredTransaction) (*TxExplanation, error) {
	content, err := c.chat(ctx, buildPrompt(network, address, tx))
	if err != nil {
		return nil, err
	}
	var out TxExplanation
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return nil, fmt.Errorf("explain: model returned non-JSON reply: %w", err)
	}
	// The model echoes back a hash; trust ours.
	out.TxHash = tx.TxHash
	out.Scores = tx.Subscores
	return &out, nil
}

// ExplainBatch explains transactions one at a time to keep replies short and
// parseable. The first failure aborts the batch.
func (c *Client) ExplainBatch(ctx context.Context, network, address string, txs []score.ScoredTransaction) ([]TxExplanation, error) {
	out := make([]TxExplanation, 0, len(txs))
	for _, tx := range txs {
		e, err := c.ExplainTransaction(ctx, network, address, tx)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, nil
}

func (c *Client) chat(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:    c.cfg.Model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("explain: model API returned %d", resp.StatusCode)
	}
	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", err
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("explain: model API returned no choices")
	}
	return cr.Choices[0].Message.Content, nil
}

func buildPrompt(network, address string, tx score.ScoredTransaction) string {
	payload, _ := json.Marshal(map[string]any{
		"network": network,
		"address": address,
		"tx": map[string]any{
			"tx_hash":      tx.TxHash,
			"subscores":    tx.Subscores,
			"final_score":  tx.FinalScore,
			"risk_level":   tx.RiskLevel,
			"confidence":   tx.Confidence,
			"explanations": tx.Explanations,
		},
	})
	var b strings.Builder
	b.WriteString("You are explaining a blockchain transaction quality score to a wallet owner.\n")
	b.WriteString("Given the scored transaction below, reply with JSON only, shaped as\n")
	b.WriteString(`{"per_dimension":{"economic":{"why":"...","how_to_improve":"..."},"technical":{...},"risk_security":{...},"strategic":{...}},"overall_comment":"..."}`)
	b.WriteString("\nKeep each field under two sentences.\n\n")
	b.Write(payload)
	return b.String()
}
