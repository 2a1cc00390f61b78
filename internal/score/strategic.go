package score

import "strings"

// Intent labels assigned by the strategic classifier.
const (
	IntentTransfer     = "transfer"
	IntentSwap         = "swap"
	IntentApprove      = "approve"
	IntentContractCall = "contract_call"
)

// Known DEX names scanned for in the decoded transaction payload. A swap
// routed through an aggregator often lacks "swap" in its method name but
// mentions the venue somewhere in the decoded body.
var dexNames = []string{"uniswap", "sushiswap", "pancakeswap", "curve", "1inch", "balancer"}

// classifyIntent derives a coarse intent from the decoded method name and the
// presence of token transfers. No token transfers means a plain transfer.
func classifyIntent(enr EnrichmentBundle) string {
	if len(enr.TokenTransfers) == 0 {
		return IntentTransfer
	}
	method := ""
	raw := ""
	if enr.Detail != nil {
		method = strings.ToLower(enr.Detail.Method)
		raw = strings.ToLower(string(enr.Detail.Raw))
	}
	switch {
	case strings.Contains(method, "swap") || mentionsDEX(raw):
		return IntentSwap
	case strings.Contains(method, "approve"):
		return IntentApprove
	default:
		return IntentContractCall
	}
}

func mentionsDEX(raw string) bool {
	if raw == "" {
		return false
	}
	for _, name := range dexNames {
		if strings.Contains(raw, name) {
			return true
		}
	}
	return false
}

// strategicScore maps the classified intent to a fixed base score.
// Intentionally coarse; the score reflects typical value-for-risk of the
// intent class, not the specific tokens involved.
func strategicScore(enr EnrichmentBundle) (float64, []Explanation) {
	intent := classifyIntent(enr)
	var strategic float64
	switch intent {
	case IntentTransfer:
		strategic = 85
	case IntentSwap:
		strategic = 75
	case IntentApprove:
		strategic = 60
	default:
		strategic = 70
	}
	expl := []Explanation{{Label: "Intent classification", Value: intent, Delta: 0}}
	return strategic, expl
}
