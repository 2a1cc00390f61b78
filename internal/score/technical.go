package score

import (
	"math"
	"slices"
	"strings"

	"github.com/walletscope/txscore/internal/explorer"
)

// technicalScore rewards gas utilization in the 0.7-0.98 sweet spot and
// penalizes waste on either side. Exact-limit simple coin transfers
// (21000/21000) are expected behavior and earn a small bonus instead of the
// near-limit penalty.
func technicalScore(tx explorer.Transaction, enr EnrichmentBundle) (float64, []Explanation) {
	var expl []Explanation
	ratio := safeDiv(tx.GasUsed, tx.GasLimit, 0)
	technical := 100.0

	method := ""
	txTypes := tx.Types
	if enr.Detail != nil {
		method = strings.TrimSpace(enr.Detail.Method)
		if len(txTypes) == 0 {
			txTypes = enr.Detail.Types
		}
	}
	isSimpleTransfer := len(enr.TokenTransfers) == 0 && method == "" && slices.Contains(txTypes, "coin_transfer")

	switch {
	case ratio == 0:
		technical -= 40
		expl = append(expl, Explanation{Label: "No gas used info", Delta: -40})
	case ratio < 0.5:
		penalty := (0.5 - ratio) * 60
		technical -= penalty
		expl = append(expl, Explanation{Label: "Low gas utilization", Value: round3(ratio), Delta: -round2(penalty)})
	case ratio > 0.98:
		if isSimpleTransfer {
			technical += 2
			expl = append(expl, Explanation{Label: "Exact gas limit transfer", Value: round3(ratio), Delta: 2})
		} else {
			penalty := (ratio - 0.98) * 100
			technical -= penalty
			expl = append(expl, Explanation{Label: "High gas utilization (out-of-gas risk)", Value: round3(ratio), Delta: -round2(penalty)})
		}
	default:
		bonus := math.Min(5, (ratio-0.7)*20)
		technical += bonus
		expl = append(expl, Explanation{Label: "Good gas utilization", Value: round3(ratio), Delta: round2(bonus)})
	}
	return clamp(technical, 0, 100), expl
}
