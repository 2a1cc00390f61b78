package score

import (
	"strings"

	"github.com/walletscope/txscore/internal/explorer"
)

// riskScore penalizes unverified contract recipients, interpreter risk
// verdicts and freshly deployed contracts. Unverified EOAs are never
// penalized; only contract recipients carry the verification requirement.
func riskScore(tx explorer.Transaction, enr EnrichmentBundle) (float64, []Explanation) {
	var expl []Explanation
	risk := 100.0

	toIsContract := tx.ToIsContract
	if enr.Detail != nil && enr.Detail.To != nil && enr.Detail.To.IsContract {
		toIsContract = true
	}

	// Any truthy verification signal wins: listing flags, decoded recipient,
	// address metadata or its nested contract record.
	verified := tx.ToIsVerified
	if enr.Detail != nil && enr.Detail.To != nil && enr.Detail.To.IsVerified {
		verified = true
	}
	if enr.AddressInfo != nil {
		if enr.AddressInfo.IsVerified {
			verified = true
		}
		if enr.AddressInfo.Contract != nil && enr.AddressInfo.Contract.IsVerified {
			verified = true
		}
	}

	if toIsContract && !verified {
		risk -= 15
		expl = append(expl, Explanation{Label: "Contract not verified", Delta: -15})
	}

	if enr.Interpreter != nil {
		// First substring match wins, in severity order.
		switch lvl := strings.ToLower(enr.Interpreter.RiskLevel); {
		case strings.Contains(lvl, "high"):
			risk -= 35
			expl = append(expl, Explanation{Label: "Interpreter risk: HIGH", Delta: -35})
		case strings.Contains(lvl, "medium"):
			risk -= 20
			expl = append(expl, Explanation{Label: "Interpreter risk: MEDIUM", Delta: -20})
		case strings.Contains(lvl, "low"):
			risk -= 5
			expl = append(expl, Explanation{Label: "Interpreter risk: LOW", Delta: -5})
		}
	}

	if toIsContract && enr.AddressInfo != nil && enr.AddressInfo.CreationBlock != nil && *enr.AddressInfo.CreationBlock != 0 {
		risk -= 10
		expl = append(expl, Explanation{Label: "Newly deployed contract", Delta: -10})
	}

	return clamp(risk, 0, 100), expl
}

// riskBucket buckets the raw risk sub-score, before aggregation.
func riskBucket(risk float64) string {
	switch {
	case risk < 40:
		return RiskHigh
	case risk < 70:
		return RiskMedium
	default:
		return RiskLow
	}
}
