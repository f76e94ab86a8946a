package pipeline

import (
	"math"
	"sort"
	"strings"

	"lof_arb_api/models"
)

// Thresholds hold the candidate cut-offs. Defaults come from config.
type Thresholds struct {
	MinAbsPremium  float64 // percent, magnitude of premium or discount
	MinTradedValue float64 // CNY, liquidity floor
}

// Filter retains arbitrage candidates: funds whose premium magnitude and
// traded value clear the thresholds and whose subscription and redemption are
// both open. Output is sorted by descending absolute premium rate, ties
// broken by ascending fund code, so repeated runs over the same input are
// byte-for-byte identical.
func Filter(records []models.FundRecord, th Thresholds) []models.FundRecord {
	result := make([]models.FundRecord, 0, len(records))
	for _, rec := range records {
		if math.Abs(rec.PremiumRate) < th.MinAbsPremium {
			continue
		}
		if rec.TradedValue < th.MinTradedValue {
			continue
		}
		if !statusOpen(rec.SubStatus) || !statusOpen(rec.RedeemStatus) {
			continue
		}
		result = append(result, rec)
	}

	sort.SliceStable(result, func(i, j int) bool {
		pi, pj := math.Abs(result[i].PremiumRate), math.Abs(result[j].PremiumRate)
		if pi != pj {
			return pi > pj
		}
		return result[i].Code < result[j].Code
	})
	return result
}

// statusOpen reports whether a subscription/redemption status string counts
// as open. The feed uses values like 开放申购, 暂停申购, 限大额 and 封闭期;
// capped-but-open states still qualify.
func statusOpen(status string) bool {
	if status == "" {
		return false
	}
	return !strings.Contains(status, "暂停") && !strings.Contains(status, "封闭")
}
