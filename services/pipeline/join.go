package pipeline

import (
	"errors"
	"strconv"
	"strings"

	"lof_arb_api/logger"
	"lof_arb_api/models"
)

// ErrEmptyResult marks a refresh whose join (or filter) produced zero
// records. It is logged distinctly from fetch failures: an empty market is a
// legitimate outcome, a dead feed is not.
var ErrEmptyResult = errors.New("empty result set")

// Join inner-joins quote rows with status rows on fund code and returns one
// partial FundRecord per match, plus the number of rows dropped for
// unparseable required numerics. Rows present in only one feed are silently
// skipped; the two upstream feeds are routinely out of sync.
func Join(quotes []models.RawQuoteRow, status []models.RawStatusRow) ([]models.FundRecord, int) {
	byCode := make(map[string]models.RawStatusRow, len(status))
	for _, s := range status {
		byCode[s.Code] = s
	}

	records := make([]models.FundRecord, 0, len(quotes))
	dropped := 0
	for _, q := range quotes {
		s, ok := byCode[q.Code]
		if !ok {
			continue
		}

		// Price and prior close are required; the spot feed reports them as
		// "-" for suspended funds and the adapter coerces that to 0.
		if q.Price <= 0 || q.PriorClose <= 0 {
			dropped++
			continue
		}

		valuation := q.Valuation
		nav := parseOptionalFloat(s.NAV)
		if valuation <= 0 {
			// No intraday estimate (typical for QDII funds): fall back to the
			// latest confirmed NAV.
			valuation = nav
		}

		name := s.Name
		if name == "" {
			name = q.Name
		}

		records = append(records, models.FundRecord{
			Code:         q.Code,
			Name:         name,
			TradedValue:  q.TradedValue,
			DailyLimit:   parseOptionalFloat(s.DailyLimit),
			Turnover:     q.Turnover,
			FeeRate:      parseOptionalFloat(strings.TrimSuffix(s.FeeRate, "%")),
			SubStatus:    s.SubStatus,
			RedeemStatus: s.RedeemStatus,
			Price:        q.Price,
			PriorClose:   q.PriorClose,
			Valuation:    valuation,
			FundType:     s.FundType,
			NAVDate:      s.NAVDate,
		})
	}

	if dropped > 0 {
		logger.WithComponent("join").WithFields(logger.Fields{
			"dropped": dropped,
			"joined":  len(records),
		}).Warn("dropped rows with unparseable numeric fields")
	}
	return records, dropped
}

// parseOptionalFloat parses feed numerics that may be empty or the "---"
// missing-value marker. Missing values become 0.
func parseOptionalFloat(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "---" || s == "--" {
		return 0
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0
	}
	return f
}
