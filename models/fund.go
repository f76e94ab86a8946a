package models

import "time"

// RawQuoteRow is one row from the Eastmoney LOF spot feed, already merged with
// the intraday valuation estimate for the same fund code. Fields are carried
// verbatim; nothing is derived here.
type RawQuoteRow struct {
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	PriorClose  float64 `json:"prior_close"`
	TradedValue float64 `json:"traded_value"`
	Turnover    float64 `json:"turnover"`
	Valuation   float64 `json:"valuation"` // intraday estimate, 0 when the feed had none
}

// RawStatusRow is one row from the Eastmoney fund purchase/redemption table.
// Numeric fields stay as strings until the joiner parses them, because the
// upstream feed uses "---" and empty cells for missing values.
type RawStatusRow struct {
	Code         string `json:"code"`
	Name         string `json:"name"`
	FundType     string `json:"fund_type"`
	NAV          string `json:"nav"`
	NAVDate      string `json:"nav_date"`
	SubStatus    string `json:"sub_status"`
	RedeemStatus string `json:"redeem_status"`
	DailyLimit   string `json:"daily_limit"`
	FeeRate      string `json:"fee_rate"`
}

// FundRecord is the joined, fully derived view of one fund. It only lives
// inside a single refresh cycle and is never persisted.
type FundRecord struct {
	Code         string  `json:"code"`
	Name         string  `json:"name"`
	PremiumRate  float64 `json:"premium_rate"`
	TradedValue  float64 `json:"traded_value"`
	DailyLimit   float64 `json:"daily_limit"`
	Turnover     float64 `json:"turnover"`
	FeeRate      float64 `json:"fee_rate"`
	SubStatus    string  `json:"sub_status"`
	RedeemStatus string  `json:"redeem_status"`
	Price        float64 `json:"price"`
	Valuation    float64 `json:"valuation"`
	ChangePct    float64 `json:"change_pct"`
	FundType     string  `json:"fund_type"`
	NAVDate      string  `json:"nav_date"`

	// PriorClose is carried through the join for the change computation and
	// not part of the published record.
	PriorClose float64 `json:"-"`
}

// ResultSet is one published snapshot. Owned by the refresh cache and replaced
// atomically; callers must treat it as read-only.
type ResultSet struct {
	Records    []FundRecord
	ComputedAt time.Time
}

// Count returns the number of candidate records in the snapshot.
func (rs *ResultSet) Count() int {
	if rs == nil {
		return 0
	}
	return len(rs.Records)
}

// UpdateTime formats the snapshot timestamp the way the API exposes it.
func (rs *ResultSet) UpdateTime() string {
	if rs == nil {
		return ""
	}
	return rs.ComputedAt.Format("2006-01-02 15:04:05")
}
