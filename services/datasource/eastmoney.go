package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"lof_arb_api/logger"
	"lof_arb_api/models"
)

// Eastmoney endpoints. The spot list covers all exchange-listed LOF boards,
// the valuation list carries the intraday NAV estimates, and the purchase
// table carries subscription/redemption status, fees and limits.
const (
	LOFSpotURL       = "https://push2.eastmoney.com/api/qt/clist/get"
	ValuationListURL = "https://api.fund.eastmoney.com/FundGuZhi/GetFundGZList"
	PurchaseTableURL = "http://fund.eastmoney.com/Data/Fund_JJJZ_Data.aspx"

	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Client fetches raw fund rows from Eastmoney's public feeds. It performs no
// retries and no caching; both belong to the refresh cache above it.
type Client struct {
	httpClient *http.Client

	// overridable for tests
	spotURL      string
	valuationURL string
	purchaseURL  string
}

// NewClient creates an Eastmoney client with the given per-request timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient:   &http.Client{Timeout: timeout},
		spotURL:      LOFSpotURL,
		valuationURL: ValuationListURL,
		purchaseURL:  PurchaseTableURL,
	}
}

// NewClientWithURLs creates a client against alternate feed URLs. Used by
// tests to point the adapter at a local fake upstream.
func NewClientWithURLs(timeout time.Duration, spotURL, valuationURL, purchaseURL string) *Client {
	c := NewClient(timeout)
	c.spotURL = spotURL
	c.valuationURL = valuationURL
	c.purchaseURL = purchaseURL
	return c
}

// spotResponse is the push2 clist envelope. Field values arrive as numbers
// while trading and as "-" strings when a fund is suspended, so diff rows are
// decoded loosely and coerced per field.
type spotResponse struct {
	Data *struct {
		Total int                      `json:"total"`
		Diff  []map[string]interface{} `json:"diff"`
	} `json:"data"`
}

// valuationResponse is the FundGuZhi list envelope. Estimates come as strings
// ("1.0390", "" or "---").
type valuationResponse struct {
	Data *struct {
		List []struct {
			Code     string `json:"fundcode"`
			Estimate string `json:"gsz"`
		} `json:"list"`
	} `json:"Data"`
}

// Column layout of one Fund_JJJZ_Data purchase-table row.
const (
	purchaseColCode = iota
	purchaseColName
	purchaseColType
	purchaseColNAV
	purchaseColNAVDate
	purchaseColSubStatus
	purchaseColRedeemStatus
	purchaseColNextOpen
	purchaseColMinPurchase
	purchaseColDailyLimit
	purchaseColFeeRate
	purchaseColCount
)

// FetchQuotes returns one RawQuoteRow per LOF fund currently listed in the
// spot feed, with the intraday valuation estimate attached by fund code.
// Issues two upstream calls per invocation.
func (c *Client) FetchQuotes(ctx context.Context) ([]models.RawQuoteRow, error) {
	spot, err := c.fetchSpotList(ctx)
	if err != nil {
		return nil, err
	}

	valuations, err := c.fetchValuationList(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([]models.RawQuoteRow, 0, len(spot))
	for _, d := range spot {
		code, ok := d["f12"].(string)
		if !ok || code == "" {
			return nil, fmt.Errorf("spot list row missing fund code: %w", ErrUpstreamSchemaError)
		}
		name, _ := d["f14"].(string)

		rows = append(rows, models.RawQuoteRow{
			Code:        code,
			Name:        name,
			Price:       coerceFloat(d["f2"]),
			PriorClose:  coerceFloat(d["f18"]),
			TradedValue: coerceFloat(d["f6"]),
			Turnover:    coerceFloat(d["f8"]),
			Valuation:   valuations[code],
		})
	}

	logger.WithComponent("datasource").WithFields(logger.Fields{
		"feed": "quotes",
		"rows": len(rows),
	}).Debug("fetched quote rows")
	return rows, nil
}

// FetchStatus returns one RawStatusRow per fund in the purchase table.
func (c *Client) FetchStatus(ctx context.Context) ([]models.RawStatusRow, error) {
	url := c.purchaseURL + "?t=8&page=1,99999&js=reData&sort=fcode,asc"
	body, err := c.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("purchase table: %w", err)
	}

	datas, err := extractJSArray(string(body), "datas")
	if err != nil {
		return nil, fmt.Errorf("purchase table: %v: %w", err, ErrUpstreamSchemaError)
	}

	var raw [][]string
	if err := json.Unmarshal([]byte(datas), &raw); err != nil {
		return nil, fmt.Errorf("purchase table rows: %v: %w", err, ErrUpstreamSchemaError)
	}

	rows := make([]models.RawStatusRow, 0, len(raw))
	for _, r := range raw {
		if len(r) < purchaseColCount {
			return nil, fmt.Errorf("purchase table row has %d columns, want %d: %w",
				len(r), purchaseColCount, ErrUpstreamSchemaError)
		}
		rows = append(rows, models.RawStatusRow{
			Code:         r[purchaseColCode],
			Name:         r[purchaseColName],
			FundType:     r[purchaseColType],
			NAV:          r[purchaseColNAV],
			NAVDate:      r[purchaseColNAVDate],
			SubStatus:    r[purchaseColSubStatus],
			RedeemStatus: r[purchaseColRedeemStatus],
			DailyLimit:   r[purchaseColDailyLimit],
			FeeRate:      r[purchaseColFeeRate],
		})
	}

	logger.WithComponent("datasource").WithFields(logger.Fields{
		"feed": "status",
		"rows": len(rows),
	}).Debug("fetched status rows")
	return rows, nil
}

func (c *Client) fetchSpotList(ctx context.Context) ([]map[string]interface{}, error) {
	url := c.spotURL +
		"?pn=1&pz=5000&po=1&np=1&fltt=2&invt=2&fid=f3" +
		"&fs=b:MK0404,b:MK0405,b:MK0406,b:MK0407" +
		"&fields=f2,f3,f6,f8,f12,f14,f18"
	body, err := c.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("spot list: %w", err)
	}

	var resp spotResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("spot list: %v: %w", err, ErrUpstreamSchemaError)
	}
	if resp.Data == nil || resp.Data.Diff == nil {
		return nil, fmt.Errorf("spot list: empty data envelope: %w", ErrUpstreamSchemaError)
	}
	return resp.Data.Diff, nil
}

// fetchValuationList returns intraday valuation estimates keyed by fund code.
// Funds without a usable estimate are simply absent from the map.
func (c *Client) fetchValuationList(ctx context.Context) (map[string]float64, error) {
	url := c.valuationURL + "?type=1&sort=3&orderType=desc&pageIndex=1&pageSize=20000"
	body, err := c.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("valuation list: %w", err)
	}

	var resp valuationResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("valuation list: %v: %w", err, ErrUpstreamSchemaError)
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("valuation list: empty data envelope: %w", ErrUpstreamSchemaError)
	}

	estimates := make(map[string]float64, len(resp.Data.List))
	for _, v := range resp.Data.List {
		f, err := strconv.ParseFloat(v.Estimate, 64)
		if err != nil || f <= 0 {
			continue
		}
		estimates[v.Code] = f
	}
	return estimates, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrUpstreamUnavailable)
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "application/json, text/javascript, */*")
	req.Header.Set("Referer", "https://fund.eastmoney.com/")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrUpstreamUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %w", resp.StatusCode, ErrUpstreamUnavailable)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %v: %w", err, ErrUpstreamUnavailable)
	}
	return body, nil
}

// coerceFloat reads a push2 field that is a number while trading and a "-"
// placeholder when suspended. Non-numeric values become 0 and are left for
// the joiner to drop.
func coerceFloat(v interface{}) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// extractJSArray pulls the bracket-balanced array assigned to the given key
// out of the "var db={...}" payload the purchase table ships. The array
// elements themselves are plain quoted strings, so the slice is valid JSON.
func extractJSArray(payload, key string) (string, error) {
	idx := strings.Index(payload, key+":")
	if idx < 0 {
		return "", fmt.Errorf("key %q not found", key)
	}
	rest := payload[idx+len(key)+1:]
	start := strings.Index(rest, "[")
	if start < 0 {
		return "", fmt.Errorf("array for %q not found", key)
	}

	depth := 0
	inString := false
	for i := start; i < len(rest); i++ {
		ch := rest[i]
		if inString {
			if ch == '\\' {
				i++
			} else if ch == '"' {
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return rest[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unterminated array for %q", key)
}
