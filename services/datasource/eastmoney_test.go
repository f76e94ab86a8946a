package datasource

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const spotBody = `{"rc":0,"data":{"total":2,"diff":[
	{"f12":"501000","f14":"XX LOF基金","f2":1.052,"f3":0.29,"f6":15000000.0,"f8":0.85,"f18":1.049},
	{"f12":"501001","f14":"停牌基金","f2":"-","f3":"-","f6":"-","f8":"-","f18":1.100}
]}}`

const valuationBody = `{"ErrCode":0,"Data":{"list":[
	{"fundcode":"501000","gsz":"1.0390"},
	{"fundcode":"501001","gsz":"---"}
]}}`

const purchaseBody = `var db={chars:["A"],datas:[
	["501000","XX LOF基金","股票型","1.0390","2024-06-14","开放申购","开放赎回","2024-06-17","100","5000000","0.15%"]
],count:1};`

func testClient(spot, valuation, purchase http.HandlerFunc) (*Client, func()) {
	spotSrv := httptest.NewServer(spot)
	valSrv := httptest.NewServer(valuation)
	purSrv := httptest.NewServer(purchase)
	c := NewClientWithURLs(2*time.Second, spotSrv.URL, valSrv.URL, purSrv.URL)
	return c, func() {
		spotSrv.Close()
		valSrv.Close()
		purSrv.Close()
	}
}

func serve(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}
}

func TestFetchQuotesMergesValuation(t *testing.T) {
	c, done := testClient(serve(spotBody), serve(valuationBody), serve(purchaseBody))
	defer done()

	rows, err := c.FetchQuotes(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "501000", rows[0].Code)
	assert.Equal(t, "XX LOF基金", rows[0].Name)
	assert.Equal(t, 1.052, rows[0].Price)
	assert.Equal(t, 1.049, rows[0].PriorClose)
	assert.Equal(t, 15000000.0, rows[0].TradedValue)
	assert.Equal(t, 0.85, rows[0].Turnover)
	assert.Equal(t, 1.039, rows[0].Valuation)

	// Suspended fund: "-" placeholders coerce to zero, no valuation estimate.
	assert.Equal(t, "501001", rows[1].Code)
	assert.Zero(t, rows[1].Price)
	assert.Zero(t, rows[1].Valuation)
	assert.Equal(t, 1.100, rows[1].PriorClose)
}

func TestFetchStatusParsesPurchaseTable(t *testing.T) {
	c, done := testClient(serve(spotBody), serve(valuationBody), serve(purchaseBody))
	defer done()

	rows, err := c.FetchStatus(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, "501000", row.Code)
	assert.Equal(t, "XX LOF基金", row.Name)
	assert.Equal(t, "股票型", row.FundType)
	assert.Equal(t, "1.0390", row.NAV)
	assert.Equal(t, "2024-06-14", row.NAVDate)
	assert.Equal(t, "开放申购", row.SubStatus)
	assert.Equal(t, "开放赎回", row.RedeemStatus)
	assert.Equal(t, "5000000", row.DailyLimit)
	assert.Equal(t, "0.15%", row.FeeRate)
}

func TestFetchQuotesUpstreamDown(t *testing.T) {
	c, done := testClient(
		func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) },
		serve(valuationBody),
		serve(purchaseBody),
	)
	defer done()

	_, err := c.FetchQuotes(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestFetchQuotesSchemaError(t *testing.T) {
	c, done := testClient(serve(`{"data":null}`), serve(valuationBody), serve(purchaseBody))
	defer done()

	_, err := c.FetchQuotes(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstreamSchemaError)
}

func TestFetchQuotesMissingCode(t *testing.T) {
	body := `{"data":{"total":1,"diff":[{"f2":1.052}]}}`
	c, done := testClient(serve(body), serve(valuationBody), serve(purchaseBody))
	defer done()

	_, err := c.FetchQuotes(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstreamSchemaError)
}

func TestFetchStatusShortRow(t *testing.T) {
	body := `var db={datas:[["501000","XX LOF基金"]],count:1};`
	c, done := testClient(serve(spotBody), serve(valuationBody), serve(body))
	defer done()

	_, err := c.FetchStatus(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstreamSchemaError)
}

func TestFetchStatusNotJS(t *testing.T) {
	c, done := testClient(serve(spotBody), serve(valuationBody), serve(`<html>blocked</html>`))
	defer done()

	_, err := c.FetchStatus(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstreamSchemaError)
}

func TestExtractJSArray(t *testing.T) {
	payload := `var db={chars:["x"],datas:[["a","b"],["c","[d]"]],count:2};`

	out, err := extractJSArray(payload, "datas")
	require.NoError(t, err)
	assert.Equal(t, `[["a","b"],["c","[d]"]]`, out)

	_, err = extractJSArray(payload, "missing")
	assert.Error(t, err)

	_, err = extractJSArray(`var db={datas:[["a"`, "datas")
	assert.Error(t, err)
}
