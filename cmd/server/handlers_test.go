package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sheikh-saqib/double-entry-ledger/internal/ledger"
	"github.com/sheikh-saqib/double-entry-ledger/internal/models"
	"github.com/sheikh-saqib/double-entry-ledger/internal/storage/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	ctx := context.Background()
	store := memory.NewMemoryLedgerStore()
	for _, acc := range []models.Account{
		{ID: "acc-430", Code: "430", Description: "Customers"},
		{ID: "acc-477", Code: "477", Description: "Output VAT"},
		{ID: "acc-572", Code: "572", Description: "Banks"},
		{ID: "acc-700", Code: "700", Description: "Sales"},
	} {
		require.NoError(t, store.CreateAccount(ctx, acc))
	}
	require.NoError(t, store.CreateCounterparty(ctx, models.Counterparty{ID: "cp-1", Name: "Iberia Supplies SL"}))

	srv := httptest.NewServer(newRouter(ledger.NewLedger(store), zap.NewNop()))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func registerPeriod(t *testing.T, srv *httptest.Server) periodResponse {
	t.Helper()

	resp := do(t, srv, http.MethodPost, "/periods", `{"company_id":"ACME","start":"2024-01-01","end":"2024-12-31"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[periodResponse](t, resp)
}

const saleBody = `{
	"company_id": "ACME",
	"date": "2024-03-15",
	"memo": "Cash sale",
	"postings": [
		{"account_code": "572", "debit": "250.00"},
		{"account_code": "700", "credit": "250.00"}
	]
}`

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRegisterPeriodEndpoint(t *testing.T) {
	srv := newTestServer(t)

	period := registerPeriod(t, srv)
	assert.NotEmpty(t, period.ID)
	assert.Equal(t, "2024-12-31", period.End)
	assert.True(t, period.Open)

	resp := do(t, srv, http.MethodPost, "/periods", `{"company_id":"ACME","start":"2024-07-01","end":"2025-06-30"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = do(t, srv, http.MethodPost, "/periods", `{"company_id":"ACME","start":"July","end":"2025-06-30"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateAndFetchEntry(t *testing.T) {
	srv := newTestServer(t)
	period := registerPeriod(t, srv)

	resp := do(t, srv, http.MethodPost, "/entries", saleBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[entryResponse](t, resp)

	assert.Equal(t, period.ID, created.PeriodID)
	assert.Equal(t, int64(1), created.Number)
	assert.Equal(t, "2024-03-15", created.Date)
	require.Len(t, created.Postings, 2)
	assert.True(t, created.Postings[0].Debit.Equal(decimal.NewFromInt(250)))

	resp = do(t, srv, http.MethodGet, "/entries/"+created.ID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, created.ID, decode[entryResponse](t, resp).ID)

	resp = do(t, srv, http.MethodGet, "/periods/"+period.ID+"/entries", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]entryResponse](t, resp), 1)

	resp = do(t, srv, http.MethodGet, "/accounts/balance?code=572", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	balance := decode[struct {
		AccountCode string          `json:"account_code"`
		Balance     decimal.Decimal `json:"balance"`
	}](t, resp)
	assert.Equal(t, "572", balance.AccountCode)
	assert.True(t, balance.Balance.Equal(decimal.NewFromInt(250)))
}

func TestCreateInvoiceEndpoint(t *testing.T) {
	srv := newTestServer(t)
	registerPeriod(t, srv)

	body := `{
		"company_id": "ACME",
		"date": "2024-05-10",
		"memo": "INV-7",
		"counterparty_id": "cp-1",
		"counterparty_account_code": "430",
		"account_code": "700",
		"base": "100.00",
		"tax_rate": 21,
		"direction": "income"
	}`
	resp := do(t, srv, http.MethodPost, "/invoices", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	entry := decode[entryResponse](t, resp)
	require.Len(t, entry.Postings, 3)
	assert.True(t, entry.Postings[0].Debit.Equal(decimal.NewFromInt(121)))
	require.NotNil(t, entry.CounterpartyID)
	assert.Equal(t, "cp-1", *entry.CounterpartyID)

	resp = do(t, srv, http.MethodPost, "/invoices", strings.Replace(body, `"tax_rate": 21`, `"tax_rate": 7`, 1))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "validation", decode[map[string]string](t, resp)["kind"])
}

func TestErrorStatuses(t *testing.T) {
	srv := newTestServer(t)
	registerPeriod(t, srv)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"malformed body", http.MethodPost, "/entries", `{"postings":`, http.StatusBadRequest},
		{"bad date", http.MethodPost, "/entries", strings.Replace(saleBody, "2024-03-15", "15/03/2024", 1), http.StatusBadRequest},
		{"unbalanced", http.MethodPost, "/entries", strings.Replace(saleBody, `"credit": "250.00"`, `"credit": "249.99"`, 1), http.StatusUnprocessableEntity},
		{"unknown account", http.MethodPost, "/entries", strings.Replace(saleBody, `"700"`, `"705"`, 1), http.StatusNotFound},
		{"no period", http.MethodPost, "/entries", strings.Replace(saleBody, "2024-03-15", "2026-03-15", 1), http.StatusNotFound},
		{"unknown entry", http.MethodGet, "/entries/nope", "", http.StatusNotFound},
		{"balance without code", http.MethodGet, "/accounts/balance", "", http.StatusBadRequest},
		{"balance of unknown account", http.MethodGet, "/accounts/balance?code=999", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, srv, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statusFor(&ledger.ConflictError{}))
	assert.Equal(t, http.StatusInternalServerError, statusFor(&ledger.PersistenceError{Op: "commit"}))
	assert.Equal(t, http.StatusInternalServerError, statusFor(context.DeadlineExceeded))
}
