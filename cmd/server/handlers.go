package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sheikh-saqib/double-entry-ledger/internal/ledger"
	"github.com/sheikh-saqib/double-entry-ledger/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type entryRequest struct {
	CompanyID      string                `json:"company_id"`
	Date           string                `json:"date"`
	Memo           string                `json:"memo"`
	PeriodID       *string               `json:"period_id"`
	CounterpartyID *string               `json:"counterparty_id"`
	Postings       []models.PostingDraft `json:"postings"`
}

type invoiceRequest struct {
	CompanyID               string           `json:"company_id"`
	Date                    string           `json:"date"`
	Memo                    string           `json:"memo"`
	PeriodID                *string          `json:"period_id"`
	CounterpartyAccountCode string           `json:"counterparty_account_code"`
	CounterpartyID          string           `json:"counterparty_id"`
	Base                    decimal.Decimal  `json:"base"`
	TaxRate                 int64            `json:"tax_rate"`
	AccountCode             string           `json:"account_code"`
	Direction               models.Direction `json:"direction"`
}

type periodRequest struct {
	CompanyID string `json:"company_id"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Open      *bool  `json:"open"`
}

type periodResponse struct {
	ID        string `json:"id"`
	CompanyID string `json:"company_id"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Open      bool   `json:"open"`
}

type postingResponse struct {
	ID          string          `json:"id"`
	AccountCode string          `json:"account_code"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Memo        string          `json:"memo"`
}

type entryResponse struct {
	ID             string            `json:"id"`
	PeriodID       string            `json:"period_id"`
	Number         int64             `json:"number"`
	Date           string            `json:"date"`
	Memo           string            `json:"memo"`
	CounterpartyID *string           `json:"counterparty_id,omitempty"`
	Postings       []postingResponse `json:"postings"`
}

func toEntryResponse(e models.LedgerEntry) entryResponse {
	resp := entryResponse{
		ID:             e.ID,
		PeriodID:       e.PeriodID,
		Number:         e.Number,
		Date:           e.Date.Format(time.DateOnly),
		Memo:           e.Memo,
		CounterpartyID: e.CounterpartyID,
		Postings:       make([]postingResponse, 0, len(e.Postings)),
	}
	for _, p := range e.Postings {
		resp.Postings = append(resp.Postings, postingResponse{
			ID:          p.ID,
			AccountCode: p.AccountCode,
			Debit:       p.Debit,
			Credit:      p.Credit,
			Memo:        p.Memo,
		})
	}
	return resp
}

func newRouter(ledgerService *ledger.Ledger, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("POST /entries", func(w http.ResponseWriter, r *http.Request) {
		var req entryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		date, err := time.Parse(time.DateOnly, req.Date)
		if err != nil {
			http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}

		entry, err := ledgerService.CreateEntry(r.Context(), models.EntryDraft{
			CompanyID:      req.CompanyID,
			Date:           date,
			Memo:           req.Memo,
			PeriodID:       req.PeriodID,
			CounterpartyID: req.CounterpartyID,
			Postings:       req.Postings,
		})
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, toEntryResponse(entry))
	})

	mux.HandleFunc("POST /invoices", func(w http.ResponseWriter, r *http.Request) {
		var req invoiceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		date, err := time.Parse(time.DateOnly, req.Date)
		if err != nil {
			http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}

		entry, err := ledgerService.CreateInvoiceEntry(r.Context(), models.InvoiceDraft{
			CompanyID:               req.CompanyID,
			Date:                    date,
			Memo:                    req.Memo,
			PeriodID:                req.PeriodID,
			CounterpartyAccountCode: req.CounterpartyAccountCode,
			CounterpartyID:          req.CounterpartyID,
			Base:                    req.Base,
			TaxRate:                 req.TaxRate,
			AccountCode:             req.AccountCode,
			Direction:               req.Direction,
		})
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, toEntryResponse(entry))
	})

	mux.HandleFunc("POST /periods", func(w http.ResponseWriter, r *http.Request) {
		var req periodRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		start, err := time.Parse(time.DateOnly, req.Start)
		if err != nil {
			http.Error(w, "start must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		end, err := time.Parse(time.DateOnly, req.End)
		if err != nil {
			http.Error(w, "end must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		open := req.Open == nil || *req.Open

		period, err := ledgerService.RegisterPeriod(r.Context(), models.FiscalPeriod{
			CompanyID: req.CompanyID,
			Start:     start,
			End:       end,
			Open:      open,
		})
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, periodResponse{
			ID:        period.ID,
			CompanyID: period.CompanyID,
			Start:     period.Start.Format(time.DateOnly),
			End:       period.End.Format(time.DateOnly),
			Open:      period.Open,
		})
	})

	mux.HandleFunc("GET /entries/{id}", func(w http.ResponseWriter, r *http.Request) {
		entry, err := ledgerService.GetEntry(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toEntryResponse(entry))
	})

	mux.HandleFunc("GET /periods/{id}/entries", func(w http.ResponseWriter, r *http.Request) {
		entries, err := ledgerService.ListEntries(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, logger, err)
			return
		}
		resp := make([]entryResponse, 0, len(entries))
		for _, e := range entries {
			resp = append(resp, toEntryResponse(e))
		}
		writeJSON(w, http.StatusOK, resp)
	})

	mux.HandleFunc("GET /accounts/balance", func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "code is a mandatory field", http.StatusBadRequest)
			return
		}

		balance, err := ledgerService.GetBalance(r.Context(), code)
		if err != nil {
			writeError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, struct {
			AccountCode string          `json:"account_code"`
			Balance     decimal.Decimal `json:"balance"`
		}{
			AccountCode: code,
			Balance:     balance,
		})
	})

	return mux
}

func statusFor(err error) int {
	switch ledger.KindOf(err) {
	case ledger.KindValidation:
		return http.StatusUnprocessableEntity
	case ledger.KindReference:
		return http.StatusNotFound
	case ledger.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", zap.Error(err))
		writeJSON(w, status, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"kind":  ledger.KindOf(err).String(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
