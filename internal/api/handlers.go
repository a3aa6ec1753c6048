package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/model"
	"github.com/Veraticus/the-books-must-balance/internal/reconcile"
	"github.com/Veraticus/the-books-must-balance/internal/report"
	"github.com/Veraticus/the-books-must-balance/internal/service"
	"github.com/shopspring/decimal"
)

const maxBodyBytes = 1 << 20

type recalculateRequest struct {
	InitialBalance json.RawMessage `json:"initialBalance"`
}

// RecalculateResponse is the body returned by POST /api/accounts/{id}/recalculate.
type RecalculateResponse struct {
	AccountID              string `json:"accountId"`
	InitialBalance         string `json:"initialBalance"`
	CalculatedBalance      string `json:"calculatedBalance"`
	Action                 string `json:"action"`
	PreviousInitialBalance string `json:"previousInitialBalance"`
	Balance                string `json:"balance"`
	TransactionSum         string `json:"transactionSum"`
	TransactionCount       int    `json:"transactionCount"`
	UnsignedCount          int    `json:"unsignedCount"`
}

// AccountResponse is the JSON form of a model.Account.
type AccountResponse struct {
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
	ID             string    `json:"id"`
	OwnerID        string    `json:"ownerId,omitempty"`
	Name           string    `json:"name"`
	Type           string    `json:"type"`
	Currency       string    `json:"currency"`
	ExternalID     string    `json:"externalId,omitempty"`
	InitialBalance string    `json:"initialBalance"`
	Balance        string    `json:"balance"`
}

// TransactionResponse is the JSON form of a model.Transaction.
type TransactionResponse struct {
	ID          string `json:"id"`
	Date        string `json:"date"`
	Type        string `json:"type"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	ExternalID  string `json:"externalId,omitempty"`
}

func (s *Server) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	accountID := r.PathValue("id")

	override, err := decodeOverride(w, r)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	result, err := s.reconciler.ReconcileAccount(r.Context(), accountID, reconcile.Options{InitialBalance: override})
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, RecalculateResponse{
		AccountID:              result.AccountID,
		InitialBalance:         result.InitialBalance.String(),
		CalculatedBalance:      result.CalculatedBalance.String(),
		Action:                 string(result.Action),
		PreviousInitialBalance: result.PreviousInitial.String(),
		Balance:                result.Balance.String(),
		TransactionSum:         result.TransactionSum.String(),
		TransactionCount:       result.TransactionCount,
		UnsignedCount:          result.UnsignedCount,
	})
}

// decodeOverride reads the optional initialBalance field. An empty body, a
// missing field and an explicit null all mean no override. Numbers are kept
// as written so no float rounding happens on the way in.
func decodeOverride(w http.ResponseWriter, r *http.Request) (*decimal.Decimal, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, common.InvalidArgumentf("failed to read request body: %v", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	var req recalculateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, common.InvalidArgumentf("malformed JSON body: %v", err)
	}

	raw := bytes.TrimSpace(req.InitialBalance)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var text string
	switch c := raw[0]; {
	case c == '"':
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, common.InvalidArgumentf("malformed initialBalance: %v", err)
		}
	case c == '-' || (c >= '0' && c <= '9'):
		text = string(raw)
	default:
		return nil, common.InvalidArgumentf("initialBalance must be a number or a numeric string")
	}

	value, err := reconcile.ParseInitialBalance(text)
	if err != nil {
		return nil, err
	}
	return &value, nil
}

func (s *Server) handleReconcileAll(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	dryRun := false
	if raw := query.Get("dryRun"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "dryRun must be a boolean")
			return
		}
		dryRun = parsed
	}

	rep, err := s.reconciler.ReconcileAll(r.Context(), reconcile.BatchOptions{
		OwnerID: strings.TrimSpace(query.Get("owner")),
		DryRun:  dryRun,
	})
	if rep == nil {
		s.writeFailure(w, r, err)
		return
	}
	if err != nil {
		// Per-account failures are already in the report.
		s.logger.Warn("Batch reconciliation finished with failures",
			"error", err,
			"interrupted", rep.Interrupted,
			"request_id", RequestIDFromContext(r.Context()))
	}

	status := http.StatusOK
	if rep.Interrupted {
		status = http.StatusServiceUnavailable
	}
	WriteJSON(w, status, report.NewDocument(rep))
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := service.AccountFilter{OwnerID: strings.TrimSpace(query.Get("owner"))}

	if raw := query.Get("type"); raw != "" {
		accountType, err := model.ParseAccountType(raw)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Type = accountType
	}

	accounts, err := s.store.ListAccounts(r.Context(), filter)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	out := make([]AccountResponse, 0, len(accounts))
	for i := range accounts {
		out = append(out, newAccountResponse(&accounts[i]))
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"accounts": out,
		"count":    len(out),
	})
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := s.store.FindAccount(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, newAccountResponse(account))
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	accountID := r.PathValue("id")
	query := r.URL.Query()

	var filter service.TransactionFilter
	for _, p := range []struct {
		dst  **time.Time
		name string
	}{
		{&filter.StartDate, "from"},
		{&filter.EndDate, "to"},
	} {
		raw := query.Get(p.name)
		if raw == "" {
			continue
		}
		date, err := time.Parse(model.DateLayout, raw)
		if err != nil {
			WriteError(w, http.StatusBadRequest, p.name+" must be a date in YYYY-MM-DD format")
			return
		}
		*p.dst = &date
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			WriteError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}

	if _, err := s.store.FindAccount(r.Context(), accountID); err != nil {
		s.writeFailure(w, r, err)
		return
	}

	txns, err := s.store.ListTransactionsFiltered(r.Context(), accountID, filter)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	out := make([]TransactionResponse, 0, len(txns))
	for i := range txns {
		t := &txns[i]
		out = append(out, TransactionResponse{
			ID:          t.ID,
			Date:        t.Date.Format(model.DateLayout),
			Type:        string(t.Type),
			Amount:      t.Amount.String(),
			Description: t.Description,
			ExternalID:  t.ExternalID,
		})
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"accountId":    accountID,
		"transactions": out,
		"count":        len(out),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   s.now().UTC().Format(time.RFC3339),
	})
}

// writeFailure maps domain errors onto HTTP status codes.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrNotFound):
		WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, common.ErrInvalidArgument):
		WriteError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("Request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
			"request_id", RequestIDFromContext(r.Context()))
		WriteError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func newAccountResponse(a *model.Account) AccountResponse {
	return AccountResponse{
		ID:             a.ID,
		OwnerID:        a.OwnerID,
		Name:           a.Name,
		Type:           string(a.Type),
		Currency:       a.Currency,
		ExternalID:     a.ExternalID,
		InitialBalance: a.InitialBalance.String(),
		Balance:        a.Balance.String(),
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}
