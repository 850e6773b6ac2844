package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/iho/bankledger/internal/domain"
	"github.com/iho/bankledger/internal/usecase"
)

type stubReconciler struct {
	result *usecase.ReconciliationResult
	report *usecase.ReconciliationReport
	err    error
}

func (s *stubReconciler) ReconcileAccount(ctx context.Context, accountNumber string) (*usecase.ReconciliationResult, error) {
	return s.result, s.err
}

func (s *stubReconciler) GenerateReconciliationReport(ctx context.Context) (*usecase.ReconciliationReport, error) {
	return s.report, s.err
}

func serveAccount(h *ReconciliationHandler, number string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Get("/reconciliation/{accountNumber}", h.Account)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/reconciliation/"+number, nil))
	return rr
}

func TestReconciliationAccount(t *testing.T) {
	h := NewReconciliationHandler(&stubReconciler{result: &usecase.ReconciliationResult{
		AccountNumber:    "ACC1",
		RecordedBalance:  decimal.RequireFromString("70"),
		ProjectedBalance: decimal.RequireFromString("100"),
		Difference:       decimal.RequireFromString("-30"),
		VersionLag:       1,
		Projected:        true,
	}})

	rr := serveAccount(h, "ACC1")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var body reconciliationResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.RecordedBalance != "70.00" || body.Difference != "-30.00" || body.Reconciled {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestReconciliationAccountNotFound(t *testing.T) {
	h := NewReconciliationHandler(&stubReconciler{err: fmt.Errorf("%w: NOPE", domain.ErrAccountNotFound)})

	if rr := serveAccount(h, "NOPE"); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestReconciliationReport(t *testing.T) {
	h := NewReconciliationHandler(&stubReconciler{report: &usecase.ReconciliationReport{
		CheckedAt:          time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		TotalAccounts:      2,
		ReconciledAccounts: 1,
		TotalDrift:         decimal.RequireFromString("5"),
		Discrepancies: []*usecase.ReconciliationResult{
			{AccountNumber: "ACC2", Difference: decimal.RequireFromString("5")},
		},
	}})

	rr := httptest.NewRecorder()
	h.Report(rr, httptest.NewRequest(http.MethodGet, "/reconciliation", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var body reportResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.TotalAccounts != 2 || body.TotalDrift != "5.00" || len(body.Discrepancies) != 1 {
		t.Fatalf("unexpected report %+v", body)
	}
	if body.CheckedAt != "2026-01-02T03:04:05Z" {
		t.Fatalf("unexpected timestamp %s", body.CheckedAt)
	}
}
