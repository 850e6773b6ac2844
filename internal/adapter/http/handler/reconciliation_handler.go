package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iho/bankledger/internal/usecase"
)

// Reconciler compares the write model with the read views.
type Reconciler interface {
	ReconcileAccount(ctx context.Context, accountNumber string) (*usecase.ReconciliationResult, error)
	GenerateReconciliationReport(ctx context.Context) (*usecase.ReconciliationReport, error)
}

// ReconciliationHandler exposes drift reports to operators.
type ReconciliationHandler struct {
	reconciler Reconciler
}

// NewReconciliationHandler creates a new ReconciliationHandler.
func NewReconciliationHandler(reconciler Reconciler) *ReconciliationHandler {
	return &ReconciliationHandler{reconciler: reconciler}
}

type reconciliationResponse struct {
	AccountNumber    string `json:"account_number"`
	RecordedBalance  string `json:"recorded_balance"`
	ProjectedBalance string `json:"projected_balance"`
	Difference       string `json:"difference"`
	VersionLag       int64  `json:"version_lag"`
	Projected        bool   `json:"projected"`
	Reconciled       bool   `json:"reconciled"`
}

type reportResponse struct {
	CheckedAt          string                   `json:"checked_at"`
	TotalAccounts      int                      `json:"total_accounts"`
	ReconciledAccounts int                      `json:"reconciled_accounts"`
	TotalDrift         string                   `json:"total_drift"`
	Discrepancies      []reconciliationResponse `json:"discrepancies"`
}

func toReconciliationResponse(r *usecase.ReconciliationResult) reconciliationResponse {
	return reconciliationResponse{
		AccountNumber:    r.AccountNumber,
		RecordedBalance:  r.RecordedBalance.StringFixed(2),
		ProjectedBalance: r.ProjectedBalance.StringFixed(2),
		Difference:       r.Difference.StringFixed(2),
		VersionLag:       r.VersionLag,
		Projected:        r.Projected,
		Reconciled:       r.IsReconciled,
	}
}

// Report returns the drift report for all accounts.
func (h *ReconciliationHandler) Report(w http.ResponseWriter, r *http.Request) {
	report, err := h.reconciler.GenerateReconciliationReport(r.Context())
	if err != nil {
		writeError(w, mapDomainError(err), "reconciliation failed", err.Error())
		return
	}

	resp := reportResponse{
		CheckedAt:          report.CheckedAt.Format(time.RFC3339),
		TotalAccounts:      report.TotalAccounts,
		ReconciledAccounts: report.ReconciledAccounts,
		TotalDrift:         report.TotalDrift.StringFixed(2),
		Discrepancies:      make([]reconciliationResponse, 0, len(report.Discrepancies)),
	}
	for _, d := range report.Discrepancies {
		resp.Discrepancies = append(resp.Discrepancies, toReconciliationResponse(d))
	}

	writeJSON(w, http.StatusOK, resp)
}

// Account returns the drift of a single account.
func (h *ReconciliationHandler) Account(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "accountNumber")

	result, err := h.reconciler.ReconcileAccount(r.Context(), number)
	if err != nil {
		writeError(w, mapDomainError(err), "reconciliation failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, toReconciliationResponse(result))
}
