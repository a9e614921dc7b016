// Package handler is the thin HTTP layer over the escrow engine. It parses
// requests, delegates to the service, and maps domain errors to statuses;
// business rules live in the engine.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"amanah/internal/escrow"
	id "amanah/pkg/domain"
	dErrors "amanah/pkg/domain-errors"
	"amanah/pkg/platform/httputil"
)

// Service defines the escrow operations the handler depends on.
type Service interface {
	CreateAccount(ctx context.Context, params escrow.CreateAccountParams) (*escrow.Account, error)
	Deposit(ctx context.Context, number id.AccountID, amount decimal.Decimal, paymentID id.PaymentID) (*escrow.Account, error)
	RequestRelease(ctx context.Context, number id.AccountID, amount decimal.Decimal, requestedBy id.PartyID, reason string) (*escrow.Account, id.RequestID, error)
	ApproveRelease(ctx context.Context, number id.AccountID, requestID id.RequestID, approvedBy id.PartyID, approved bool) (*escrow.Account, bool, error)
	Release(ctx context.Context, number id.AccountID, amount decimal.Decimal, recipient id.PartyID) (*escrow.Account, error)
	Cancel(ctx context.Context, number id.AccountID, reason string) (*escrow.Account, error)
	FulfillCondition(ctx context.Context, number id.AccountID, name string) (*escrow.Account, error)
	Get(ctx context.Context, number id.AccountID) (*escrow.Account, error)
}

// Handler handles escrow endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New creates an escrow Handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the escrow routes on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/escrow/accounts", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/{number}", h.handleGet)
		r.Post("/{number}/deposits", h.handleDeposit)
		r.Post("/{number}/release-requests", h.handleRequestRelease)
		r.Post("/{number}/release-requests/{requestID}/approval", h.handleApprove)
		r.Post("/{number}/release", h.handleRelease)
		r.Post("/{number}/conditions/{name}/fulfill", h.handleFulfillCondition)
		r.Post("/{number}/cancel", h.handleCancel)
	})
}

type createRequest struct {
	PropertyID        string `json:"property_id"`
	BuyerID           string `json:"buyer_id"`
	SellerID          string `json:"seller_id"`
	AgentID           string `json:"agent_id,omitempty"`
	TotalAmount       string `json:"total_amount"`
	BankName          string `json:"bank_name"`
	BankAccountNumber string `json:"bank_account_number"`
	IBAN              string `json:"iban,omitempty"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	total, err := decimal.NewFromString(req.TotalAmount)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid total_amount %q", req.TotalAmount))
		return
	}
	account, err := h.service.CreateAccount(r.Context(), escrow.CreateAccountParams{
		PropertyID:        id.PropertyID(req.PropertyID),
		BuyerID:           id.PartyID(req.BuyerID),
		SellerID:          id.PartyID(req.SellerID),
		AgentID:           id.PartyID(req.AgentID),
		TotalAmount:       total,
		BankName:          req.BankName,
		BankAccountNumber: req.BankAccountNumber,
		IBAN:              req.IBAN,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, account)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	account, err := h.service.Get(r.Context(), accountNumber(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, account)
}

type depositRequest struct {
	Amount    string `json:"amount"`
	PaymentID string `json:"payment_id"`
}

func (h *Handler) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid amount %q", req.Amount))
		return
	}
	account, err := h.service.Deposit(r.Context(), accountNumber(r), amount, id.PaymentID(req.PaymentID))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, account)
}

type releaseRequestRequest struct {
	Amount      string `json:"amount"`
	RequestedBy string `json:"requested_by"`
	Reason      string `json:"reason"`
}

func (h *Handler) handleRequestRelease(w http.ResponseWriter, r *http.Request) {
	var req releaseRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid amount %q", req.Amount))
		return
	}
	account, requestID, err := h.service.RequestRelease(r.Context(), accountNumber(r), amount,
		id.PartyID(req.RequestedBy), req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]any{
		"account":    account,
		"request_id": requestID,
	})
}

type approvalRequest struct {
	ApprovedBy string `json:"approved_by"`
	Approved   bool   `json:"approved"`
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req approvalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	account, allApproved, err := h.service.ApproveRelease(r.Context(), accountNumber(r),
		id.RequestID(chi.URLParam(r, "requestID")), id.PartyID(req.ApprovedBy), req.Approved)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"account":      account,
		"all_approved": allApproved,
	})
}

type releaseRequest struct {
	Amount    string `json:"amount"`
	Recipient string `json:"recipient"`
}

func (h *Handler) handleRelease(w http.ResponseWriter, r *http.Request) {
	var req releaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid amount %q", req.Amount))
		return
	}
	account, err := h.service.Release(r.Context(), accountNumber(r), amount, id.PartyID(req.Recipient))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, account)
}

func (h *Handler) handleFulfillCondition(w http.ResponseWriter, r *http.Request) {
	account, err := h.service.FulfillCondition(r.Context(), accountNumber(r), chi.URLParam(r, "name"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, account)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	account, err := h.service.Cancel(r.Context(), accountNumber(r), req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, account)
}

func accountNumber(r *http.Request) id.AccountID {
	return id.AccountID(chi.URLParam(r, "number"))
}
