// Package handler is the thin HTTP layer over the installment engine.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"amanah/internal/installment"
	id "amanah/pkg/domain"
	dErrors "amanah/pkg/domain-errors"
	"amanah/pkg/platform/httputil"
)

// Service defines the installment operations the handler depends on.
type Service interface {
	CreatePlan(ctx context.Context, params installment.CreatePlanParams) (*installment.Plan, error)
	RecordPayment(ctx context.Context, planID id.PlanID, number int, paymentID id.PaymentID) (*installment.Plan, error)
	HandleMissed(ctx context.Context, planID id.PlanID, number int) (*installment.Plan, error)
	Upcoming(ctx context.Context, leadID id.LeadID, daysAhead int) ([]installment.UpcomingInstallment, error)
	Get(ctx context.Context, planID id.PlanID) (*installment.Plan, error)
}

// Handler handles installment plan endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New creates an installment Handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the installment routes on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/installment-plans", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/{planID}", h.handleGet)
		r.Post("/{planID}/installments/{number}/payment", h.handleRecordPayment)
		r.Post("/{planID}/installments/{number}/missed", h.handleMissed)
	})
	r.Get("/leads/{leadID}/upcoming-installments", h.handleUpcoming)
}

type createRequest struct {
	PropertyID        string `json:"property_id"`
	LeadID            string `json:"lead_id"`
	TotalAmount       string `json:"total_amount"`
	DownPaymentAmount string `json:"down_payment_amount"`
	InstallmentCount  int    `json:"installment_count"`
	Frequency         string `json:"frequency"`
	StartDate         string `json:"start_date"`
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
	down := decimal.Zero
	if req.DownPaymentAmount != "" {
		down, err = decimal.NewFromString(req.DownPaymentAmount)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid down_payment_amount %q", req.DownPaymentAmount))
			return
		}
	}
	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid start_date %q, want YYYY-MM-DD", req.StartDate))
		return
	}

	plan, err := h.service.CreatePlan(r.Context(), installment.CreatePlanParams{
		PropertyID:        id.PropertyID(req.PropertyID),
		LeadID:            id.LeadID(req.LeadID),
		TotalAmount:       total,
		DownPaymentAmount: down,
		InstallmentCount:  req.InstallmentCount,
		Frequency:         installment.Frequency(req.Frequency),
		StartDate:         startDate,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, plan)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	plan, err := h.service.Get(r.Context(), planID(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, plan)
}

type paymentRequest struct {
	PaymentID string `json:"payment_id"`
}

func (h *Handler) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	number, err := installmentNumber(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	plan, err := h.service.RecordPayment(r.Context(), planID(r), number, id.PaymentID(req.PaymentID))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, plan)
}

func (h *Handler) handleMissed(w http.ResponseWriter, r *http.Request) {
	number, err := installmentNumber(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	plan, err := h.service.HandleMissed(r.Context(), planID(r), number)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, plan)
}

func (h *Handler) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	daysAhead := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid days %q", raw))
			return
		}
		daysAhead = parsed
	}
	upcoming, err := h.service.Upcoming(r.Context(), id.LeadID(chi.URLParam(r, "leadID")), daysAhead)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"upcoming": upcoming,
	})
}

func planID(r *http.Request) id.PlanID {
	return id.PlanID(chi.URLParam(r, "planID"))
}

func installmentNumber(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "number")
	number, err := strconv.Atoi(raw)
	if err != nil || number < 1 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "invalid installment number %q", raw)
	}
	return number, nil
}
