package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/Priya8975/marketplace/internal/domain"
	"github.com/Priya8975/marketplace/internal/domain/payment"
	"github.com/Priya8975/marketplace/internal/usecase"
)

type PaymentHandler struct {
	commands *usecase.Commands
	reads    ReadModels
	logger   *slog.Logger
}

func NewPaymentHandler(c *usecase.Commands, reads ReadModels, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{commands: c, reads: reads, logger: logger}
}

type requestPaymentRequest struct {
	RequestorID domain.UserID       `json:"requestor_id"`
	RecipientID domain.GithubUserID `json:"recipient_id"`
	domain.Amount
	HoursWorked int            `json:"hours_worked"`
	Reason      payment.Reason `json:"reason"`
}

type addReceiptRequest struct {
	domain.Amount
	Receipt payment.Receipt `json:"receipt"`
}

type paymentResponse struct {
	ID                string             `json:"id"`
	RequestorID       string             `json:"requestor_id"`
	RecipientID       int64              `json:"recipient_id"`
	RequestedAmount   decimal.Decimal    `json:"requested_amount"`
	PaidAmount        decimal.Decimal    `json:"paid_amount"`
	Currency          domain.Currency    `json:"currency"`
	Status            payment.Status     `json:"status"`
	HoursWorked       float64            `json:"hours_worked"`
	WorkItems         []payment.WorkItem `json:"work_items"`
	RequestedAt       time.Time          `json:"requested_at"`
	InvoiceReceivedAt *time.Time         `json:"invoice_received_at,omitempty"`
}

func toPaymentResponse(p payment.Payment) paymentResponse {
	items := p.WorkItems
	if items == nil {
		items = []payment.WorkItem{}
	}
	return paymentResponse{
		ID:                p.ID.String(),
		RequestorID:       p.RequestorID.String(),
		RecipientID:       int64(p.RecipientID),
		RequestedAmount:   p.RequestedAmount,
		PaidAmount:        p.PaidAmount,
		Currency:          p.Currency,
		Status:            p.Status,
		HoursWorked:       time.Duration(p.DurationWorked).Hours(),
		WorkItems:         items,
		RequestedAt:       p.RequestedAt,
		InvoiceReceivedAt: p.InvoiceReceivedAt,
	}
}

func paymentID(r *http.Request) (domain.PaymentID, error) {
	id, err := domain.ParsePaymentID(chi.URLParam(r, "paymentID"))
	if err != nil {
		return domain.PaymentID{}, domain.InvalidInputs(fmt.Errorf("invalid payment id: %w", err))
	}
	return id, nil
}

// paymentPath parses the project and payment ids of the URL.
func paymentPath(r *http.Request) (domain.ProjectID, domain.PaymentID, error) {
	project, err := projectID(r)
	if err != nil {
		return domain.ProjectID{}, domain.PaymentID{}, err
	}
	id, err := paymentID(r)
	return project, id, err
}

func (h *PaymentHandler) Request(w http.ResponseWriter, r *http.Request) {
	project, err := projectID(r)
	if err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	var req requestPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	if _, err := domain.ParseCurrency(string(req.Currency)); err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}

	p, err := h.commands.RequestPayment(r.Context(), project, usecase.PaymentRequest{
		RequestorID: req.RequestorID,
		RecipientID: req.RecipientID,
		Amount:      req.Amount,
		HoursWorked: req.HoursWorked,
		Reason:      req.Reason,
	})
	if err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toPaymentResponse(p))
}

func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	project, err := projectID(r)
	if err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	requests, err := h.reads.ListPaymentRequests(r.Context(), project)
	if err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, requests)
}

func (h *PaymentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	project, id, err := paymentPath(r)
	if err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	if err := h.commands.CancelPayment(r.Context(), project, id); err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PaymentHandler) AddReceipt(w http.ResponseWriter, r *http.Request) {
	project, id, err := paymentPath(r)
	if err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	var req addReceiptRequest
	if err := decodeJSON(r, &req); err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	if _, err := domain.ParseCurrency(string(req.Currency)); err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}

	receiptID, err := h.commands.AddPaymentReceipt(r.Context(), project, id, req.Amount, req.Receipt)
	if err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, idResponse{ID: receiptID.String()})
}

func (h *PaymentHandler) MarkInvoiceAsReceived(w http.ResponseWriter, r *http.Request) {
	project, id, err := paymentPath(r)
	if err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	if err := h.commands.MarkInvoiceAsReceived(r.Context(), project, id); err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PaymentHandler) RejectInvoice(w http.ResponseWriter, r *http.Request) {
	project, id, err := paymentPath(r)
	if err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	if err := h.commands.RejectInvoice(r.Context(), project, id); err != nil {
		respondDomainError(w, h.logger, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
