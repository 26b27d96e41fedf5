package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/dneufang33/mira-sora-visions/internal/domain/rules"
	paymentsvc "github.com/dneufang33/mira-sora-visions/internal/services/payments"
	"github.com/dneufang33/mira-sora-visions/internal/transport/http/dto"
	httperrors "github.com/dneufang33/mira-sora-visions/internal/transport/http/errors"
)

type CheckoutHandler struct {
	payments *paymentsvc.Service
	errs     errorResponder
}

func NewCheckoutHandler(payments *paymentsvc.Service, policy rules.TierPolicy, log *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{payments: payments, errs: newErrorResponder(policy, log)}
}

func (h *CheckoutHandler) Subscription(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.payments == nil {
		writeInternal(w, "PAYMENTS_SERVICE_UNAVAILABLE", "payments service is unavailable")
		return
	}

	var req dto.CheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	url, err := h.payments.StartCheckout(r.Context(), identity, req.Tier, r.Header.Get("Origin"))
	if err != nil {
		h.errs.write(w, err, rules.Decision{})
		return
	}
	httperrors.Write(w, http.StatusOK, dto.RedirectResponse{URL: url})
}

func (h *CheckoutHandler) Product(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.payments == nil {
		writeInternal(w, "PAYMENTS_SERVICE_UNAVAILABLE", "payments service is unavailable")
		return
	}

	var req dto.ProductCheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	url, err := h.payments.StartProductCheckout(r.Context(), identity, req.ProductID, r.Header.Get("Origin"))
	if err != nil {
		h.errs.write(w, err, rules.Decision{})
		return
	}
	httperrors.Write(w, http.StatusOK, dto.RedirectResponse{URL: url})
}

func (h *CheckoutHandler) Portal(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.payments == nil {
		writeInternal(w, "PAYMENTS_SERVICE_UNAVAILABLE", "payments service is unavailable")
		return
	}

	url, err := h.payments.OpenPortal(r.Context(), identity, r.Header.Get("Origin"))
	if err != nil {
		h.errs.write(w, err, rules.Decision{})
		return
	}
	httperrors.Write(w, http.StatusOK, dto.RedirectResponse{URL: url})
}
