package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dneufang33/mira-sora-visions/internal/domain/enums"
	"github.com/dneufang33/mira-sora-visions/internal/domain/model"
	"github.com/dneufang33/mira-sora-visions/internal/domain/rules"
	entsvc "github.com/dneufang33/mira-sora-visions/internal/services/entitlements"
	"github.com/dneufang33/mira-sora-visions/internal/transport/http/dto"
	httperrors "github.com/dneufang33/mira-sora-visions/internal/transport/http/errors"
)

type SubscriptionHandler struct {
	entitlements *entsvc.Service
	errs         errorResponder
}

func NewSubscriptionHandler(entitlements *entsvc.Service, policy rules.TierPolicy, log *zap.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{entitlements: entitlements, errs: newErrorResponder(policy, log)}
}

// Check reconciles against the billing provider. Clients call it when a
// session starts and after returning from checkout.
func (h *SubscriptionHandler) Check(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.entitlements == nil {
		writeInternal(w, "ENTITLEMENTS_SERVICE_UNAVAILABLE", "entitlements service is unavailable")
		return
	}

	rec, err := h.entitlements.Reconcile(r.Context(), identity)
	if err != nil {
		h.errs.write(w, err, rules.Decision{})
		return
	}
	httperrors.Write(w, http.StatusOK, subscriptionResponse(rec))
}

func (h *SubscriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.entitlements == nil {
		writeInternal(w, "ENTITLEMENTS_SERVICE_UNAVAILABLE", "entitlements service is unavailable")
		return
	}

	rec, err := h.entitlements.Current(r.Context(), identity)
	if err != nil {
		h.errs.write(w, err, rules.Decision{})
		return
	}
	httperrors.Write(w, http.StatusOK, subscriptionResponse(rec))
}

func (h *SubscriptionHandler) Entitlement(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.entitlements == nil {
		writeInternal(w, "ENTITLEMENTS_SERVICE_UNAVAILABLE", "entitlements service is unavailable")
		return
	}

	action, ok := enums.ParseGatedAction(chi.URLParam(r, "action"))
	if !ok {
		writeBadRequest(w, "UNKNOWN_ACTION", "action must be export or audio")
		return
	}

	decision, err := h.entitlements.Check(r.Context(), identity, action)
	if err != nil {
		h.errs.write(w, err, rules.Decision{})
		return
	}
	httperrors.Write(w, http.StatusOK, dto.EntitlementResponse{
		Action:           string(decision.Action),
		Allowed:          decision.Allowed,
		Reason:           string(decision.Reason),
		CreditsRemaining: decision.CreditsRemaining,
	})
}

func subscriptionResponse(rec model.SubscriptionRecord) dto.SubscriptionResponse {
	tier := rec.Tier
	if tier == "" {
		tier = enums.TierNone
	}
	return dto.SubscriptionResponse{
		Subscribed:        rec.Subscribed,
		SubscriptionTier:  string(tier),
		SubscriptionEnd:   rec.PeriodEnd,
		ReadingsRemaining: max(rec.CreditsRemaining, 0),
		LastResetAt:       rec.LastResetAt,
	}
}
