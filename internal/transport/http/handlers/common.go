package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/dneufang33/mira-sora-visions/internal/domain/rules"
	"github.com/dneufang33/mira-sora-visions/internal/infra/httpclient"
	stripeinfra "github.com/dneufang33/mira-sora-visions/internal/infra/stripe"
	audiosvc "github.com/dneufang33/mira-sora-visions/internal/services/audio"
	authsvc "github.com/dneufang33/mira-sora-visions/internal/services/auth"
	entsvc "github.com/dneufang33/mira-sora-visions/internal/services/entitlements"
	exportsvc "github.com/dneufang33/mira-sora-visions/internal/services/export"
	paymentsvc "github.com/dneufang33/mira-sora-visions/internal/services/payments"
	ratesvc "github.com/dneufang33/mira-sora-visions/internal/services/rate"
	readingsvc "github.com/dneufang33/mira-sora-visions/internal/services/readings"
	videosvc "github.com/dneufang33/mira-sora-visions/internal/services/videos"
	httperrors "github.com/dneufang33/mira-sora-visions/internal/transport/http/errors"
)

const defaultListLimit = 20

func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

// decodeOptionalJSON accepts an empty body.
func decodeOptionalJSON(r *http.Request, target any) error {
	if err := decodeJSON(r, target); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func writeBadRequest(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusBadRequest, httperrors.APIError{Code: code, Message: message})
}

func writeUnauthorized(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusUnauthorized, httperrors.APIError{Code: code, Message: message})
}

func writeInternal(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusInternalServerError, httperrors.APIError{Code: code, Message: message})
}

func requireIdentity(w http.ResponseWriter, r *http.Request) (authsvc.Identity, bool) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
	}
	return identity, ok
}

func parseLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	return min(limit, 100)
}

// errorResponder turns service errors into one JSON error body.
type errorResponder struct {
	policy rules.TierPolicy
	log    *zap.Logger
}

func newErrorResponder(policy rules.TierPolicy, log *zap.Logger) errorResponder {
	if len(policy.Prices) == 0 {
		policy = rules.DefaultTierPolicy()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return errorResponder{policy: policy, log: log}
}

func (e errorResponder) write(w http.ResponseWriter, err error, decision rules.Decision) {
	var limited *ratesvc.LimitedError
	switch {
	case errors.Is(err, entsvc.ErrNotSubscribed):
		e.writeUpgradeRequired(w, "SUBSCRIPTION_REQUIRED", "an active subscription is required", decision)
	case errors.Is(err, entsvc.ErrNoCreditsRemaining):
		e.writeUpgradeRequired(w, "NO_CREDITS_REMAINING", "no credits remain in this billing period", decision)
	case errors.Is(err, entsvc.ErrActionInProgress):
		httperrors.Write(w, http.StatusConflict, httperrors.APIError{Code: "ACTION_IN_PROGRESS", Message: "this action is already running"})
	case errors.Is(err, entsvc.ErrAlreadyExhausted):
		httperrors.Write(w, http.StatusConflict, httperrors.APIError{Code: "CREDITS_EXHAUSTED", Message: "credits were spent by another request"})
	case errors.As(err, &limited):
		w.Header().Set("Retry-After", strconv.FormatInt(limited.RetryAfterSec, 10))
		httperrors.Write(w, http.StatusTooManyRequests, httperrors.RateLimitError{
			Code:          "TOO_MANY_REQUESTS",
			Message:       "too many generation requests",
			RetryAfterSec: limited.RetryAfterSec,
		})
	case errors.Is(err, authsvc.ErrUnauthorized):
		writeUnauthorized(w, "UNAUTHORIZED", "authentication failed")
	case errors.Is(err, authsvc.ErrUnavailable):
		httperrors.Write(w, http.StatusServiceUnavailable, httperrors.APIError{Code: "AUTH_UNAVAILABLE", Message: "identity service is unavailable"})
	case isValidation(err):
		writeBadRequest(w, "VALIDATION_ERROR", validationMessage(err))
	case errors.Is(err, paymentsvc.ErrUnsupportedTier):
		writeBadRequest(w, "UNSUPPORTED_TIER", "unsupported subscription tier")
	case errors.Is(err, paymentsvc.ErrUnknownProduct):
		writeBadRequest(w, "UNKNOWN_PRODUCT", "unknown product")
	case errors.Is(err, audiosvc.ErrEmptyReading), errors.Is(err, exportsvc.ErrEmptyReading), errors.Is(err, videosvc.ErrEmptyReading):
		httperrors.Write(w, http.StatusUnprocessableEntity, httperrors.APIError{Code: "EMPTY_READING", Message: "reading has no content"})
	case errors.Is(err, readingsvc.ErrNotFound), errors.Is(err, videosvc.ErrNotFound), errors.Is(err, paymentsvc.ErrNoBillingCustomer):
		httperrors.Write(w, http.StatusNotFound, httperrors.APIError{Code: "NOT_FOUND", Message: notFoundMessage(err)})
	case errors.Is(err, videosvc.ErrNoProviderID):
		httperrors.Write(w, http.StatusConflict, httperrors.APIError{Code: "VIDEO_NOT_SUBMITTED", Message: "video has not been accepted by the provider yet"})
	case errors.Is(err, stripeinfra.ErrNotConfigured):
		httperrors.Write(w, http.StatusServiceUnavailable, httperrors.APIError{Code: "BILLING_UNAVAILABLE", Message: "billing is not configured"})
	case errors.Is(err, entsvc.ErrProvider) || httpclient.IsProviderError(err):
		message, ok := httpclient.ProviderMessage(err)
		if !ok {
			message = "upstream provider failed"
		}
		e.log.Warn("provider failure", zap.Error(err))
		httperrors.Write(w, http.StatusBadGateway, httperrors.APIError{Code: "PROVIDER_ERROR", Message: message})
	default:
		e.log.Error("request failed", zap.Error(err))
		writeInternal(w, "INTERNAL_ERROR", "internal server error")
	}
}

func (e errorResponder) writeUpgradeRequired(w http.ResponseWriter, code, message string, decision rules.Decision) {
	options := make([]httperrors.UpgradeOption, 0, len(e.policy.Prices))
	for tier, amount := range e.policy.Prices {
		options = append(options, httperrors.UpgradeOption{Tier: string(tier), AmountCents: amount})
	}
	sort.Slice(options, func(i, j int) bool { return options[i].AmountCents < options[j].AmountCents })

	httperrors.Write(w, http.StatusPaymentRequired, httperrors.UpgradeRequiredError{
		Code:             code,
		Message:          message,
		Action:           string(decision.Action),
		CreditsRemaining: decision.CreditsRemaining,
		UpgradeRequired:  true,
		UpgradeOptions:   options,
	})
}

func isValidation(err error) bool {
	return errors.Is(err, entsvc.ErrValidation) ||
		errors.Is(err, paymentsvc.ErrValidation) ||
		errors.Is(err, readingsvc.ErrValidation) ||
		errors.Is(err, audiosvc.ErrValidation) ||
		errors.Is(err, exportsvc.ErrValidation) ||
		errors.Is(err, videosvc.ErrValidation)
}

// validationMessage exposes the field detail services attach to ErrValidation.
func validationMessage(err error) string {
	if errors.Unwrap(err) == nil {
		return "request validation failed"
	}
	return err.Error()
}

func notFoundMessage(err error) string {
	if errors.Is(err, paymentsvc.ErrNoBillingCustomer) {
		return "no billing account exists for this user"
	}
	return "resource not found"
}
