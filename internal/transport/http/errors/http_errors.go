package errors

import (
	"encoding/json"
	"net/http"
)

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type RateLimitError struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	RetryAfterSec int64  `json:"retry_after_sec"`
}

type UpgradeOption struct {
	Tier        string `json:"tier"`
	AmountCents int64  `json:"amount_cents"`
}

// UpgradeRequiredError is the body of a gate denial.
type UpgradeRequiredError struct {
	Code             string          `json:"code"`
	Message          string          `json:"message"`
	Action           string          `json:"action"`
	CreditsRemaining int             `json:"credits_remaining"`
	UpgradeRequired  bool            `json:"upgrade_required"`
	UpgradeOptions   []UpgradeOption `json:"upgrade_options"`
}

func Write(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
