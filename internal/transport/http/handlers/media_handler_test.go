package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/dneufang33/mira-sora-visions/internal/domain/model"
	"github.com/dneufang33/mira-sora-visions/internal/domain/rules"
	entsvc "github.com/dneufang33/mira-sora-visions/internal/services/entitlements"
	exportsvc "github.com/dneufang33/mira-sora-visions/internal/services/export"
	"github.com/dneufang33/mira-sora-visions/internal/transport/http/dto"
	httperrors "github.com/dneufang33/mira-sora-visions/internal/transport/http/errors"
)

type readingSourceStub struct{}

func (readingSourceStub) GetReading(_ context.Context, _ string, id string) (model.Reading, error) {
	return model.Reading{ID: id, Content: "Venus lingers in your fifth house."}, nil
}

type objectStorageStub struct {
	puts int
}

func (s *objectStorageStub) Put(context.Context, string, []byte, string) error {
	s.puts++
	return nil
}

func (s *objectStorageStub) PresignGet(_ context.Context, key string) (string, error) {
	return "https://s3.example/" + key, nil
}

func TestExportDebitsOneCredit(t *testing.T) {
	storage := &objectStorageStub{}
	gate := newEntitlements(subscribedBilling(1999))
	h := NewMediaHandler(nil, exportsvc.NewService(readingSourceStub{}, storage, gate, nil), nil, rules.DefaultTierPolicy(), nil)

	resp := serve(t, http.MethodPost, "/v1/readings/{id}/export", "/v1/readings/reading-1/export", "", h.CreateExport, true)
	if resp.Code != http.StatusCreated {
		t.Fatalf("unexpected status: got %d body=%s", resp.Code, resp.Body.String())
	}

	var payload dto.ExportResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Credits.Remaining != 3 || payload.Credits.OverGranted {
		t.Fatalf("unexpected credits: %+v", payload.Credits)
	}
	if payload.Export.ReadingID != "reading-1" || payload.Export.URL == "" || storage.puts != 1 {
		t.Fatalf("unexpected export: %+v", payload.Export)
	}
}

func TestExportKeepsLinkWhenCreditWriteFails(t *testing.T) {
	storage := &objectStorageStub{}
	subscribers := newSubscriberStub()
	subscribers.writeErr = errors.New("db write timeout")
	gate := entsvc.NewService(entsvc.Dependencies{
		Billing: subscribedBilling(1999),
		Store:   subscribers,
		Mirror:  entsvc.NewMemoryMirror(),
	}, entsvc.Config{})
	h := NewMediaHandler(nil, exportsvc.NewService(readingSourceStub{}, storage, gate, nil), nil, rules.DefaultTierPolicy(), nil)

	resp := serve(t, http.MethodPost, "/v1/readings/{id}/export", "/v1/readings/reading-1/export", "", h.CreateExport, true)
	if resp.Code != http.StatusCreated {
		t.Fatalf("unexpected status: got %d body=%s", resp.Code, resp.Body.String())
	}

	var payload dto.ExportResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Export.URL == "" || !payload.Credits.DebitFailed {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestExportDeniedWithoutSubscription(t *testing.T) {
	storage := &objectStorageStub{}
	gate := newEntitlements(&billingStub{})
	h := NewMediaHandler(nil, exportsvc.NewService(readingSourceStub{}, storage, gate, nil), nil, rules.DefaultTierPolicy(), nil)

	resp := serve(t, http.MethodPost, "/v1/readings/{id}/export", "/v1/readings/reading-1/export", "", h.CreateExport, true)
	if resp.Code != http.StatusPaymentRequired {
		t.Fatalf("unexpected status: got %d", resp.Code)
	}

	var payload httperrors.UpgradeRequiredError
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Code != "SUBSCRIPTION_REQUIRED" || !payload.UpgradeRequired || payload.Action != "export" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if len(payload.UpgradeOptions) != 2 || payload.UpgradeOptions[0].Tier != "written" || payload.UpgradeOptions[1].AmountCents != 1999 {
		t.Fatalf("unexpected upgrade options: %+v", payload.UpgradeOptions)
	}
	if storage.puts != 0 {
		t.Fatalf("denied export reached storage")
	}
}

func TestExportDeniedWhenCreditsSpent(t *testing.T) {
	gate := newEntitlements(subscribedBilling(999))
	h := NewMediaHandler(nil, exportsvc.NewService(readingSourceStub{}, &objectStorageStub{}, gate, nil), nil, rules.DefaultTierPolicy(), nil)

	for i := 0; i < 4; i++ {
		resp := serve(t, http.MethodPost, "/v1/readings/{id}/export", "/v1/readings/r/export", "", h.CreateExport, true)
		if resp.Code != http.StatusCreated {
			t.Fatalf("unexpected status on export %d: got %d", i+1, resp.Code)
		}
	}

	resp := serve(t, http.MethodPost, "/v1/readings/{id}/export", "/v1/readings/r/export", "", h.CreateExport, true)
	if resp.Code != http.StatusPaymentRequired {
		t.Fatalf("unexpected status on fifth export: got %d", resp.Code)
	}
	var payload httperrors.UpgradeRequiredError
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Code != "NO_CREDITS_REMAINING" || payload.CreditsRemaining != 0 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestMediaHandlersWithoutServices(t *testing.T) {
	h := NewMediaHandler(nil, nil, nil, rules.TierPolicy{}, nil)

	cases := []struct {
		pattern string
		target  string
		handler http.HandlerFunc
	}{
		{"/v1/readings/{id}/audio", "/v1/readings/r/audio", h.CreateAudio},
		{"/v1/readings/{id}/export", "/v1/readings/r/export", h.CreateExport},
		{"/v1/readings/{id}/video", "/v1/readings/r/video", h.CreateVideo},
		{"/v1/videos/{id}/status", "/v1/videos/v/status", h.VideoStatus},
	}
	for _, tc := range cases {
		resp := serve(t, http.MethodPost, tc.pattern, tc.target, "", tc.handler, true)
		if resp.Code != http.StatusInternalServerError {
			t.Fatalf("unexpected status for %s: got %d", tc.target, resp.Code)
		}
	}
}
