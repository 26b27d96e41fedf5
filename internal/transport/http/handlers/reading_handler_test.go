package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/dneufang33/mira-sora-visions/internal/domain/model"
	pgrepo "github.com/dneufang33/mira-sora-visions/internal/repo/postgres"
	readingsvc "github.com/dneufang33/mira-sora-visions/internal/services/readings"
	"github.com/dneufang33/mira-sora-visions/internal/transport/http/dto"
)

type readingStoreStub struct {
	questionnaires []model.Questionnaire
}

func (s *readingStoreStub) CreateQuestionnaire(_ context.Context, q model.Questionnaire) (model.Questionnaire, error) {
	q.ID = "q-1"
	s.questionnaires = append(s.questionnaires, q)
	return q, nil
}

func (s *readingStoreStub) GetQuestionnaire(context.Context, string, string) (model.Questionnaire, error) {
	return model.Questionnaire{}, pgrepo.ErrQuestionnaireNotFound
}

func (s *readingStoreStub) ListQuestionnaires(context.Context, string, int) ([]model.Questionnaire, error) {
	return s.questionnaires, nil
}

func (s *readingStoreStub) CreateReading(_ context.Context, rd model.Reading) (model.Reading, error) {
	return rd, nil
}

func (s *readingStoreStub) GetReading(context.Context, string, string) (model.Reading, error) {
	return model.Reading{}, pgrepo.ErrReadingNotFound
}

func (s *readingStoreStub) ListReadings(context.Context, string, int) ([]model.Reading, error) {
	return nil, nil
}

type generatorStub struct{}

func (generatorStub) Complete(context.Context, string, string, int) (string, error) {
	return "The stars lean toward you.", nil
}

func newReadingHandler(store *readingStoreStub) *ReadingHandler {
	return NewReadingHandler(readingsvc.NewService(readingsvc.Dependencies{Store: store, Generator: generatorStub{}}), nil)
}

func TestCreateQuestionnaire(t *testing.T) {
	store := &readingStoreStub{}
	h := newReadingHandler(store)

	body := `{"birth_date":"1990-10-05","birth_time":"07:15","birth_place":"Lisbon","personality_traits":["curious"],"life_goals":["travel"]}`
	resp := serve(t, http.MethodPost, "/v1/questionnaires", "/v1/questionnaires", body, h.CreateQuestionnaire, true)
	if resp.Code != http.StatusCreated {
		t.Fatalf("unexpected status: got %d body=%s", resp.Code, resp.Body.String())
	}
	if len(store.questionnaires) != 1 || store.questionnaires[0].UserID != testIdentity.UserID {
		t.Fatalf("questionnaire not stored for caller")
	}
}

func TestCreateQuestionnaireRejectsBadDate(t *testing.T) {
	h := newReadingHandler(&readingStoreStub{})

	body := `{"birth_date":"05/10/1990","birth_place":"Lisbon"}`
	resp := serve(t, http.MethodPost, "/v1/questionnaires", "/v1/questionnaires", body, h.CreateQuestionnaire, true)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got %d", resp.Code)
	}
}

func TestCreateReadingForMissingQuestionnaire(t *testing.T) {
	h := newReadingHandler(&readingStoreStub{})

	resp := serve(t, http.MethodPost, "/v1/readings", "/v1/readings", `{"questionnaire_id":"missing"}`, h.CreateReading, true)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: got %d", resp.Code)
	}
}

func TestGetReadingNotFound(t *testing.T) {
	h := newReadingHandler(&readingStoreStub{})

	resp := serve(t, http.MethodGet, "/v1/readings/{id}", "/v1/readings/nope", "", h.GetReading, true)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: got %d", resp.Code)
	}
}

func TestListReadingsReturnsEmptyArray(t *testing.T) {
	h := newReadingHandler(&readingStoreStub{})

	resp := serve(t, http.MethodGet, "/v1/readings", "/v1/readings", "", h.ListReadings, true)
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d", resp.Code)
	}
	var payload dto.ReadingListResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Items == nil || len(payload.Items) != 0 {
		t.Fatalf("unexpected items: %+v", payload.Items)
	}
}
