package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dneufang33/mira-sora-visions/internal/domain/model"
	"github.com/dneufang33/mira-sora-visions/internal/domain/rules"
	readingsvc "github.com/dneufang33/mira-sora-visions/internal/services/readings"
	"github.com/dneufang33/mira-sora-visions/internal/transport/http/dto"
	httperrors "github.com/dneufang33/mira-sora-visions/internal/transport/http/errors"
)

type ReadingHandler struct {
	readings *readingsvc.Service
	errs     errorResponder
}

func NewReadingHandler(readings *readingsvc.Service, log *zap.Logger) *ReadingHandler {
	return &ReadingHandler{readings: readings, errs: newErrorResponder(rules.TierPolicy{}, log)}
}

func (h *ReadingHandler) CreateQuestionnaire(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.readings == nil {
		writeInternal(w, "READINGS_SERVICE_UNAVAILABLE", "readings service is unavailable")
		return
	}

	var req dto.QuestionnaireRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	q, err := h.readings.SubmitQuestionnaire(r.Context(), identity.UserID, readingsvc.QuestionnaireInput{
		BirthDate:         req.BirthDate,
		BirthTime:         req.BirthTime,
		BirthPlace:        req.BirthPlace,
		PersonalityTraits: req.PersonalityTraits,
		LifeGoals:         req.LifeGoals,
		AdditionalInfo:    req.AdditionalInfo,
	})
	if err != nil {
		h.errs.write(w, err, rules.Decision{})
		return
	}
	httperrors.Write(w, http.StatusCreated, q)
}

func (h *ReadingHandler) ListQuestionnaires(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.readings == nil {
		writeInternal(w, "READINGS_SERVICE_UNAVAILABLE", "readings service is unavailable")
		return
	}

	items, err := h.readings.ListQuestionnaires(r.Context(), identity.UserID, parseLimit(r))
	if err != nil {
		h.errs.write(w, err, rules.Decision{})
		return
	}
	if items == nil {
		items = []model.Questionnaire{}
	}
	httperrors.Write(w, http.StatusOK, dto.QuestionnaireListResponse{Items: items})
}

func (h *ReadingHandler) CreateReading(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.readings == nil {
		writeInternal(w, "READINGS_SERVICE_UNAVAILABLE", "readings service is unavailable")
		return
	}

	var req dto.ReadingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	reading, err := h.readings.GenerateReading(r.Context(), identity.UserID, req.QuestionnaireID)
	if err != nil {
		h.errs.write(w, err, rules.Decision{})
		return
	}
	httperrors.Write(w, http.StatusCreated, reading)
}

func (h *ReadingHandler) CreateReport(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.readings == nil {
		writeInternal(w, "READINGS_SERVICE_UNAVAILABLE", "readings service is unavailable")
		return
	}

	var req dto.ReportRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	reading, err := h.readings.GenerateReport(r.Context(), identity.UserID, req.ProductType, req.QuestionnaireID)
	if err != nil {
		h.errs.write(w, err, rules.Decision{})
		return
	}
	httperrors.Write(w, http.StatusCreated, reading)
}

func (h *ReadingHandler) GetReading(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.readings == nil {
		writeInternal(w, "READINGS_SERVICE_UNAVAILABLE", "readings service is unavailable")
		return
	}

	reading, err := h.readings.GetReading(r.Context(), identity.UserID, chi.URLParam(r, "id"))
	if err != nil {
		h.errs.write(w, err, rules.Decision{})
		return
	}
	httperrors.Write(w, http.StatusOK, reading)
}

func (h *ReadingHandler) ListReadings(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.readings == nil {
		writeInternal(w, "READINGS_SERVICE_UNAVAILABLE", "readings service is unavailable")
		return
	}

	items, err := h.readings.ListReadings(r.Context(), identity.UserID, parseLimit(r))
	if err != nil {
		h.errs.write(w, err, rules.Decision{})
		return
	}
	if items == nil {
		items = []model.Reading{}
	}
	httperrors.Write(w, http.StatusOK, dto.ReadingListResponse{Items: items})
}
