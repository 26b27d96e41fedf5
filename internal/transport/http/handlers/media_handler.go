package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dneufang33/mira-sora-visions/internal/domain/enums"
	"github.com/dneufang33/mira-sora-visions/internal/domain/model"
	"github.com/dneufang33/mira-sora-visions/internal/domain/rules"
	audiosvc "github.com/dneufang33/mira-sora-visions/internal/services/audio"
	entsvc "github.com/dneufang33/mira-sora-visions/internal/services/entitlements"
	exportsvc "github.com/dneufang33/mira-sora-visions/internal/services/export"
	videosvc "github.com/dneufang33/mira-sora-visions/internal/services/videos"
	"github.com/dneufang33/mira-sora-visions/internal/transport/http/dto"
	httperrors "github.com/dneufang33/mira-sora-visions/internal/transport/http/errors"
)

// MediaHandler serves the credit-gated outputs of a reading.
type MediaHandler struct {
	audio  *audiosvc.Service
	export *exportsvc.Service
	videos *videosvc.Service
	errs   errorResponder
}

func NewMediaHandler(audio *audiosvc.Service, export *exportsvc.Service, videos *videosvc.Service, policy rules.TierPolicy, log *zap.Logger) *MediaHandler {
	return &MediaHandler{audio: audio, export: export, videos: videos, errs: newErrorResponder(policy, log)}
}

func (h *MediaHandler) CreateAudio(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.audio == nil {
		writeInternal(w, "AUDIO_SERVICE_UNAVAILABLE", "audio service is unavailable")
		return
	}

	out, err := h.audio.Generate(r.Context(), identity, chi.URLParam(r, "id"))
	if err != nil {
		h.errs.write(w, err, deniedDecision(out.Accounting, enums.GatedActionAudio))
		return
	}
	httperrors.Write(w, http.StatusCreated, dto.AudioResponse{Audio: out.Audio, Credits: creditsResponse(out.Accounting)})
}

func (h *MediaHandler) ListAudio(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.audio == nil {
		writeInternal(w, "AUDIO_SERVICE_UNAVAILABLE", "audio service is unavailable")
		return
	}

	items, err := h.audio.List(r.Context(), identity, chi.URLParam(r, "id"))
	if err != nil {
		h.errs.write(w, err, rules.Decision{})
		return
	}
	if items == nil {
		items = []model.AudioReading{}
	}
	httperrors.Write(w, http.StatusOK, dto.AudioListResponse{Items: items})
}

func (h *MediaHandler) CreateExport(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.export == nil {
		writeInternal(w, "EXPORT_SERVICE_UNAVAILABLE", "export service is unavailable")
		return
	}

	out, err := h.export.Export(r.Context(), identity, chi.URLParam(r, "id"))
	if err != nil {
		h.errs.write(w, err, deniedDecision(out.Accounting, enums.GatedActionExport))
		return
	}
	httperrors.Write(w, http.StatusCreated, dto.ExportResponse{Export: out.Export, Credits: creditsResponse(out.Accounting)})
}

func (h *MediaHandler) CreateVideo(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.videos == nil {
		writeInternal(w, "VIDEO_SERVICE_UNAVAILABLE", "video service is unavailable")
		return
	}

	var req dto.VideoRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	out, err := h.videos.Submit(r.Context(), identity, chi.URLParam(r, "id"), req.AvatarID)
	if err != nil {
		h.errs.write(w, err, deniedDecision(out.Accounting, enums.GatedActionAudio))
		return
	}
	httperrors.Write(w, http.StatusAccepted, dto.VideoResponse{Video: out.Video, Credits: creditsResponse(out.Accounting)})
}

func (h *MediaHandler) VideoStatus(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.videos == nil {
		writeInternal(w, "VIDEO_SERVICE_UNAVAILABLE", "video service is unavailable")
		return
	}

	video, err := h.videos.Poll(r.Context(), identity, chi.URLParam(r, "id"))
	if err != nil {
		h.errs.write(w, err, rules.Decision{})
		return
	}
	httperrors.Write(w, http.StatusOK, video)
}

func deniedDecision(result entsvc.Result, action enums.GatedAction) rules.Decision {
	decision := result.Decision
	if decision.Action == "" {
		decision.Action = action
	}
	return decision
}

func creditsResponse(result entsvc.Result) dto.CreditsResponse {
	return dto.CreditsResponse{
		Remaining:   max(result.Record.CreditsRemaining, 0),
		OverGranted: result.OverGranted,
		DebitFailed: result.DebitFailed,
	}
}
