package dto

import "github.com/dneufang33/mira-sora-visions/internal/domain/model"

type AudioResponse struct {
	Audio   model.AudioReading `json:"audio"`
	Credits CreditsResponse    `json:"credits"`
}

type AudioListResponse struct {
	Items []model.AudioReading `json:"items"`
}

type ExportResponse struct {
	Export  model.Export    `json:"export"`
	Credits CreditsResponse `json:"credits"`
}

type VideoRequest struct {
	AvatarID string `json:"avatar_id"`
}

type VideoResponse struct {
	Video   model.Video     `json:"video"`
	Credits CreditsResponse `json:"credits"`
}
