package dto

import "github.com/dneufang33/mira-sora-visions/internal/domain/model"

type QuestionnaireRequest struct {
	BirthDate         string   `json:"birth_date"`
	BirthTime         string   `json:"birth_time"`
	BirthPlace        string   `json:"birth_place"`
	PersonalityTraits []string `json:"personality_traits"`
	LifeGoals         []string `json:"life_goals"`
	AdditionalInfo    string   `json:"additional_info"`
}

type QuestionnaireListResponse struct {
	Items []model.Questionnaire `json:"items"`
}

type ReadingRequest struct {
	QuestionnaireID string `json:"questionnaire_id"`
}

type ReportRequest struct {
	ProductType     string `json:"product_type"`
	QuestionnaireID string `json:"questionnaire_id"`
}

type ReadingListResponse struct {
	Items []model.Reading `json:"items"`
}
