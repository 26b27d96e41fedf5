package model

import (
	"time"

	"github.com/dneufang33/mira-sora-visions/internal/domain/enums"
)

type Questionnaire struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	BirthDate         time.Time `json:"birth_date"`
	BirthTime         string    `json:"birth_time,omitempty"`
	BirthPlace        string    `json:"birth_place"`
	PersonalityTraits []string  `json:"personality_traits"`
	LifeGoals         []string  `json:"life_goals"`
	AdditionalInfo    string    `json:"additional_info,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

type Reading struct {
	ID              string            `json:"id"`
	UserID          string            `json:"user_id"`
	QuestionnaireID string            `json:"questionnaire_id"`
	ReportType      *enums.ReportType `json:"report_type,omitempty"`
	Content         string            `json:"content"`
	Prompt          string            `json:"-"`
	CreatedAt       time.Time         `json:"created_at"`
}

type AudioReading struct {
	ID          string            `json:"id"`
	UserID      string            `json:"user_id"`
	ReadingID   string            `json:"reading_id"`
	Status      enums.AudioStatus `json:"status"`
	ObjectKey   string            `json:"-"`
	AudioURL    string            `json:"audio_url,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

type Video struct {
	ID              string            `json:"id"`
	UserID          string            `json:"user_id"`
	ReadingID       string            `json:"reading_id"`
	AvatarID        string            `json:"avatar_id"`
	ProviderVideoID string            `json:"provider_video_id"`
	Status          enums.VideoStatus `json:"status"`
	VideoURL        string            `json:"video_url,omitempty"`
	DurationSec     int               `json:"duration_sec,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
}

type Export struct {
	ReadingID string    `json:"reading_id"`
	ObjectKey string    `json:"object_key"`
	URL       string    `json:"url"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}
