package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dneufang33/mira-sora-visions/internal/domain/enums"
	"github.com/dneufang33/mira-sora-visions/internal/domain/model"
)

var (
	ErrQuestionnaireNotFound = errors.New("questionnaire not found")
	ErrReadingNotFound       = errors.New("reading not found")
)

type ReadingRepo struct {
	pool *pgxpool.Pool
}

func NewReadingRepo(pool *pgxpool.Pool) *ReadingRepo {
	return &ReadingRepo{pool: pool}
}

func (r *ReadingRepo) CreateQuestionnaire(ctx context.Context, q model.Questionnaire) (model.Questionnaire, error) {
	if r.pool == nil {
		return model.Questionnaire{}, errNilPool
	}
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if q.PersonalityTraits == nil {
		q.PersonalityTraits = []string{}
	}
	if q.LifeGoals == nil {
		q.LifeGoals = []string{}
	}

	err := r.pool.QueryRow(ctx, `
INSERT INTO questionnaires (
	id,
	user_id,
	birth_date,
	birth_time,
	birth_place,
	personality_traits,
	life_goals,
	additional_info
) VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, NULLIF($8, ''))
RETURNING created_at
`, q.ID, q.UserID, q.BirthDate, q.BirthTime, q.BirthPlace, q.PersonalityTraits, q.LifeGoals, q.AdditionalInfo).Scan(&q.CreatedAt)
	if err != nil {
		return model.Questionnaire{}, fmt.Errorf("insert questionnaire: %w", err)
	}
	return q, nil
}

func (r *ReadingRepo) GetQuestionnaire(ctx context.Context, userID, id string) (model.Questionnaire, error) {
	if r.pool == nil {
		return model.Questionnaire{}, errNilPool
	}

	row := r.pool.QueryRow(ctx, `
SELECT id, user_id, birth_date, birth_time, birth_place, personality_traits, life_goals, additional_info, created_at
FROM questionnaires
WHERE id = $1 AND user_id = $2
`, id, userID)
	q, err := scanQuestionnaire(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Questionnaire{}, ErrQuestionnaireNotFound
		}
		return model.Questionnaire{}, fmt.Errorf("get questionnaire: %w", err)
	}
	return q, nil
}

func (r *ReadingRepo) ListQuestionnaires(ctx context.Context, userID string, limit int) ([]model.Questionnaire, error) {
	if r.pool == nil {
		return nil, errNilPool
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, user_id, birth_date, birth_time, birth_place, personality_traits, life_goals, additional_info, created_at
FROM questionnaires
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2
`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list questionnaires: %w", err)
	}
	defer rows.Close()

	out := make([]model.Questionnaire, 0)
	for rows.Next() {
		q, err := scanQuestionnaire(rows)
		if err != nil {
			return nil, fmt.Errorf("scan questionnaire: %w", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questionnaires: %w", err)
	}
	return out, nil
}

func (r *ReadingRepo) CreateReading(ctx context.Context, rd model.Reading) (model.Reading, error) {
	if r.pool == nil {
		return model.Reading{}, errNilPool
	}
	if rd.ID == "" {
		rd.ID = uuid.NewString()
	}

	var reportType *string
	if rd.ReportType != nil {
		v := string(*rd.ReportType)
		reportType = &v
	}

	err := r.pool.QueryRow(ctx, `
INSERT INTO readings (id, user_id, questionnaire_id, report_type, generated_text, prompt_used)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING created_at
`, rd.ID, rd.UserID, rd.QuestionnaireID, reportType, rd.Content, rd.Prompt).Scan(&rd.CreatedAt)
	if err != nil {
		return model.Reading{}, fmt.Errorf("insert reading: %w", err)
	}
	return rd, nil
}

func (r *ReadingRepo) GetReading(ctx context.Context, userID, id string) (model.Reading, error) {
	if r.pool == nil {
		return model.Reading{}, errNilPool
	}

	row := r.pool.QueryRow(ctx, `
SELECT id, user_id, questionnaire_id, report_type, generated_text, prompt_used, created_at
FROM readings
WHERE id = $1 AND user_id = $2
`, id, userID)
	rd, err := scanReading(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Reading{}, ErrReadingNotFound
		}
		return model.Reading{}, fmt.Errorf("get reading: %w", err)
	}
	return rd, nil
}

func (r *ReadingRepo) ListReadings(ctx context.Context, userID string, limit int) ([]model.Reading, error) {
	if r.pool == nil {
		return nil, errNilPool
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, user_id, questionnaire_id, report_type, generated_text, prompt_used, created_at
FROM readings
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2
`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list readings: %w", err)
	}
	defer rows.Close()

	out := make([]model.Reading, 0)
	for rows.Next() {
		rd, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		out = append(out, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate readings: %w", err)
	}
	return out, nil
}

func scanQuestionnaire(row pgx.Row) (model.Questionnaire, error) {
	var (
		q              model.Questionnaire
		birthTime      *string
		additionalInfo *string
	)
	if err := row.Scan(
		&q.ID,
		&q.UserID,
		&q.BirthDate,
		&birthTime,
		&q.BirthPlace,
		&q.PersonalityTraits,
		&q.LifeGoals,
		&additionalInfo,
		&q.CreatedAt,
	); err != nil {
		return model.Questionnaire{}, err
	}
	if birthTime != nil {
		q.BirthTime = *birthTime
	}
	if additionalInfo != nil {
		q.AdditionalInfo = *additionalInfo
	}
	return q, nil
}

func scanReading(row pgx.Row) (model.Reading, error) {
	var (
		rd         model.Reading
		reportType *string
		createdAt  time.Time
	)
	if err := row.Scan(&rd.ID, &rd.UserID, &rd.QuestionnaireID, &reportType, &rd.Content, &rd.Prompt, &createdAt); err != nil {
		return model.Reading{}, err
	}
	if reportType != nil {
		rt := enums.ReportType(*reportType)
		rd.ReportType = &rt
	}
	rd.CreatedAt = createdAt
	return rd, nil
}
