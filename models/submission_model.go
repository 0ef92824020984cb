package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

// SubmissionRecord is a stored run as returned by the history endpoints.
type SubmissionRecord struct {
	ID           string                 `json:"id"`
	JobURL       string                 `json:"job_url"`
	Status       string                 `json:"status"`
	SubmittedAt  *time.Time             `json:"submitted_at"`
	FieldsFilled map[FieldCategory]bool `json:"fields_filled"`
	Notes        []string               `json:"notes"`
	Error        string                 `json:"error,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

type SubmissionModel struct {
	DB *sql.DB
}

func NewSubmissionModel(db *sql.DB) *SubmissionModel {
	return &SubmissionModel{DB: db}
}

// Create stores a finalized result.
func (m *SubmissionModel) Create(result *SubmissionResult) (*SubmissionRecord, error) {
	fields, err := json.Marshal(result.FieldsFilled)
	if err != nil {
		return nil, err
	}
	notes, err := json.Marshal(result.Notes)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO submissions (id, job_url, status, submitted_at, fields_filled, notes, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`
	var submittedAt sql.NullTime
	if result.SubmittedAt != nil {
		submittedAt = sql.NullTime{Time: *result.SubmittedAt, Valid: true}
	}

	record := &SubmissionRecord{
		ID:           result.ID,
		JobURL:       result.JobURL,
		Status:       result.Status,
		SubmittedAt:  result.SubmittedAt,
		FieldsFilled: result.FieldsFilled,
		Notes:        result.Notes,
		Error:        result.Error,
	}
	err = m.DB.QueryRow(query, result.ID, result.JobURL, result.Status, submittedAt,
		string(fields), string(notes), result.Error, time.Now()).Scan(&record.CreatedAt)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (m *SubmissionModel) GetByID(id string) (*SubmissionRecord, error) {
	query := `
		SELECT id, job_url, status, submitted_at, fields_filled, notes, error, created_at
		FROM submissions
		WHERE id = $1
	`
	return scanSubmission(m.DB.QueryRow(query, id))
}

func (m *SubmissionModel) GetRecent(limit, offset int) ([]*SubmissionRecord, error) {
	query := `
		SELECT id, job_url, status, submitted_at, fields_filled, notes, error, created_at
		FROM submissions
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := m.DB.Query(query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []*SubmissionRecord{}
	for rows.Next() {
		record, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (*SubmissionRecord, error) {
	record := &SubmissionRecord{}
	var submittedAt sql.NullTime
	var fields, notes string
	var errMsg sql.NullString

	err := row.Scan(&record.ID, &record.JobURL, &record.Status, &submittedAt,
		&fields, &notes, &errMsg, &record.CreatedAt)
	if err != nil {
		return nil, err
	}

	if submittedAt.Valid {
		t := submittedAt.Time
		record.SubmittedAt = &t
	}
	if errMsg.Valid {
		record.Error = errMsg.String
	}
	if err := json.Unmarshal([]byte(fields), &record.FieldsFilled); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(notes), &record.Notes); err != nil {
		return nil, err
	}
	return record, nil
}
