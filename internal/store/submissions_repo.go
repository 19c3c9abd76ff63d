package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"agentdesk/internal/core"
)

var ErrSubmissionNotFound = errors.New("submission not found")

// sortableTime keeps stored timestamps fixed-width so they order as text.
const sortableTime = "2006-01-02T15:04:05.000000000Z07:00"

type fileRecord struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Path string `json:"path"`
}

func (s *Store) InsertSubmission(ctx context.Context, sub *core.Submission) error {
	if sub.ID == "" {
		sub.ID = core.NewID()
	}
	sub.CreatedAt = time.Now().UTC()
	files := make([]fileRecord, 0, len(sub.Files))
	for _, f := range sub.Files {
		files = append(files, fileRecord{Name: f.Name, Size: f.Size, Path: f.Path})
	}
	filesJSON, err := json.Marshal(files)
	if err != nil {
		return fmt.Errorf("encode files: %w", err)
	}
	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO submissions (id, task, outcome, output, error, error_class, files, agent_timestamp, started_at, ended_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sub.ID, sub.Task, sub.Outcome, nullableString(sub.Output), nullableString(sub.Error), nullableString(string(sub.ErrorClass)),
		string(filesJSON), nullableString(sub.AgentTimestamp),
		sub.StartedAt.UTC().Format(sortableTime), sub.EndedAt.UTC().Format(sortableTime),
		sub.CreatedAt.Format(sortableTime))
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (s *Store) GetSubmission(ctx context.Context, id string) (*core.Submission, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT id, task, outcome, output, error, error_class, files, agent_timestamp, started_at, ended_at, created_at
		FROM submissions WHERE id = ?
	`, id)
	sub, err := scanSubmission(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}
	return sub, nil
}

func (s *Store) ListSubmissions(ctx context.Context, limit, offset int) ([]*core.Submission, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, task, outcome, output, error, error_class, files, agent_timestamp, started_at, ended_at, created_at
		FROM submissions
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()
	var subs []*core.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return subs, nil
}

// Prune applies the configured retention.
func (s *Store) Prune(ctx context.Context) (int64, error) {
	return s.PruneSubmissions(ctx, s.HistoryKeep)
}

// PruneSubmissions deletes everything but the newest keep submissions.
func (s *Store) PruneSubmissions(ctx context.Context, keep int) (int64, error) {
	if keep < 1 {
		keep = 1
	}
	res, err := s.DB.ExecContext(ctx, `
		DELETE FROM submissions
		WHERE id IN (
			SELECT id FROM submissions
			ORDER BY created_at DESC, rowid DESC
			LIMIT -1 OFFSET ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune submissions: %w", err)
	}
	return res.RowsAffected()
}

func scanSubmission(scanner interface {
	Scan(dest ...any) error
}) (*core.Submission, error) {
	var (
		id             string
		task           string
		outcome        string
		output         sql.NullString
		errMsg         sql.NullString
		errClass       sql.NullString
		files          string
		agentTimestamp sql.NullString
		startedAt      string
		endedAt        string
		createdAt      string
	)
	if err := scanner.Scan(&id, &task, &outcome, &output, &errMsg, &errClass, &files, &agentTimestamp, &startedAt, &endedAt, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan submission: %w", err)
	}
	sub := &core.Submission{
		ID:             id,
		Task:           task,
		Outcome:        core.OutcomeKind(outcome),
		Output:         output.String,
		Error:          errMsg.String,
		ErrorClass:     core.ErrorClass(errClass.String),
		AgentTimestamp: agentTimestamp.String,
		Files:          []core.GeneratedFile{},
	}
	var records []fileRecord
	if err := json.Unmarshal([]byte(files), &records); err != nil {
		return nil, fmt.Errorf("decode files for %s: %w", id, err)
	}
	for _, r := range records {
		sub.Files = append(sub.Files, core.GeneratedFile{Name: r.Name, Size: r.Size, Path: r.Path})
	}
	if t, err := time.Parse(time.RFC3339Nano, startedAt); err == nil {
		sub.StartedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, endedAt); err == nil {
		sub.EndedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		sub.CreatedAt = t
	}
	return sub, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
