package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"mathcast/api/internal/problem"
)

// HistoryEntry is one solved problem as shown in the history list.
type HistoryEntry struct {
	ID            string           `json:"id"`
	CreatedAt     time.Time        `json:"created_at"`
	ImageHash     string           `json:"image_hash,omitempty"`
	ExtractedText string           `json:"extracted_text"`
	Problem       problem.Problem  `json:"problem"`
	Solution      problem.Solution `json:"solution"`
	Artifact      problem.Artifact `json:"artifact"`
}

type HistoryRepo struct{ DB *sql.DB }

func NewHistoryRepo(db *sql.DB) *HistoryRepo { return &HistoryRepo{DB: db} }

// Save inserts the entry or overwrites the one with the same id.
func (r *HistoryRepo) Save(ctx context.Context, e HistoryEntry) error {
	pj, _ := json.Marshal(e.Problem)
	sj, _ := json.Marshal(e.Solution)
	aj, _ := json.Marshal(e.Artifact)
	const q = `
insert into solve_history (
  id, image_hash, extracted_text, problem_type, final_answer, provider, verified,
  problem_json, solution_json, artifact_json
) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
on conflict (id) do update
set image_hash = excluded.image_hash,
    extracted_text = excluded.extracted_text,
    problem_type = excluded.problem_type,
    final_answer = excluded.final_answer,
    provider = excluded.provider,
    verified = excluded.verified,
    problem_json = excluded.problem_json,
    solution_json = excluded.solution_json,
    artifact_json = excluded.artifact_json`
	_, err := r.DB.ExecContext(ctx, q,
		e.ID, e.ImageHash, e.ExtractedText, string(e.Problem.Type), e.Solution.FinalAnswer,
		string(e.Solution.Provider), e.Solution.Verified, pj, sj, aj,
	)
	if err != nil {
		return fmt.Errorf("history save: %w", err)
	}
	return nil
}

const historyColumns = `id, created_at, image_hash, extracted_text, problem_json, solution_json, artifact_json`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHistory(s rowScanner) (HistoryEntry, error) {
	var (
		e          HistoryEntry
		pj, sj, aj []byte
	)
	if err := s.Scan(&e.ID, &e.CreatedAt, &e.ImageHash, &e.ExtractedText, &pj, &sj, &aj); err != nil {
		return HistoryEntry{}, err
	}
	if err := json.Unmarshal(pj, &e.Problem); err != nil {
		return HistoryEntry{}, fmt.Errorf("history %s: bad problem json: %w", e.ID, err)
	}
	if err := json.Unmarshal(sj, &e.Solution); err != nil {
		return HistoryEntry{}, fmt.Errorf("history %s: bad solution json: %w", e.ID, err)
	}
	if err := json.Unmarshal(aj, &e.Artifact); err != nil {
		return HistoryEntry{}, fmt.Errorf("history %s: bad artifact json: %w", e.ID, err)
	}
	return e, nil
}

func (r *HistoryRepo) Get(ctx context.Context, id string) (HistoryEntry, error) {
	q := `select ` + historyColumns + ` from solve_history where id = $1`
	return scanHistory(r.DB.QueryRowContext(ctx, q, id))
}

// FindByImageHash returns the newest entry for the image. With maxAge > 0
// an older entry counts as not found.
func (r *HistoryRepo) FindByImageHash(ctx context.Context, hash string, maxAge time.Duration) (HistoryEntry, error) {
	q := `select ` + historyColumns + ` from solve_history where image_hash = $1 order by created_at desc limit 1`
	e, err := scanHistory(r.DB.QueryRowContext(ctx, q, hash))
	if err != nil {
		return HistoryEntry{}, err
	}
	if maxAge > 0 && time.Since(e.CreatedAt) > maxAge {
		return HistoryEntry{}, ErrNotFound
	}
	return e, nil
}

// List returns the newest entries first. A non-empty query matches the
// extracted text, the problem type or the final answer.
func (r *HistoryRepo) List(ctx context.Context, query string, limit int) ([]HistoryEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	q := `select ` + historyColumns + ` from solve_history`
	args := []any{}
	if query = strings.TrimSpace(query); query != "" {
		q += ` where extracted_text ilike $1 or problem_type ilike $1 or final_answer ilike $1`
		args = append(args, "%"+query+"%")
	}
	q += fmt.Sprintf(` order by created_at desc limit %d`, limit)

	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("history list: %w", err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		e, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *HistoryRepo) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `delete from solve_history where id = $1`, id)
	if err != nil {
		return fmt.Errorf("history delete: %w", err)
	}
	aff, _ := res.RowsAffected()
	if aff == 0 {
		return ErrNotFound
	}
	return nil
}

// PurgeOlderThan drops entries created before olderThan ago.
func (r *HistoryRepo) PurgeOlderThan(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, errors.New("olderThan must be > 0")
	}
	res, err := r.DB.ExecContext(ctx, `delete from solve_history where created_at < $1`, time.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	aff, _ := res.RowsAffected()
	return aff, nil
}
