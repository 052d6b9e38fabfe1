package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vbonduro/plantid/internal/domain"
)

// IdentificationStore is the journal of classification attempts.
type IdentificationStore struct {
	db *sql.DB
}

func NewIdentificationStore(db *sql.DB) *IdentificationStore {
	return &IdentificationStore{db: db}
}

func (s *IdentificationStore) Record(ctx context.Context, ident domain.Identification) (*domain.Identification, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO identifications (session_id, common_name, scientific_name, outcome, duration_ms)
		VALUES (?, ?, ?, ?, ?)
	`, ident.SessionID, ident.CommonName, ident.ScientificName, string(ident.Outcome), ident.Duration.Milliseconds())
	if err != nil {
		return nil, fmt.Errorf("failed to record identification: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

const selectColumns = `SELECT id, session_id, common_name, scientific_name, outcome, duration_ms, created_at FROM identifications`

type scanner interface {
	Scan(dest ...any) error
}

func scanIdentification(row scanner) (*domain.Identification, error) {
	ident := &domain.Identification{}
	var outcome string
	var durationMS int64
	if err := row.Scan(&ident.ID, &ident.SessionID, &ident.CommonName, &ident.ScientificName,
		&outcome, &durationMS, &ident.CreatedAt); err != nil {
		return nil, err
	}
	ident.Outcome = domain.Outcome(outcome)
	ident.Duration = time.Duration(durationMS) * time.Millisecond
	return ident, nil
}

func (s *IdentificationStore) GetByID(ctx context.Context, id int64) (*domain.Identification, error) {
	ident, err := scanIdentification(s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get identification: %w", err)
	}
	return ident, nil
}

// Recent returns up to limit entries, newest first.
func (s *IdentificationStore) Recent(ctx context.Context, limit int) ([]*domain.Identification, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list identifications: %w", err)
	}
	defer rows.Close()

	var idents []*domain.Identification
	for rows.Next() {
		ident, err := scanIdentification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan identification: %w", err)
		}
		idents = append(idents, ident)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating identifications: %w", err)
	}

	return idents, nil
}

func (s *IdentificationStore) Counts(ctx context.Context) (identified, failed int, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN outcome = 'identified' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN outcome = 'failed' THEN 1 ELSE 0 END), 0)
		FROM identifications
	`).Scan(&identified, &failed)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count identifications: %w", err)
	}
	return identified, failed, nil
}
