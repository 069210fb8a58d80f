package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"hackgate/internal/nomination/models"
	id "hackgate/pkg/domain"
	"hackgate/pkg/platform/sentinel"
)

// PostgresStore persists institutes in the institutes table
// (migrations/001_schema.sql). Evaluation dates are held as a JSON array: the
// list is tiny, ordered, and only ever read whole.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const instituteColumns = `
	id, name, limit_software, limit_hardware, multi_round, evaluation_dates,
	version, created_at, updated_at
`

func (s *PostgresStore) Create(ctx context.Context, institute *models.Institute) error {
	dates, err := json.Marshal(institute.EvaluationDates)
	if err != nil {
		return fmt.Errorf("marshal evaluation dates: %w", err)
	}
	query := `
		INSERT INTO institutes (` + instituteColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, 1, $7, $8)
	`
	_, err = s.db.ExecContext(ctx, query,
		uuid.UUID(institute.ID), institute.Name,
		institute.LimitSoftware, institute.LimitHardware,
		institute.MultiRound, dates,
		institute.CreatedAt, institute.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("institute %q: %w", institute.Name, sentinel.ErrConflict)
		}
		return fmt.Errorf("create institute: %w", err)
	}
	institute.Version = 1
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, instituteID id.InstituteID) (*models.Institute, error) {
	query := `SELECT ` + instituteColumns + ` FROM institutes WHERE id = $1`
	institute, err := scanInstitute(s.db.QueryRowContext(ctx, query, uuid.UUID(instituteID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("institute %s: %w", instituteID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find institute: %w", err)
	}
	return institute, nil
}

func (s *PostgresStore) FindByName(ctx context.Context, name string) (*models.Institute, error) {
	query := `SELECT ` + instituteColumns + ` FROM institutes WHERE lower(name) = lower($1)`
	institute, err := scanInstitute(s.db.QueryRowContext(ctx, query, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("institute %q: %w", name, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find institute by name: %w", err)
	}
	return institute, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Institute, error) {
	query := `SELECT ` + instituteColumns + ` FROM institutes ORDER BY name`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list institutes: %w", err)
	}
	defer rows.Close()

	var out []*models.Institute
	for rows.Next() {
		institute, err := scanInstitute(rows)
		if err != nil {
			return nil, fmt.Errorf("list institutes: %w", err)
		}
		out = append(out, institute)
	}
	return out, rows.Err()
}

// Update writes the institute only if the version still matches.
func (s *PostgresStore) Update(ctx context.Context, institute *models.Institute) error {
	dates, err := json.Marshal(institute.EvaluationDates)
	if err != nil {
		return fmt.Errorf("marshal evaluation dates: %w", err)
	}
	query := `
		UPDATE institutes SET
			name = $2, limit_software = $3, limit_hardware = $4,
			multi_round = $5, evaluation_dates = $6,
			version = version + 1, updated_at = $7
		WHERE id = $1 AND version = $8
	`
	res, err := s.db.ExecContext(ctx, query,
		uuid.UUID(institute.ID), institute.Name,
		institute.LimitSoftware, institute.LimitHardware,
		institute.MultiRound, dates,
		institute.UpdatedAt, institute.Version,
	)
	if err != nil {
		return fmt.Errorf("update institute: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update institute: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("institute %s version %d: %w", institute.ID, institute.Version, sentinel.ErrConflict)
	}
	institute.Version++
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, instituteID id.InstituteID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM institutes WHERE id = $1`, uuid.UUID(instituteID))
	if err != nil {
		return fmt.Errorf("delete institute: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete institute: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("institute %s: %w", instituteID, sentinel.ErrNotFound)
	}
	return nil
}

func scanInstitute(row interface{ Scan(dest ...any) error }) (*models.Institute, error) {
	var (
		institute   models.Institute
		instituteID uuid.UUID
		datesRaw    []byte
	)
	err := row.Scan(
		&instituteID, &institute.Name,
		&institute.LimitSoftware, &institute.LimitHardware,
		&institute.MultiRound, &datesRaw,
		&institute.Version, &institute.CreatedAt, &institute.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	institute.ID = id.InstituteID(instituteID)
	if err := json.Unmarshal(datesRaw, &institute.EvaluationDates); err != nil {
		return nil, fmt.Errorf("unmarshal evaluation dates: %w", err)
	}
	return &institute, nil
}

func isUniqueViolation(err error) bool {
	type sqlState interface{ SQLState() string }
	var state sqlState
	return errors.As(err, &state) && state.SQLState() == "23505"
}
