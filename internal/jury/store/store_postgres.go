package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"hackgate/internal/jury/models"
	id "hackgate/pkg/domain"
	"hackgate/pkg/platform/sentinel"
)

// PostgresStore persists panels in the panels table
// (migrations/001_schema.sql). The member list is a JSON document: it is
// bounded at four entries and only ever read and written whole.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const panelColumns = `
	id, name, status, members, student_coordinator,
	version, created_at, updated_at
`

func (s *PostgresStore) Create(ctx context.Context, panel *models.Panel) error {
	members, err := json.Marshal(panel.Members)
	if err != nil {
		return fmt.Errorf("marshal panel members: %w", err)
	}
	query := `
		INSERT INTO panels (` + panelColumns + `)
		VALUES ($1, $2, $3, $4, $5, 1, $6, $7)
	`
	_, err = s.db.ExecContext(ctx, query,
		uuid.UUID(panel.ID), panel.Name, string(panel.Status), members,
		panel.StudentCoordinator, panel.CreatedAt, panel.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("panel %s: %w", panel.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("create panel: %w", err)
	}
	panel.Version = 1
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, panelID id.PanelID) (*models.Panel, error) {
	query := `SELECT ` + panelColumns + ` FROM panels WHERE id = $1`
	panel, err := scanPanel(s.db.QueryRowContext(ctx, query, uuid.UUID(panelID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("panel %s: %w", panelID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find panel: %w", err)
	}
	return panel, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Panel, error) {
	query := `SELECT ` + panelColumns + ` FROM panels ORDER BY created_at`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list panels: %w", err)
	}
	defer rows.Close()

	var out []*models.Panel
	for rows.Next() {
		panel, err := scanPanel(rows)
		if err != nil {
			return nil, fmt.Errorf("list panels: %w", err)
		}
		out = append(out, panel)
	}
	return out, rows.Err()
}

// Update writes the panel only if the version still matches.
func (s *PostgresStore) Update(ctx context.Context, panel *models.Panel) error {
	members, err := json.Marshal(panel.Members)
	if err != nil {
		return fmt.Errorf("marshal panel members: %w", err)
	}
	query := `
		UPDATE panels SET
			name = $2, status = $3, members = $4, student_coordinator = $5,
			version = version + 1, updated_at = $6
		WHERE id = $1 AND version = $7
	`
	res, err := s.db.ExecContext(ctx, query,
		uuid.UUID(panel.ID), panel.Name, string(panel.Status), members,
		panel.StudentCoordinator, panel.UpdatedAt, panel.Version,
	)
	if err != nil {
		return fmt.Errorf("update panel: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update panel: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("panel %s version %d: %w", panel.ID, panel.Version, sentinel.ErrConflict)
	}
	panel.Version++
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, panelID id.PanelID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM panels WHERE id = $1`, uuid.UUID(panelID))
	if err != nil {
		return fmt.Errorf("delete panel: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete panel: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("panel %s: %w", panelID, sentinel.ErrNotFound)
	}
	return nil
}

func scanPanel(row interface{ Scan(dest ...any) error }) (*models.Panel, error) {
	var (
		panel       models.Panel
		panelID     uuid.UUID
		status      string
		membersRaw  []byte
		coordinator sql.NullString
	)
	err := row.Scan(
		&panelID, &panel.Name, &status, &membersRaw, &coordinator,
		&panel.Version, &panel.CreatedAt, &panel.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	panel.ID = id.PanelID(panelID)
	panel.Status = models.Status(status)
	if err := json.Unmarshal(membersRaw, &panel.Members); err != nil {
		return nil, fmt.Errorf("unmarshal panel members: %w", err)
	}
	if coordinator.Valid {
		panel.StudentCoordinator = &coordinator.String
	}
	return &panel, nil
}

func isUniqueViolation(err error) bool {
	type sqlState interface{ SQLState() string }
	var state sqlState
	return errors.As(err, &state) && state.SQLState() == "23505"
}
