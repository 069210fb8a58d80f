package team

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "hackgate/pkg/domain"
	"hackgate/internal/registry/models"
	"hackgate/pkg/platform/sentinel"
)

// PostgresStore persists teams in the teams table (migrations/001_schema.sql).
// This store is pure I/O; roster and lifecycle rules live in the aggregate and
// the services.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const teamColumns = `
	id, name, institute, category, leader, members,
	problem_id, nominated, panel_id, university_team_id, selection_status,
	version, created_at, updated_at
`

func (s *PostgresStore) Create(ctx context.Context, team *models.Team) error {
	leader, members, err := marshalRoster(team)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create team: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO teams (` + teamColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1, $12, $13)
	`
	_, err = tx.ExecContext(ctx, query,
		uuid.UUID(team.ID), team.Name, team.Institute, string(team.Category),
		leader, members,
		problemIDValue(team.ProblemID), team.Nominated, panelIDValue(team.PanelID),
		team.UniversityTeamID, string(team.SelectionStatus),
		team.CreatedAt, team.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("team %s: %w", team.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("create team: %w", err)
	}
	if err := rebuildMembers(ctx, tx, team); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create team: %w", err)
	}
	team.Version = 1
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, teamID id.TeamID) (*models.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE id = $1`
	team, err := scanTeam(s.db.QueryRowContext(ctx, query, uuid.UUID(teamID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("team %s: %w", teamID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find team: %w", err)
	}
	return team, nil
}

func (s *PostgresStore) FindByMember(ctx context.Context, userID id.UserID) (*models.Team, error) {
	// Roster identities are kept in a side table so membership lookups do not
	// scan JSON documents.
	query := `
		SELECT ` + teamColumns + ` FROM teams
		WHERE id = (SELECT team_id FROM team_members WHERE user_id = $1)
	`
	team, err := scanTeam(s.db.QueryRowContext(ctx, query, uuid.UUID(userID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("no team for member %s: %w", userID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find team by member: %w", err)
	}
	return team, nil
}

func (s *PostgresStore) ListByInstitute(ctx context.Context, institute string) ([]*models.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE institute = $1 ORDER BY created_at`
	rows, err := s.db.QueryContext(ctx, query, institute)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	defer rows.Close()

	var out []*models.Team
	for rows.Next() {
		team, err := scanTeam(rows)
		if err != nil {
			return nil, fmt.Errorf("list teams: %w", err)
		}
		out = append(out, team)
	}
	return out, rows.Err()
}

// Update is a transactional read-modify-write: the row is written only if the
// version still matches, and the membership side table is rebuilt in the same
// transaction.
func (s *PostgresStore) Update(ctx context.Context, team *models.Team) error {
	leader, members, err := marshalRoster(team)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update team: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE teams SET
			name = $2, institute = $3, category = $4, leader = $5, members = $6,
			problem_id = $7, nominated = $8, panel_id = $9,
			university_team_id = $10, selection_status = $11,
			version = version + 1, updated_at = $12
		WHERE id = $1 AND version = $13
	`
	res, err := tx.ExecContext(ctx, query,
		uuid.UUID(team.ID), team.Name, team.Institute, string(team.Category),
		leader, members,
		problemIDValue(team.ProblemID), team.Nominated, panelIDValue(team.PanelID),
		team.UniversityTeamID, string(team.SelectionStatus),
		team.UpdatedAt, team.Version,
	)
	if err != nil {
		return fmt.Errorf("update team: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update team: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("team %s version %d: %w", team.ID, team.Version, sentinel.ErrConflict)
	}

	if err := rebuildMembers(ctx, tx, team); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update team: %w", err)
	}
	team.Version++
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, teamID id.TeamID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM teams WHERE id = $1`, uuid.UUID(teamID))
	if err != nil {
		return fmt.Errorf("delete team: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete team: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("team %s: %w", teamID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) CountNominated(ctx context.Context, institute string, bucket id.Category) (int, error) {
	categories := []string{string(bucket)}
	if bucket == id.CategoryHardware {
		categories = append(categories, string(id.CategoryHardwareSoftware))
	}
	query := `
		SELECT COUNT(*) FROM teams
		WHERE institute = $1 AND nominated AND category = ANY($2)
	`
	var count int
	if err := s.db.QueryRowContext(ctx, query, institute, categories).Scan(&count); err != nil {
		return 0, fmt.Errorf("count nominated: %w", err)
	}
	return count, nil
}

func rebuildMembers(ctx context.Context, tx *sql.Tx, team *models.Team) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM team_members WHERE team_id = $1`, uuid.UUID(team.ID)); err != nil {
		return fmt.Errorf("rebuild team members: %w", err)
	}
	for _, userID := range team.MemberIDs() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO team_members (team_id, user_id) VALUES ($1, $2)`,
			uuid.UUID(team.ID), uuid.UUID(userID),
		); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("member %s already on a team: %w", userID, sentinel.ErrConflict)
			}
			return fmt.Errorf("rebuild team members: %w", err)
		}
	}
	return nil
}

func marshalRoster(team *models.Team) ([]byte, []byte, error) {
	leader, err := json.Marshal(team.Leader)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal leader: %w", err)
	}
	members, err := json.Marshal(team.Members)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal members: %w", err)
	}
	return leader, members, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTeam(row rowScanner) (*models.Team, error) {
	var (
		team             models.Team
		teamID           uuid.UUID
		category         string
		leaderRaw        []byte
		membersRaw       []byte
		problemID        sql.Null[uuid.UUID]
		panelID          sql.Null[uuid.UUID]
		universityTeamID sql.NullString
		selection        string
	)
	err := row.Scan(
		&teamID, &team.Name, &team.Institute, &category, &leaderRaw, &membersRaw,
		&problemID, &team.Nominated, &panelID, &universityTeamID, &selection,
		&team.Version, &team.CreatedAt, &team.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	team.ID = id.TeamID(teamID)
	team.Category = id.Category(category)
	team.SelectionStatus = id.SelectionStatus(selection)
	if err := json.Unmarshal(leaderRaw, &team.Leader); err != nil {
		return nil, fmt.Errorf("unmarshal leader: %w", err)
	}
	if err := json.Unmarshal(membersRaw, &team.Members); err != nil {
		return nil, fmt.Errorf("unmarshal members: %w", err)
	}
	if problemID.Valid {
		pid := id.ProblemID(problemID.V)
		team.ProblemID = &pid
	}
	if panelID.Valid {
		pid := id.PanelID(panelID.V)
		team.PanelID = &pid
	}
	if universityTeamID.Valid {
		team.UniversityTeamID = &universityTeamID.String
	}
	return &team, nil
}

func problemIDValue(pid *id.ProblemID) any {
	if pid == nil {
		return nil
	}
	return uuid.UUID(*pid)
}

func panelIDValue(pid *id.PanelID) any {
	if pid == nil {
		return nil
	}
	return uuid.UUID(*pid)
}

func isUniqueViolation(err error) bool {
	// pgx wraps server errors; SQLSTATE 23505 is unique_violation.
	type sqlState interface{ SQLState() string }
	var state sqlState
	return errors.As(err, &state) && state.SQLState() == "23505"
}
