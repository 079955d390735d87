package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"trackersync/pkg/users"
)

const (
	regularUsersTable    = "regular_users"
	managersTable        = "managers"
	accountManagersTable = "account_managers"
)

// UserRepository loads users from PostgreSQL. It implements users.Lookup.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a UserRepository.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

var _ users.Lookup = (*UserRepository)(nil)

func (r *UserRepository) FindAccountManager(ctx context.Context, id int64) (*users.AccountManager, error) {
	p, err := r.findProfile(ctx, accountManagersTable, id)
	if err != nil {
		return nil, err
	}
	return &users.AccountManager{Profile: p}, nil
}

func (r *UserRepository) FindManager(ctx context.Context, id int64) (*users.Manager, error) {
	p, err := r.findProfile(ctx, managersTable, id)
	if err != nil {
		return nil, err
	}
	return &users.Manager{Profile: p}, nil
}

// FindRegularUserWithManagers loads the user, then its manager links ordered
// by start time.
func (r *UserRepository) FindRegularUserWithManagers(ctx context.Context, id int64) (*users.RegularUser, error) {
	p, err := r.findProfile(ctx, regularUsersTable, id)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT account_manager_id, started_at, ended_at FROM regular_user_managers
		 WHERE regular_user_id = $1 ORDER BY started_at`, id)
	if err != nil {
		return nil, fmt.Errorf("query managers of user %d: %w", id, err)
	}
	defer rows.Close()

	u := &users.RegularUser{Profile: p}
	for rows.Next() {
		var link users.ManagerLink
		var ended sql.NullTime
		if err := rows.Scan(&link.AccountManagerID, &link.StartedAt, &ended); err != nil {
			return nil, fmt.Errorf("scan manager link: %w", err)
		}
		if ended.Valid {
			t := ended.Time
			link.EndedAt = &t
		}
		u.Managers = append(u.Managers, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate manager links: %w", err)
	}
	return u, nil
}

// AssignManager starts an account-management link for a regular user.
func (r *UserRepository) AssignManager(ctx context.Context, regularUserID, accountManagerID int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO regular_user_managers (regular_user_id, account_manager_id, started_at) VALUES ($1, $2, $3)`,
		regularUserID, accountManagerID, at)
	if err != nil {
		return fmt.Errorf("assign manager %d to user %d: %w", accountManagerID, regularUserID, err)
	}
	return nil
}

// EndManagement closes every open link of a regular user.
func (r *UserRepository) EndManagement(ctx context.Context, regularUserID int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE regular_user_managers SET ended_at = $2 WHERE regular_user_id = $1 AND ended_at IS NULL`,
		regularUserID, at)
	if err != nil {
		return fmt.Errorf("end management of user %d: %w", regularUserID, err)
	}
	return nil
}

// table is always one of the constants above.
func (r *UserRepository) findProfile(ctx context.Context, table string, id int64) (users.Profile, error) {
	var p users.Profile
	query := fmt.Sprintf(`SELECT id, first_name, last_name, email, is_test FROM %s WHERE id = $1`, table)
	err := r.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.TestAccount)
	if errors.Is(err, sql.ErrNoRows) {
		return users.Profile{}, users.ErrNotFound
	}
	if err != nil {
		return users.Profile{}, fmt.Errorf("query %s %d: %w", table, id, err)
	}
	return p, nil
}
