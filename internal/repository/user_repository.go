package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/marketplace-service/internal/domain"
)

// UserFilter captures admin search parameters.
type UserFilter struct {
	Query    string
	Role     *domain.Role
	Disabled *bool
	Limit    int
	Offset   int
}

// UserRepository defines persistence access for accounts and profiles.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	UpdateProfile(ctx context.Context, user *domain.User) error
	UpdateAvatar(ctx context.Context, userID, avatarURL string) error
	UpdateRole(ctx context.Context, userID string, role domain.Role) error
	SetDisabled(ctx context.Context, userID string, disabled bool) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context, filter UserFilter) ([]domain.User, error)
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userColumns = `id, username, email, password_hash, role, is_disabled, display_name, bio, avatar_url,
               dob, location, email_visible, dob_visible, location_visible, created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (username, email, password_hash, role, display_name)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.DisplayName,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	return mapWriteError(err)
}

func (r *userRepository) UpdateProfile(ctx context.Context, user *domain.User) error {
	const query = `
        UPDATE users SET display_name=$1, bio=$2, location=$3, dob=$4,
            email_visible=$5, dob_visible=$6, location_visible=$7, updated_at=NOW()
        WHERE id=$8
        RETURNING updated_at`

	return r.pool.QueryRow(ctx, query,
		user.DisplayName,
		user.Bio,
		user.Location,
		user.DOB,
		user.EmailVisible,
		user.DOBVisible,
		user.LocationVisible,
		user.ID,
	).Scan(&user.UpdatedAt)
}

func (r *userRepository) UpdateAvatar(ctx context.Context, userID, avatarURL string) error {
	return r.exec(ctx, `UPDATE users SET avatar_url=$1, updated_at=NOW() WHERE id=$2`, avatarURL, userID)
}

func (r *userRepository) UpdateRole(ctx context.Context, userID string, role domain.Role) error {
	return r.exec(ctx, `UPDATE users SET role=$1, updated_at=NOW() WHERE id=$2`, role, userID)
}

func (r *userRepository) SetDisabled(ctx context.Context, userID string, disabled bool) error {
	return r.exec(ctx, `UPDATE users SET is_disabled=$1, updated_at=NOW() WHERE id=$2`, disabled, userID)
}

func (r *userRepository) exec(ctx context.Context, query string, args ...any) error {
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.fetchSingle(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id)
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.fetchSingle(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(username)=$1`, domain.UsernameKey(username))
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.fetchSingle(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email)=$1`, domain.EmailKey(email))
}

func (r *userRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *userRepository) List(ctx context.Context, filter UserFilter) ([]domain.User, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, prefixPattern(q))
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(username) LIKE %s OR LOWER(email) LIKE %s)", placeholder, placeholder))
	}
	if filter.Role != nil {
		args = append(args, *filter.Role)
		clauses = append(clauses, fmt.Sprintf("role=$%d", len(args)))
	}
	if filter.Disabled != nil {
		args = append(args, *filter.Disabled)
		clauses = append(clauses, fmt.Sprintf("is_disabled=$%d", len(args)))
	}

	limit, offset := clampPage(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM users WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		userColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *user)
	}
	return result, rows.Err()
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.Disabled,
		&user.DisplayName,
		&user.Bio,
		&user.AvatarURL,
		&user.DOB,
		&user.Location,
		&user.EmailVisible,
		&user.DOBVisible,
		&user.LocationVisible,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}
