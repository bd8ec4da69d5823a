package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gotrak-digital/gotrak/internal/shared"
)

// Repository defines persistence operations for the auth module. All
// mutations are durable before the call returns; uniqueness on email,
// username and google_id is enforced by database constraints so concurrent
// writers race safely.
type Repository interface {
	FindByID(ctx context.Context, id int64) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByGoogleID(ctx context.Context, googleID string) (*User, error)
	Create(ctx context.Context, user *User) (*User, error)
	AttachGoogleID(ctx context.Context, userID int64, googleID string) error

	CreateLoginSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error
	DeleteLoginSession(ctx context.Context, id string) error
	DeleteExpiredLoginSessions(ctx context.Context, before time.Time) (int64, error)
}

const userColumns = `id, email, username, password_hash, google_id, created_at, updated_at`

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByID fetches a user by primary key.
func (r *PGRepository) FindByID(ctx context.Context, id int64) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// FindByEmail fetches a user by email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// FindByGoogleID fetches a user by the provider subject identifier.
func (r *PGRepository) FindByGoogleID(ctx context.Context, googleID string) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE google_id = $1`, googleID)
	return scanUser(row)
}

// Create inserts a new user row. Unique violations are mapped to the
// conflict errors in shared by constraint name.
func (r *PGRepository) Create(ctx context.Context, user *User) (*User, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (email, username, password_hash, google_id)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at`,
		user.Email,
		user.Username,
		nullText(user.PasswordHash),
		nullText(user.GoogleID),
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, mapConstraintErr(err)
	}
	return user, nil
}

// AttachGoogleID binds a provider subject to an existing user in place.
func (r *PGRepository) AttachGoogleID(ctx context.Context, userID int64, googleID string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET google_id = $2, updated_at = now() WHERE id = $1`,
		userID, googleID)
	if err != nil {
		return mapConstraintErr(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CreateLoginSession persists a login session record for bookkeeping. The
// authoritative session state lives in Redis; these rows exist so logins are
// inspectable and prunable server-side.
func (r *PGRepository) CreateLoginSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO login_sessions (id, user_id, created_at, expires_at, ip, ua)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET user_id = $2, expires_at = $4`,
		id, userID,
		pgtype.Timestamptz{Time: now, Valid: true},
		pgtype.Timestamptz{Time: expiresAt.UTC(), Valid: true},
		nullText(ip), nullText(ua))
	return err
}

// DeleteLoginSession removes a login session record.
func (r *PGRepository) DeleteLoginSession(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM login_sessions WHERE id = $1`, id)
	return err
}

// DeleteExpiredLoginSessions removes records that expired before the cutoff
// and returns how many were pruned.
func (r *PGRepository) DeleteExpiredLoginSessions(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM login_sessions WHERE expires_at < $1`,
		pgtype.Timestamptz{Time: before.UTC(), Valid: true})
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanUser(row pgx.Row) (*User, error) {
	var (
		user         User
		passwordHash pgtype.Text
		googleID     pgtype.Text
		createdAt    pgtype.Timestamptz
		updatedAt    pgtype.Timestamptz
	)
	err := row.Scan(&user.ID, &user.Email, &user.Username, &passwordHash, &googleID, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	user.PasswordHash = passwordHash.String
	user.GoogleID = googleID.String
	user.CreatedAt = createdAt.Time
	user.UpdatedAt = updatedAt.Time
	return &user, nil
}

func nullText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func mapConstraintErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch pgErr.ConstraintName {
		case "users_email_key":
			return shared.ErrDuplicateEmail
		case "users_username_key":
			return shared.ErrDuplicateUsername
		default:
			return shared.ErrDuplicateKey
		}
	}
	return err
}

var _ Repository = (*PGRepository)(nil)
