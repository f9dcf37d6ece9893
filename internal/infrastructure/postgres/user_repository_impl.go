package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/oksasatya/go-lms-registration/internal/domain/entity"
	"github.com/oksasatya/go-lms-registration/internal/domain/repository"
)

const (
	pgUniqueViolation   = "23505"
	emailConstraintName = "users_email_key"
)

// DB is the subset of pgxpool.Pool used by the repositories.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type UserRepository struct {
	db     DB
	hasher entity.PasswordHasher
}

func NewUserRepository(db DB, hasher entity.PasswordHasher) *UserRepository {
	if db == nil {
		panic("postgres: db must not be nil")
	}
	return &UserRepository{db: db, hasher: hasher}
}

const userColumns = `id, name, email, avatar_public_id, avatar_url, role, is_verified, course_ids, created_at, updated_at`

func scanUser(row pgx.Row, withHash bool) (*entity.User, error) {
	u := &entity.User{}
	var role string
	dest := []any{&u.ID, &u.Name, &u.Email, &u.Avatar.PublicID, &u.Avatar.URL, &role, &u.IsVerified, &u.CourseIDs, &u.CreatedAt, &u.UpdatedAt}
	if withHash {
		dest = append(dest, &u.PasswordHash)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	u.Role = entity.Role(role)
	return u, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, entity.NormalizeEmail(email))
	u, err := scanUser(row, false)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return u, nil
}

func (r *UserRepository) FindByEmailWithPassword(ctx context.Context, email string) (*entity.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+`, password_hash FROM users WHERE email = $1`, entity.NormalizeEmail(email))
	u, err := scanUser(row, true)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return u, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row, false)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

// Save hashes a staged password and writes the user. The stored hash is
// only replaced when the password changed, and the staged password is kept
// on the record until the write succeeds.
func (r *UserRepository) Save(ctx context.Context, u *entity.User) error {
	u.Email = entity.NormalizeEmail(u.Email)
	if err := u.Validate(); err != nil {
		return err
	}
	if u.PasswordChanged() && r.hasher == nil {
		return errors.New("postgres: password hasher is not configured")
	}
	hash, changed, err := u.StagedPasswordHash(r.hasher)
	if err != nil {
		return err
	}
	if u.ID == "" {
		if !changed {
			if u.PasswordHash == "" {
				return entity.ErrPasswordRequired
			}
			hash = u.PasswordHash
		}
		err = r.insert(ctx, u, hash)
	} else {
		var newHash *string
		if changed {
			newHash = &hash
		}
		err = r.update(ctx, u, newHash)
	}
	if err != nil {
		return err
	}
	if changed {
		u.CommitPasswordHash(hash)
	}
	return nil
}

func (r *UserRepository) insert(ctx context.Context, u *entity.User, hash string) error {
	row := r.db.QueryRow(ctx, `
		INSERT INTO users (name, email, password_hash, avatar_public_id, avatar_url, role, is_verified, course_ids)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`, u.Name, u.Email, hash, u.Avatar.PublicID, u.Avatar.URL, string(u.Role), u.IsVerified, courseIDs(u))

	var id string
	var createdAt, updatedAt time.Time
	if err := row.Scan(&id, &createdAt, &updatedAt); err != nil {
		return mapWriteError("insert user", err)
	}
	u.ID, u.CreatedAt, u.UpdatedAt = id, createdAt, updatedAt
	return nil
}

func (r *UserRepository) update(ctx context.Context, u *entity.User, hash *string) error {
	row := r.db.QueryRow(ctx, `
		UPDATE users
		SET name = $1, email = $2, avatar_public_id = $3, avatar_url = $4, role = $5,
		    is_verified = $6, course_ids = $7, password_hash = COALESCE($8, password_hash), updated_at = NOW()
		WHERE id = $9
		RETURNING updated_at
	`, u.Name, u.Email, u.Avatar.PublicID, u.Avatar.URL, string(u.Role), u.IsVerified, courseIDs(u), hash, u.ID)

	if err := row.Scan(&u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.ErrNotFound
		}
		return mapWriteError("update user", err)
	}
	return nil
}

func courseIDs(u *entity.User) []string {
	if u.CourseIDs == nil {
		return []string{}
	}
	return u.CourseIDs
}

func mapWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == emailConstraintName {
		return repository.ErrDuplicateEmail
	}
	return fmt.Errorf("%s: %w", op, err)
}

var _ repository.UserRepository = (*UserRepository)(nil)
