package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"finance-copilot/internal/domain"
	"finance-copilot/internal/domain/model"
	"finance-copilot/internal/domain/ports/repository"
)

var _ repository.UserRepository = (*UserRepo)(nil)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

const userColumns = `id, email, username, password_hash, full_name, age, is_active, is_verified,
       verification_token, email_verified_at, created_at, updated_at`

// Save upserts by id. Email or username collisions surface as ErrAlreadyExists.
func (r *UserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO users (` + userColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (id) DO UPDATE SET
  email = EXCLUDED.email,
  username = EXCLUDED.username,
  password_hash = EXCLUDED.password_hash,
  full_name = EXCLUDED.full_name,
  age = EXCLUDED.age,
  is_active = EXCLUDED.is_active,
  is_verified = EXCLUDED.is_verified,
  verification_token = EXCLUDED.verification_token,
  email_verified_at = EXCLUDED.email_verified_at,
  updated_at = EXCLUDED.updated_at;`
	_, err = exec.Exec(ctx, q,
		u.ID, u.Email, u.Username, u.PasswordHash, u.FullName, u.Age, u.IsActive, u.IsVerified,
		u.VerificationToken, u.EmailVerifiedAt, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (r *UserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	return r.findOne(ctx, tx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UserRepo) FindByUsername(ctx context.Context, tx repository.Tx, username string) (*model.User, error) {
	return r.findOne(ctx, tx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (r *UserRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.User, error) {
	return r.findOne(ctx, tx, `SELECT `+userColumns+` FROM users WHERE email = lower($1)`, email)
}

func (r *UserRepo) FindByVerificationToken(ctx context.Context, tx repository.Tx, token string) (*model.User, error) {
	return r.findOne(ctx, tx, `SELECT `+userColumns+` FROM users WHERE verification_token = $1`, token)
}

func (r *UserRepo) findOne(ctx context.Context, tx repository.Tx, q string, arg any) (*model.User, error) {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	var u model.User
	err = exec.QueryRow(ctx, q, arg).Scan(
		&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.FullName, &u.Age, &u.IsActive, &u.IsVerified,
		&u.VerificationToken, &u.EmailVerifiedAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}
