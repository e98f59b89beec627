package pgshipments

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"

	"github.com/parceldesk/parceldesk/internal/models"
)

const pgUniqueViolation = "23505"

func (s *Storage) CreateUser(ctx context.Context, in models.UserCreateInput) (*models.User, error) {
	now := time.Now().UTC()

	var id uint64
	err := s.db.QueryRow(ctx, `
INSERT INTO users (username, email, password_hash, company_name, created_at)
VALUES ($1,$2,$3,$4,$5)
RETURNING id
`, in.Username, in.Email, in.PasswordHash, in.CompanyName, now).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			switch pgErr.ConstraintName {
			case "uq_users_username":
				return nil, ErrUsernameTaken
			case "uq_users_email":
				return nil, ErrEmailTaken
			}
		}
		return nil, errors.Wrap(err, "insert user")
	}

	return &models.User{
		ID:           id,
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		CompanyName:  in.CompanyName,
		CreatedAt:    now,
	}, nil
}

func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getUser(ctx, `
SELECT id, username, email, password_hash, company_name, created_at
FROM users WHERE username = $1
`, username)
}

func (s *Storage) GetUserByID(ctx context.Context, id uint64) (*models.User, error) {
	return s.getUser(ctx, `
SELECT id, username, email, password_hash, company_name, created_at
FROM users WHERE id = $1
`, id)
}

func (s *Storage) getUser(ctx context.Context, query string, arg any) (*models.User, error) {
	var u models.User
	err := s.db.QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CompanyName, &u.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select user")
	}
	return &u, nil
}
