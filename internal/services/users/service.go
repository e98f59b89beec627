package users

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/parceldesk/parceldesk/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrEmailTaken         = errors.New("email already registered")
)

type Repository interface {
	CreateUser(ctx context.Context, in models.UserCreateInput) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id uint64) (*models.User, error)
}

type Hasher interface {
	HashPassword(password string) (string, error)
	VerifyPassword(password, encoded string) (bool, error)
}

type TokenSigner interface {
	Sign(userID uint64, now time.Time) (string, error)
}

type RegisterInput struct {
	Username    string
	Email       string
	Password    string
	CompanyName *string
}

// storageErrors maps storage sentinels to service-level ones so the
// request layer never imports the storage package.
type storageErrors struct {
	UsernameTaken error
	EmailTaken    error
}

type Service struct {
	repo   Repository
	hasher Hasher
	signer TokenSigner
	serr   storageErrors
}

func New(repo Repository, hasher Hasher, signer TokenSigner, usernameTaken, emailTaken error) *Service {
	return &Service{
		repo: repo, hasher: hasher, signer: signer,
		serr: storageErrors{UsernameTaken: usernameTaken, EmailTaken: emailTaken},
	}
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	hash, err := s.hasher.HashPassword(in.Password)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}

	u, err := s.repo.CreateUser(ctx, models.UserCreateInput{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		CompanyName:  in.CompanyName,
	})
	if err != nil {
		switch {
		case s.serr.UsernameTaken != nil && errors.Is(err, s.serr.UsernameTaken):
			return nil, ErrUsernameTaken
		case s.serr.EmailTaken != nil && errors.Is(err, s.serr.EmailTaken):
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return u, nil
}

// Login verifies the credentials and issues a token. A missing user and
// a wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (string, *models.User, error) {
	u, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		return "", nil, err
	}
	if u == nil {
		return "", nil, ErrInvalidCredentials
	}

	ok, err := s.hasher.VerifyPassword(password, u.PasswordHash)
	if err != nil || !ok {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.signer.Sign(u.ID, time.Now().UTC())
	if err != nil {
		return "", nil, errors.Wrap(err, "sign token")
	}
	return token, u, nil
}

func (s *Service) GetByID(ctx context.Context, id uint64) (*models.User, error) {
	return s.repo.GetUserByID(ctx, id)
}
