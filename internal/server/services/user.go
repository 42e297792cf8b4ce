// Package services contains server-side business logic. This file implements
// UserService: registration, credential checks, token issuance and the
// resolution of an inbound token into an active user.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// LoginResult is what a successful login hands back to the transport.
type LoginResult struct {
	AccessToken string
	TokenType   string
	User        *models.User
}

// UserService provides authentication-related operations:
//   - Register / CreateSuperuser: create users
//   - Authenticate / Login: verify credentials and mint access tokens
//   - ResolveUser / RequireSuperuser: gate requests on a token
//   - SetActive / SetActiveByEmail: toggle account activation
type UserService struct {
	db                          *sql.DB
	repomanager                 repomanager.RepositoryManager
	hasher                      *auth.PasswordHasher
	tokens                      *auth.TokenManager
	accessTokenValidityDuration time.Duration

	dummyOnce sync.Once
	dummyHash string
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, tokens *auth.TokenManager, cfg *config.Config) *UserService {
	return &UserService{
		db:                          db,
		repomanager:                 m,
		hasher:                      auth.NewPasswordHasher(cfg.BcryptCost),
		tokens:                      tokens,
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
	}
}

// handle prefers the request-scoped connection placed in ctx by the transport.
func (s *UserService) handle(ctx context.Context) dbx.Handle {
	return dbx.ConnFromContext(ctx, s.db)
}

func internalError(err error) error {
	return fmt.Errorf("%w: %v", common.ErrorInternal, err)
}

// Register creates an active, non-privileged user.
func (s *UserService) Register(ctx context.Context, email string, name *string, password string) (*models.User, error) {
	return s.create(ctx, email, name, password, false)
}

// CreateSuperuser creates an active superuser. Only the admin CLI calls it.
func (s *UserService) CreateSuperuser(ctx context.Context, email string, name *string, password string) (*models.User, error) {
	return s.create(ctx, email, name, password, true)
}

func (s *UserService) create(ctx context.Context, email string, name *string, password string, superuser bool) (*models.User, error) {
	email = common.NormalizeEmail(email)

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, internalError(err)
	}

	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		IsActive:     true,
		IsSuperuser:  superuser,
	}

	var created *models.User
	err = dbx.WithTx(ctx, s.handle(ctx), nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		_, err := repo.GetByEmail(ctx, email)
		if err == nil {
			return common.ErrDuplicateEmail
		}
		if !errors.Is(err, common.ErrorNotFound) {
			return err
		}

		// a concurrent insert of the same email loses on the unique index
		created, err = repo.Create(ctx, user)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrDuplicateEmail) {
			return nil, common.ErrDuplicateEmail
		}
		return nil, internalError(err)
	}

	return created, nil
}

// Authenticate checks email and password. It does not look at IsActive.
// An unknown email and a wrong password are indistinguishable to the caller.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	repo := s.repomanager.Users(s.handle(ctx))

	user, err := repo.GetByEmail(ctx, common.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.hasher.Verify(password, s.dummy())
			return nil, common.ErrInvalidCredentials
		}
		return nil, internalError(err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, common.ErrInvalidCredentials
	}

	return user, nil
}

// Login authenticates and, for active users, issues an access token.
func (s *UserService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, common.ErrAccountInactive
	}

	token, err := s.tokens.Issue(user.ID.String(), s.accessTokenValidityDuration)
	if err != nil {
		return nil, internalError(err)
	}

	return &LoginResult{AccessToken: token, TokenType: common.TokenType, User: user}, nil
}

// ResolveUser turns a bearer token into the active user it names.
func (s *UserService) ResolveUser(ctx context.Context, token string) (*models.User, error) {
	subject, err := s.tokens.Verify(token)
	if err != nil {
		return nil, common.ErrTokenInvalid
	}

	id, err := uuid.Parse(subject)
	if err != nil {
		return nil, common.ErrTokenInvalid
	}

	user, err := s.repomanager.Users(s.handle(ctx)).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrAccountNotFound
		}
		return nil, internalError(err)
	}

	if !user.IsActive {
		return nil, common.ErrAccountInactive
	}

	return user, nil
}

// RequireSuperuser fails unless user holds superuser privileges.
func (s *UserService) RequireSuperuser(user *models.User) error {
	if user == nil || !user.IsSuperuser {
		return common.ErrInsufficientPrivilege
	}
	return nil
}

// SetActive flips the activation flag of the user with the given id.
func (s *UserService) SetActive(ctx context.Context, id uuid.UUID, active bool) (*models.User, error) {
	user, err := s.repomanager.Users(s.handle(ctx)).SetActive(ctx, id, active)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrAccountNotFound
		}
		return nil, internalError(err)
	}
	return user, nil
}

// SetActiveByEmail is SetActive keyed by email, for the admin CLI.
func (s *UserService) SetActiveByEmail(ctx context.Context, email string, active bool) (*models.User, error) {
	user, err := s.repomanager.Users(s.handle(ctx)).GetByEmail(ctx, common.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrAccountNotFound
		}
		return nil, internalError(err)
	}
	return s.SetActive(ctx, user.ID, active)
}

// dummy returns a valid hash used to spend bcrypt time on unknown emails.
func (s *UserService) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash(uuid.NewString())
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}
