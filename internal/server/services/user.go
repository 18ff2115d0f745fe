package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/edithub/keeper/internal/common"
	"github.com/edithub/keeper/internal/server/auth"
	"github.com/edithub/keeper/internal/server/config"
	"github.com/edithub/keeper/internal/server/models"
	"github.com/edithub/keeper/internal/server/repositories/repomanager"
)

// UserService handles principal resolution and token issuance: verifying
// credentials, minting capability tokens, and creating the bootstrap admin
// on an empty database.
type UserService struct {
	db            *sql.DB
	rm            repomanager.RepositoryManager
	jwtSecret     []byte
	tokenValidity time.Duration
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, rm repomanager.RepositoryManager, cfg *config.Config) *UserService {
	return &UserService{
		db:            db,
		rm:            rm,
		jwtSecret:     []byte(cfg.SecretKey),
		tokenValidity: cfg.TokenValidityDuration,
	}
}

// Bootstrap creates the configured admin user with the full permission set
// when the users table is empty. Subsequent starts are no-ops.
func (s *UserService) Bootstrap(ctx context.Context, username, password string) error {
	repo := s.rm.Users(s.db)

	n, err := repo.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting users: %w", err)
	}
	if n > 0 {
		return nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hashing bootstrap password: %w", err)
	}

	_, err = repo.Create(ctx, &models.User{
		UserName:     username,
		PasswordHash: hash,
		Permissions:  models.FullPermissions(),
	})
	if errors.Is(err, common.ErrConflict) {
		// Another instance bootstrapped concurrently.
		return nil
	}
	return err
}

// IssueToken verifies basic credentials and mints a signed API token.
// Unknown users and wrong passwords are indistinguishable to the caller.
func (s *UserService) IssueToken(ctx context.Context, username, password string) (string, error) {
	user, err := s.rm.Users(s.db).GetByUserName(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return "", fmt.Errorf("%w: bad credentials", common.ErrUnauthorized)
		}
		return "", err
	}

	if !auth.CheckPassword(user.PasswordHash, password) {
		return "", fmt.Errorf("%w: bad credentials", common.ErrUnauthorized)
	}

	return auth.GenerateToken(user.ID, s.jwtSecret, s.tokenValidity)
}

// ResolvePrincipal verifies an API token and loads the user it belongs to.
// The permission set comes from the database, not the token, so permission
// changes apply to tokens already in the wild.
func (s *UserService) ResolvePrincipal(ctx context.Context, token string) (*models.User, error) {
	userID, err := auth.GetUserIDFromToken(token, s.jwtSecret)
	if err != nil {
		return nil, err
	}

	user, err := s.rm.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, err
	}
	return user, nil
}
