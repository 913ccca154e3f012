package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/theplug/backend/internal/auth"
	"github.com/theplug/backend/internal/config"
	"github.com/theplug/backend/internal/models"
	"github.com/theplug/backend/internal/repositories"
	"go.uber.org/zap"
)

const minPasswordLen = 6

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,32}$`)

type AuthService struct {
	accounts repositories.AccountRepository
	cfg      *config.Config
	log      *zap.Logger
}

func NewAuthService(accounts repositories.AccountRepository, cfg *config.Config, log *zap.Logger) *AuthService {
	return &AuthService{accounts: accounts, cfg: cfg, log: log}
}

// Session is a freshly issued token together with the account it belongs to.
type Session struct {
	Token   string
	Account *models.Account
}

func (s *AuthService) Register(ctx context.Context, username, password string) (*Session, error) {
	username = strings.TrimSpace(username)
	if !usernamePattern.MatchString(username) {
		return nil, ErrInvalidUsername
	}
	if len(password) < minPasswordLen {
		return nil, ErrInvalidPassword
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	account, err := s.accounts.Create(ctx, username, hash, s.cfg.InitialCoins)
	if errors.Is(err, repositories.ErrUsernameTaken) {
		return nil, ErrUsernameTaken
	}
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	s.log.Info("account registered", zap.Int64("account_id", account.ID), zap.String("username", account.Username))
	return s.issue(account)
}

func (s *AuthService) Login(ctx context.Context, username, password string) (*Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	account, err := s.accounts.GetByUsername(ctx, username)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if !auth.CheckPassword(account.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return s.issue(account)
}

func (s *AuthService) issue(account *models.Account) (*Session, error) {
	token, err := auth.GenerateJWT(s.cfg.JWTSecret, account.ID, account.Username, s.cfg.JWTExpiration)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Session{Token: token, Account: account}, nil
}
