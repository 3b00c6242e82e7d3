// Package auth is the authentication collaborator: it registers accounts,
// checks passwords, and issues and verifies bearer tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"example.com/socialfeed/internal/apperr"
	"example.com/socialfeed/internal/logger"
	"example.com/socialfeed/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var logg = logger.New()

// Accounts is the subset of the account store auth needs.
type Accounts interface {
	CreateAccount(ctx context.Context, a models.Account) (models.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (models.Account, error)
}

type Service struct {
	accounts Accounts
	secret   []byte
	ttl      time.Duration
}

func New(accounts Accounts, secret string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{accounts: accounts, secret: []byte(secret), ttl: ttl}
}

// Register creates an account with a bcrypt password hash and returns it with a token.
func (s *Service) Register(ctx context.Context, name, email, password string) (models.Account, string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.Account{}, "", fmt.Errorf("hash password: %w", err)
	}

	acc, err := s.accounts.CreateAccount(ctx, models.Account{
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: string(hash),
	})
	if err != nil {
		return models.Account{}, "", err
	}

	token, err := s.Issue(acc.ID)
	if err != nil {
		return models.Account{}, "", err
	}
	logg.Info("auth", "Account registered with user_id="+acc.ID)
	return acc, token, nil
}

// Login checks the password for email and returns the account with a fresh token.
func (s *Service) Login(ctx context.Context, email, password string) (models.Account, string, error) {
	acc, err := s.accounts.GetAccountByEmail(ctx, email)
	if errors.Is(err, apperr.ErrAccountNotFound) {
		return models.Account{}, "", apperr.ErrInvalidCredentials
	}
	if err != nil {
		return models.Account{}, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		logg.Info("auth", "Rejected login for user_id="+acc.ID)
		return models.Account{}, "", apperr.ErrInvalidCredentials
	}

	token, err := s.Issue(acc.ID)
	if err != nil {
		return models.Account{}, "", err
	}
	return acc, token, nil
}

// Issue signs an HS256 token carrying the account id in the user_id claim.
func (s *Service) Issue(accountID string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": accountID,
		"exp":     time.Now().Add(s.ttl).Unix(),
	})
	tokenStr, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return tokenStr, nil
}

// Verify returns the account id carried by tokenStr.
func (s *Service) Verify(tokenStr string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return "", apperr.Wrap(apperr.Unauthenticated, "invalid token", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", apperr.New(apperr.Unauthenticated, "invalid token claims")
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", apperr.New(apperr.Unauthenticated, "invalid user_id in token")
	}
	return userID, nil
}
