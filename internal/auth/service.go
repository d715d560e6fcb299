// Package auth implements email/password accounts and bearer-token
// sessions on top of the flat JSON store.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"parley/internal/store"

	"golang.org/x/crypto/bcrypt"
)

const (
	// SessionTTL defines how long a session token remains valid
	SessionTTL = 7 * 24 * time.Hour
	// tokenBytes is the entropy of a session token; hex-encoded it
	// yields a 64-character string
	tokenBytes = 32
)

var (
	// ErrValidation is returned when a required field is missing or malformed
	ErrValidation = errors.New("email and password are required")
	// ErrDuplicateAccount is returned when the email is already registered
	ErrDuplicateAccount = errors.New("an account with this email already exists")
	// ErrInvalidCredentials is returned when email/password do not match an account
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUnauthorized is returned when a session token is missing, unknown or expired
	ErrUnauthorized = errors.New("invalid or expired session")
)

// Store is the subset of the flat store the auth service needs.
type Store interface {
	Load() store.Document
	Update(fn func(*store.Document) error) error
}

// Service defines the account and session operations
type Service interface {
	Register(ctx context.Context, email, password string) (string, error)
	Login(ctx context.Context, email, password string) (string, error)
	VerifySession(ctx context.Context, token string) (string, error)
	Logout(ctx context.Context, token string) error
	Stats(ctx context.Context) (accounts, liveSessions int)
}

// service implements the Service interface
type service struct {
	store Store
}

// NewService creates a new account and session service
func NewService(store Store) Service {
	return &service{store: store}
}

// Register creates a new account. The email must be unused; the password
// is stored as a bcrypt hash, never in clear.
func (s *service) Register(ctx context.Context, email, password string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return "", ErrValidation
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	err = s.store.Update(func(doc *store.Document) error {
		for _, acct := range doc.Accounts {
			if acct.Email == email {
				return ErrDuplicateAccount
			}
		}
		doc.Accounts = append(doc.Accounts, store.Account{
			Email:        email,
			PasswordHash: string(hash),
			CreatedAt:    time.Now(),
		})
		return nil
	})
	if err != nil {
		return "", err
	}

	log.Printf("Created account: %s", email)

	return email, nil
}

// Login checks the credentials and issues a fresh session token. Any
// existing sessions for the email are revoked first, so at most one live
// session exists per account.
func (s *service) Login(ctx context.Context, email, password string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return "", ErrInvalidCredentials
	}

	// Compare outside the store's write boundary; bcrypt is slow and
	// accounts are never deleted, so the snapshot cannot go stale.
	acct, ok := findAccount(s.store.Load(), email)
	if !ok {
		return "", ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}

	token, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}

	err = s.store.Update(func(doc *store.Document) error {
		kept := doc.Sessions[:0]
		for _, sess := range doc.Sessions {
			if sess.Email != email {
				kept = append(kept, sess)
			}
		}
		now := time.Now()
		doc.Sessions = append(kept, store.Session{
			Token:     token,
			Email:     email,
			CreatedAt: now,
			ExpiresAt: now.Add(SessionTTL),
		})
		return nil
	})
	if err != nil {
		return "", err
	}

	return token, nil
}

// VerifySession resolves a token to its email. Expired sessions are
// deleted on sight; this is the only place expired sessions are purged,
// so tokens that are never re-submitted linger in the store.
func (s *service) VerifySession(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrUnauthorized
	}

	doc := s.store.Load()
	for _, sess := range doc.Sessions {
		if sess.Token != token {
			continue
		}
		if sess.Expired(time.Now()) {
			if err := s.removeSession(token); err != nil {
				log.Printf("Warning: failed to purge expired session: %v", err)
			}
			return "", ErrUnauthorized
		}
		return sess.Email, nil
	}
	return "", ErrUnauthorized
}

// Logout revokes the session with the given token. Unknown tokens are a
// no-op; Logout is idempotent.
func (s *service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.removeSession(token)
}

// Stats reports totals for the health endpoint. Live sessions are those
// whose expiry has not passed; expired-but-unpurged sessions do not count.
func (s *service) Stats(ctx context.Context) (accounts, liveSessions int) {
	doc := s.store.Load()
	now := time.Now()
	for _, sess := range doc.Sessions {
		if !sess.Expired(now) {
			liveSessions++
		}
	}
	return len(doc.Accounts), liveSessions
}

// removeSession deletes any session carrying the token and persists.
func (s *service) removeSession(token string) error {
	return s.store.Update(func(doc *store.Document) error {
		kept := doc.Sessions[:0]
		for _, sess := range doc.Sessions {
			if sess.Token != token {
				kept = append(kept, sess)
			}
		}
		doc.Sessions = kept
		return nil
	})
}

// findAccount scans the document for an account by email.
func findAccount(doc store.Document, email string) (store.Account, bool) {
	for _, acct := range doc.Accounts {
		if acct.Email == email {
			return acct, true
		}
	}
	return store.Account{}, false
}

// generateToken produces a cryptographically random opaque session token.
func generateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
