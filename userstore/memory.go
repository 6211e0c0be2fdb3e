package userstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nexhealth/nexauth"
)

// Memory is an in-process [nexauth.UserProvider] for development runs
// and tests. Accounts do not survive a restart.
type Memory struct {
	mu      sync.RWMutex
	users   map[string]nexauth.UserRecord
	byEmail map[string]string
}

func NewMemory() *Memory {
	return &Memory{
		users:   make(map[string]nexauth.UserRecord),
		byEmail: make(map[string]string),
	}
}

func (s *Memory) GetUserByEmail(ctx context.Context, email string) (nexauth.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, ok := s.byEmail[email]
	if !ok {
		return nexauth.UserRecord{}, nexauth.ErrProviderNotFound
	}
	return s.users[userID], nil
}

func (s *Memory) CreateUser(ctx context.Context, input nexauth.CreateUserInput) (nexauth.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[input.Email]; exists {
		return nexauth.UserRecord{}, nexauth.ErrProviderDuplicateEmail
	}

	user := nexauth.UserRecord{
		UserID:       uuid.NewString(),
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Email:        input.Email,
		PasswordHash: input.PasswordHash,
		CreatedAt:    time.Now().UTC(),
	}
	s.users[user.UserID] = user
	s.byEmail[user.Email] = user.UserID

	return user, nil
}

func (s *Memory) UpdatePasswordHash(ctx context.Context, userID string, newHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return nexauth.ErrProviderNotFound
	}
	user.PasswordHash = newHash
	s.users[userID] = user
	return nil
}
