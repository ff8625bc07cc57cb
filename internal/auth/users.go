package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/toko-storefront/internal/storage"
)

const (
	// UsersKey holds the JSON list of registered accounts.
	UsersKey = "registered_users"
	// RevokedKey holds the map of revoked token ids to their expiry.
	RevokedKey = "revoked_tokens"
)

// User is the public view of an account.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

type userRecord struct {
	User
	PasswordHash string `json:"passwordHash"`
}

// userStore reads and writes whole documents; callers serialize access.
type userStore struct {
	kv storage.KV
}

func (s userStore) list(ctx context.Context) ([]userRecord, error) {
	raw, err := s.kv.Get(ctx, UsersKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load users: %w", err)
	}
	var users []userRecord
	if err := json.Unmarshal(raw, &users); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return users, nil
}

func (s userStore) save(ctx context.Context, users []userRecord) error {
	payload, err := json.Marshal(users)
	if err != nil {
		return fmt.Errorf("encode users: %w", err)
	}
	if err := s.kv.Set(ctx, UsersKey, payload); err != nil {
		return fmt.Errorf("save users: %w", err)
	}
	return nil
}

func (s userStore) revoked(ctx context.Context) (map[string]int64, error) {
	raw, err := s.kv.Get(ctx, RevokedKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return map[string]int64{}, nil
		}
		return nil, fmt.Errorf("load revoked tokens: %w", err)
	}
	out := map[string]int64{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode revoked tokens: %w", err)
	}
	return out, nil
}

func (s userStore) saveRevoked(ctx context.Context, revoked map[string]int64) error {
	payload, err := json.Marshal(revoked)
	if err != nil {
		return fmt.Errorf("encode revoked tokens: %w", err)
	}
	if err := s.kv.Set(ctx, RevokedKey, payload); err != nil {
		return fmt.Errorf("save revoked tokens: %w", err)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func findByEmail(users []userRecord, email string) int {
	for i, u := range users {
		if u.Email == email {
			return i
		}
	}
	return -1
}

func findByID(users []userRecord, id string) int {
	for i, u := range users {
		if u.ID == id {
			return i
		}
	}
	return -1
}
