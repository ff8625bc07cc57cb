package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/noah-isme/toko-storefront/internal/storage"
)

// SessionsKey holds the refresh sessions, keyed by the SHA-256 of the token.
const SessionsKey = "auth_sessions"

type refreshSession struct {
	UserID    string `json:"userId"`
	ExpiresAt int64  `json:"expiresAt"`
}

func (s userStore) sessions(ctx context.Context) (map[string]refreshSession, error) {
	raw, err := s.kv.Get(ctx, SessionsKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return map[string]refreshSession{}, nil
		}
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	out := map[string]refreshSession{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode sessions: %w", err)
	}
	return out, nil
}

func (s userStore) saveSessions(ctx context.Context, sessions map[string]refreshSession) error {
	payload, err := json.Marshal(sessions)
	if err != nil {
		return fmt.Errorf("encode sessions: %w", err)
	}
	if err := s.kv.Set(ctx, SessionsKey, payload); err != nil {
		return fmt.Errorf("save sessions: %w", err)
	}
	return nil
}

func pruneSessions(sessions map[string]refreshSession, now time.Time) {
	for hash, sess := range sessions {
		if sess.ExpiresAt <= now.Unix() {
			delete(sessions, hash)
		}
	}
}

func generateToken(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
