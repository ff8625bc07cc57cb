// Package auth is a local account simulation for the storefront: accounts
// live in the same key-value store as the cart and sessions are HS256 access
// tokens that can be revoked on logout, renewed by rotating refresh tokens.
// It does not scope the cart per user.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/lock"
	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/storage"
)

const (
	defaultAccessTTL  = 24 * time.Hour
	defaultRefreshTTL = 30 * 24 * time.Hour
	documentLockTTL   = 5 * time.Second
)

var (
	errEmailUsed          = common.NewAppError("EMAIL_ALREADY_USED", "email is already registered", http.StatusConflict, nil)
	errInvalidCredentials = common.NewAppError("INVALID_CREDENTIALS", "invalid email or password", http.StatusUnauthorized, nil)
	errUserNotFound       = common.NewAppError("NOT_FOUND", "user not found", http.StatusNotFound, nil)
	errInvalidRefresh     = common.NewAppError("UNAUTHORIZED", "invalid refresh token", http.StatusUnauthorized, nil)
)

// Config configures the auth service.
type Config struct {
	Store           storage.KV
	Secret          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	Issuer          string
	Audience        string
	ClockSkew       time.Duration
	HashParams      *argon2id.Params
	Locker          lock.Locker
	Logger          zerolog.Logger
}

// Service registers accounts, verifies credentials and issues access tokens.
type Service struct {
	locker     lock.Locker
	users      userStore
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	hash       *argon2id.Params
	validator  TokenValidator
	now        func() time.Time
	log        zerolog.Logger
}

// Session is returned by Register, Login and Refresh.
type Session struct {
	User          User      `json:"user"`
	AccessToken   string    `json:"accessToken"`
	AccessExpiry  time.Time `json:"accessTokenExpiresAt"`
	RefreshToken  string    `json:"refreshToken"`
	RefreshExpiry time.Time `json:"refreshTokenExpiresAt"`
}

// NewService constructs a Service with defaults for unset fields.
func NewService(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("auth: store is required")
	}
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	ttl := cfg.AccessTokenTTL
	if ttl <= 0 {
		ttl = defaultAccessTTL
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = "toko-storefront"
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		audience = "toko-storefront-web"
	}
	refreshTTL := cfg.RefreshTokenTTL
	if refreshTTL <= 0 {
		refreshTTL = defaultRefreshTTL
	}
	params := cfg.HashParams
	if params == nil {
		params = argon2id.DefaultParams
	}
	locker := cfg.Locker
	if locker == nil {
		locker = &lock.Local{}
	}
	return &Service{
		locker:     locker,
		users:      userStore{kv: cfg.Store},
		secret:     []byte(secret),
		accessTTL:  ttl,
		refreshTTL: refreshTTL,
		hash:       params,
		validator: TokenValidator{
			Issuer:    issuer,
			Audience:  audience,
			ClockSkew: max(cfg.ClockSkew, 0),
			Algorithm: jwa.HS256,
		},
		now: time.Now,
		log: cfg.Logger.With().Str("component", "auth").Logger(),
	}, nil
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Register creates an account and signs the new user in.
func (s *Service) Register(ctx context.Context, name, email, password string) (Session, error) {
	hash, err := argon2id.CreateHash(password, s.hash)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}
	rec := userRecord{
		User: User{
			ID:        uuid.NewString(),
			Name:      strings.TrimSpace(name),
			Email:     normalizeEmail(email),
			CreatedAt: s.now().UTC(),
		},
		PasswordHash: hash,
	}
	err = s.locker.WithLock(ctx, UsersKey, documentLockTTL, func(ctx context.Context) error {
		users, err := s.users.list(ctx)
		if err != nil {
			return err
		}
		if findByEmail(users, rec.Email) >= 0 {
			return errEmailUsed
		}
		return s.users.save(ctx, append(users, rec))
	})
	if err != nil {
		if errors.Is(err, errEmailUsed) {
			obs.ObserveAuthAttempt("register", "conflict")
		}
		return Session{}, err
	}
	obs.ObserveAuthAttempt("register", "success")
	s.log.Info().Str("user_id", rec.ID).Msg("user registered")
	return s.newSession(ctx, rec.User)
}

// Login verifies credentials and issues an access token.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		obs.ObserveAuthAttempt("login", "failure")
		return Session{}, errInvalidCredentials
	}
	users, err := s.users.list(ctx)
	if err != nil {
		return Session{}, err
	}
	i := findByEmail(users, email)
	if i < 0 {
		obs.ObserveAuthAttempt("login", "failure")
		return Session{}, errInvalidCredentials
	}
	ok, err := argon2id.ComparePasswordAndHash(password, users[i].PasswordHash)
	if err != nil || !ok {
		obs.ObserveAuthAttempt("login", "failure")
		return Session{}, errInvalidCredentials
	}
	obs.ObserveAuthAttempt("login", "success")
	return s.newSession(ctx, users[i].User)
}

// Logout revokes accessToken until it would have expired anyway and ends the
// refresh session of refreshToken. Invalid or unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, accessToken, refreshToken string) error {
	if refreshToken = strings.TrimSpace(refreshToken); refreshToken != "" {
		err := s.locker.WithLock(ctx, SessionsKey, documentLockTTL, func(ctx context.Context) error {
			sessions, err := s.users.sessions(ctx)
			if err != nil {
				return err
			}
			delete(sessions, hashRefreshToken(refreshToken))
			pruneSessions(sessions, s.now())
			return s.users.saveSessions(ctx, sessions)
		})
		if err != nil {
			return err
		}
	}

	claims, err := s.verifyAccessToken(strings.TrimSpace(accessToken))
	if err != nil {
		return nil
	}
	return s.locker.WithLock(ctx, RevokedKey, documentLockTTL, func(ctx context.Context) error {
		revoked, err := s.users.revoked(ctx)
		if err != nil {
			return err
		}
		now := s.now().Unix()
		for id, exp := range revoked {
			if exp <= now {
				delete(revoked, id)
			}
		}
		revoked[claims.TokenID] = claims.ExpiresAt.Unix()
		return s.users.saveRevoked(ctx, revoked)
	})
}

// Refresh exchanges a live refresh token for a new access token and rotates
// the refresh token; the presented one stops working.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		obs.ObserveAuthAttempt("refresh", "failure")
		return Session{}, errInvalidRefresh
	}
	hashed := hashRefreshToken(refreshToken)

	var next Session
	err := s.locker.WithLock(ctx, SessionsKey, documentLockTTL, func(ctx context.Context) error {
		sessions, err := s.users.sessions(ctx)
		if err != nil {
			return err
		}
		now := s.now()
		current, ok := sessions[hashed]
		pruneSessions(sessions, now)
		if !ok || current.ExpiresAt <= now.Unix() {
			return errInvalidRefresh
		}
		delete(sessions, hashed)

		users, err := s.users.list(ctx)
		if err != nil {
			return err
		}
		i := findByID(users, current.UserID)
		if i < 0 {
			if err := s.users.saveSessions(ctx, sessions); err != nil {
				return err
			}
			return errInvalidRefresh
		}
		next, err = s.issue(users[i].User)
		if err != nil {
			return err
		}
		sessions[hashRefreshToken(next.RefreshToken)] = refreshSession{UserID: current.UserID, ExpiresAt: next.RefreshExpiry.Unix()}
		return s.users.saveSessions(ctx, sessions)
	})
	if err != nil {
		if errors.Is(err, errInvalidRefresh) {
			obs.ObserveAuthAttempt("refresh", "failure")
		}
		return Session{}, err
	}
	obs.ObserveAuthAttempt("refresh", "success")
	return next, nil
}

// Me returns the account for userID.
func (s *Service) Me(ctx context.Context, userID string) (User, error) {
	users, err := s.users.list(ctx)
	if err != nil {
		return User{}, err
	}
	i := findByID(users, userID)
	if i < 0 {
		return User{}, errUserNotFound
	}
	return users[i].User, nil
}

// UpdateProfile changes the name and email of userID. Blank values keep the
// current ones; an email owned by another account is rejected.
func (s *Service) UpdateProfile(ctx context.Context, userID, name, email string) (User, error) {
	var updated User
	err := s.locker.WithLock(ctx, UsersKey, documentLockTTL, func(ctx context.Context) error {
		users, err := s.users.list(ctx)
		if err != nil {
			return err
		}
		i := findByID(users, userID)
		if i < 0 {
			return errUserNotFound
		}
		if name = strings.TrimSpace(name); name != "" {
			users[i].Name = name
		}
		if email = normalizeEmail(email); email != "" && email != users[i].Email {
			if findByEmail(users, email) >= 0 {
				return errEmailUsed
			}
			users[i].Email = email
		}
		updated = users[i].User
		return s.users.save(ctx, users)
	})
	if err != nil {
		return User{}, err
	}
	return updated, nil
}

// ParseAccessToken validates token, rejects revoked ones and returns the user id.
func (s *Service) ParseAccessToken(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", common.NewAppError("UNAUTHORIZED", "missing token", http.StatusUnauthorized, nil)
	}
	claims, err := s.verifyAccessToken(token)
	if err != nil {
		return "", common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	revoked, err := s.users.revoked(ctx)
	if err != nil {
		return "", err
	}
	if _, ok := revoked[claims.TokenID]; ok {
		return "", common.NewAppError("UNAUTHORIZED", "token revoked", http.StatusUnauthorized, nil)
	}
	return claims.Subject, nil
}

// newSession issues a token pair for u and records the refresh session.
func (s *Service) newSession(ctx context.Context, u User) (Session, error) {
	session, err := s.issue(u)
	if err != nil {
		return Session{}, err
	}
	err = s.locker.WithLock(ctx, SessionsKey, documentLockTTL, func(ctx context.Context) error {
		sessions, err := s.users.sessions(ctx)
		if err != nil {
			return err
		}
		pruneSessions(sessions, s.now())
		sessions[hashRefreshToken(session.RefreshToken)] = refreshSession{UserID: u.ID, ExpiresAt: session.RefreshExpiry.Unix()}
		return s.users.saveSessions(ctx, sessions)
	})
	if err != nil {
		return Session{}, err
	}
	return session, nil
}

func (s *Service) issue(u User) (Session, error) {
	token, expiresAt, err := s.signAccessToken(u.ID)
	if err != nil {
		return Session{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := generateToken(48)
	if err != nil {
		return Session{}, fmt.Errorf("generate refresh token: %w", err)
	}
	return Session{
		User:          u,
		AccessToken:   token,
		AccessExpiry:  expiresAt,
		RefreshToken:  refresh,
		RefreshExpiry: s.now().Add(s.refreshTTL),
	}, nil
}
