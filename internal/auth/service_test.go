package auth_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/auth"
	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/lock"
	"github.com/noah-isme/toko-storefront/internal/storage"
)

var testHashParams = &argon2id.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func newService(t *testing.T, kv storage.KV) *auth.Service {
	t.Helper()
	svc, err := auth.NewService(auth.Config{
		Store:      kv,
		Secret:     "test-secret",
		HashParams: testHashParams,
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)
	return svc
}

func appCode(t *testing.T, err error) string {
	t.Helper()
	var appErr *common.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	return appErr.Code
}

func TestNewServiceRequiresStoreAndSecret(t *testing.T) {
	_, err := auth.NewService(auth.Config{Secret: "x"})
	require.Error(t, err)
	_, err = auth.NewService(auth.Config{Store: storage.NewMemory(), Secret: "  "})
	require.Error(t, err)
}

func TestRegisterLoginMe(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	svc := newService(t, kv)

	session, err := svc.Register(ctx, " Ada ", "Ada@Example.com", "abc")
	require.NoError(t, err)
	require.Equal(t, "Ada", session.User.Name)
	require.Equal(t, "ada@example.com", session.User.Email)
	require.NotEmpty(t, session.User.ID)
	require.NotEmpty(t, session.AccessToken)

	raw, err := kv.Get(ctx, auth.UsersKey)
	require.NoError(t, err)
	require.NotContains(t, string(raw), `"abc"`)

	_, err = svc.Register(ctx, "Other", "ada@example.com", "xyz")
	require.Equal(t, "EMAIL_ALREADY_USED", appCode(t, err))

	login, err := svc.Login(ctx, "ADA@example.com", "abc")
	require.NoError(t, err)
	require.Equal(t, session.User.ID, login.User.ID)

	_, err = svc.Login(ctx, "ada@example.com", "wrong")
	require.Equal(t, "INVALID_CREDENTIALS", appCode(t, err))
	_, err = svc.Login(ctx, "nobody@example.com", "abc")
	require.Equal(t, "INVALID_CREDENTIALS", appCode(t, err))

	userID, err := svc.ParseAccessToken(ctx, login.AccessToken)
	require.NoError(t, err)
	me, err := svc.Me(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, session.User, me)

	// accounts survive a new service over the same store
	again, err := newService(t, kv).Login(ctx, "ada@example.com", "abc")
	require.NoError(t, err)
	require.Equal(t, me.ID, again.User.ID)
}

func TestLogoutRevokesToken(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, storage.NewMemory())
	session, err := svc.Register(ctx, "Ada", "ada@example.com", "abc")
	require.NoError(t, err)
	other, err := svc.Login(ctx, "ada@example.com", "abc")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, session.AccessToken, ""))
	_, err = svc.ParseAccessToken(ctx, session.AccessToken)
	require.Equal(t, "UNAUTHORIZED", appCode(t, err))

	_, err = svc.ParseAccessToken(ctx, other.AccessToken)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, "garbage", "garbage"))
}

func TestRefreshRotatesAndRejectsReuse(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	svc := newService(t, kv)

	session, err := svc.Register(ctx, "Ada", "ada@example.com", "abc")
	require.NoError(t, err)
	require.NotEmpty(t, session.RefreshToken)
	require.True(t, session.RefreshExpiry.After(session.AccessExpiry))

	raw, err := kv.Get(ctx, auth.SessionsKey)
	require.NoError(t, err)
	require.NotContains(t, string(raw), session.RefreshToken)

	rotated, err := svc.Refresh(ctx, session.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, session.User.ID, rotated.User.ID)
	require.NotEqual(t, session.RefreshToken, rotated.RefreshToken)
	userID, err := svc.ParseAccessToken(ctx, rotated.AccessToken)
	require.NoError(t, err)
	require.Equal(t, session.User.ID, userID)

	_, err = svc.Refresh(ctx, session.RefreshToken)
	require.Equal(t, "UNAUTHORIZED", appCode(t, err))
	_, err = svc.Refresh(ctx, "")
	require.Equal(t, "UNAUTHORIZED", appCode(t, err))

	require.NoError(t, svc.Logout(ctx, rotated.AccessToken, rotated.RefreshToken))
	_, err = svc.Refresh(ctx, rotated.RefreshToken)
	require.Equal(t, "UNAUTHORIZED", appCode(t, err))
}

func TestRefreshRejectsExpiredSession(t *testing.T) {
	ctx := context.Background()
	svc, err := auth.NewService(auth.Config{
		Store:           storage.NewMemory(),
		Secret:          "test-secret",
		RefreshTokenTTL: time.Hour,
		HashParams:      testHashParams,
	})
	require.NoError(t, err)

	session, err := svc.Register(ctx, "Ada", "ada@example.com", "abc")
	require.NoError(t, err)

	svc.WithNow(func() time.Time { return time.Now().Add(2 * time.Hour) })
	_, err = svc.Refresh(ctx, session.RefreshToken)
	require.Equal(t, "UNAUTHORIZED", appCode(t, err))
}

func TestParseAccessTokenRejectsExpiredAndForeign(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	svc := newService(t, kv)
	session, err := svc.Register(ctx, "Ada", "ada@example.com", "abc")
	require.NoError(t, err)

	svc.WithNow(func() time.Time { return time.Now().Add(48 * time.Hour) })
	_, err = svc.ParseAccessToken(ctx, session.AccessToken)
	require.Error(t, err)

	foreign, err := auth.NewService(auth.Config{Store: kv, Secret: "other-secret", HashParams: testHashParams})
	require.NoError(t, err)
	_, err = foreign.ParseAccessToken(ctx, session.AccessToken)
	require.Error(t, err)

	_, err = svc.ParseAccessToken(ctx, "")
	require.Equal(t, "UNAUTHORIZED", appCode(t, err))
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, storage.NewMemory())
	ada, err := svc.Register(ctx, "Ada", "ada@example.com", "abc")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "Bob", "bob@example.com", "abc")
	require.NoError(t, err)

	updated, err := svc.UpdateProfile(ctx, ada.User.ID, "Ada L.", "ada.l@example.com")
	require.NoError(t, err)
	require.Equal(t, "Ada L.", updated.Name)
	require.Equal(t, "ada.l@example.com", updated.Email)

	_, err = svc.Login(ctx, "ada.l@example.com", "abc")
	require.NoError(t, err)

	_, err = svc.UpdateProfile(ctx, ada.User.ID, "", "bob@example.com")
	require.Equal(t, "EMAIL_ALREADY_USED", appCode(t, err))

	_, err = svc.UpdateProfile(ctx, "missing", "x", "")
	require.Equal(t, "NOT_FOUND", appCode(t, err))
}

func TestConcurrentRegisterSameEmailAcrossServices(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	kv := storage.NewRedis(client, 0)

	newShared := func() *auth.Service {
		svc, err := auth.NewService(auth.Config{
			Store:      kv,
			Secret:     "test-secret",
			HashParams: testHashParams,
			Locker:     lock.Redis{Client: client, RetryBackoff: time.Millisecond},
		})
		require.NoError(t, err)
		return svc
	}
	services := []*auth.Service{newShared(), newShared()}

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(svc *auth.Service) {
			defer wg.Done()
			if _, err := svc.Register(context.Background(), "Ada", "ada@example.com", "abc"); err == nil {
				successes.Add(1)
			}
		}(services[i%2])
	}
	wg.Wait()
	require.Equal(t, int32(1), successes.Load())
}
