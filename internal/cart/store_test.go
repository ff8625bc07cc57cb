package cart_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/cart"
	"github.com/noah-isme/toko-storefront/internal/catalog"
	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/storage"
)

var (
	productX = catalog.Product{ID: 1, Name: "X", Price: 10, Image: "i", InStock: true}
	productY = catalog.Product{ID: 2, Name: "Y", Price: 4.25, Images: []string{"y.jpg"}, InStock: true}
)

func init() {
	obs.MustRegisterDomainMetrics("cart_test", prometheus.NewRegistry())
}

// flakyMirror records calls and fails the ones selected by the test.
type flakyMirror struct {
	mu      sync.Mutex
	inner   cart.Mirror
	failErr error
	saves   int
	deletes int
}

func (f *flakyMirror) Load(ctx context.Context) (cart.Record, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return cart.Record{}, false, f.failErr
	}
	return f.inner.Load(ctx)
}

func (f *flakyMirror) Save(ctx context.Context, rec cart.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.failErr != nil {
		return f.failErr
	}
	return f.inner.Save(ctx, rec)
}

func (f *flakyMirror) Delete(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	if f.failErr != nil {
		return f.failErr
	}
	return f.inner.Delete(ctx)
}

func newStore(t *testing.T, kv storage.KV) *cart.Store {
	t.Helper()
	return cart.NewStore(context.Background(), cart.StoreConfig{Mirror: cart.NewKVMirror(kv), Logger: zerolog.Nop()})
}

func TestStoreScenariosPersist(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	s := newStore(t, kv)

	st := s.AddItem(ctx, productX, 2)
	require.Equal(t, 20.0, st.Total)
	require.Equal(t, 2, st.ItemCount)

	st = s.AddItem(ctx, productX, 3)
	require.Len(t, st.Items, 1)
	require.Equal(t, 5, st.ItemCount)
	require.Equal(t, 50.0, st.Total)

	st = s.UpdateQuantity(ctx, 1, 0)
	require.Equal(t, 1, st.Items[0].Quantity)
	require.Equal(t, 10.0, st.Total)

	raw, err := kv.Get(ctx, cart.StorageKey)
	require.NoError(t, err)
	rec, err := cart.DecodeRecord(raw)
	require.NoError(t, err)
	require.Equal(t, 1, rec.ItemCount)

	st = s.RemoveItem(ctx, 1)
	require.Empty(t, st.Items)
	require.Zero(t, st.Total)
	_, err = kv.Get(ctx, cart.StorageKey)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStoreClearDeletesRecordAndKeepsIsOpen(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	s := newStore(t, kv)

	s.AddItem(ctx, productX, 1)
	s.AddItem(ctx, productY, 2)
	s.Open(ctx)

	st := s.Clear(ctx)
	require.Empty(t, st.Items)
	require.Zero(t, st.Total)
	require.Zero(t, st.ItemCount)
	require.True(t, st.IsOpen)
	_, err := kv.Get(ctx, cart.StorageKey)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStoreRestartRestoresItemsAndClosesCart(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	first := newStore(t, kv)
	first.AddItem(ctx, productX, 2)
	before := first.AddItem(ctx, productY, 3)
	first.Open(ctx)
	require.True(t, first.State().IsOpen)

	restarted := newStore(t, kv).State()
	require.Equal(t, before.Items, restarted.Items)
	require.Equal(t, before.Total, restarted.Total)
	require.Equal(t, before.ItemCount, restarted.ItemCount)
	require.False(t, restarted.IsOpen)
	require.Equal(t, "y.jpg", restarted.Items[1].Image)
}

func TestStoreVisibilityDoesNotTouchMirror(t *testing.T) {
	ctx := context.Background()
	m := &flakyMirror{inner: cart.NewKVMirror(storage.NewMemory())}
	s := cart.NewStore(ctx, cart.StoreConfig{Mirror: m, Logger: zerolog.Nop()})

	s.Open(ctx)
	s.Toggle(ctx)
	s.Close(ctx)
	require.Zero(t, m.saves)
	require.Zero(t, m.deletes)

	s.AddItem(ctx, productX, 1)
	require.Equal(t, 1, m.saves)
	s.RemoveItem(ctx, 1)
	require.Equal(t, 1, m.deletes)
}

func TestStoreInvalidRecordStartsEmpty(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	require.NoError(t, kv.Set(ctx, cart.StorageKey, []byte(`{"items":"nope","total":1,"itemCount":1}`)))

	before := testutil.ToFloat64(obs.CartMirrorInvalidTotal)
	st := newStore(t, kv).State()
	require.Empty(t, st.Items)
	require.Zero(t, st.Total)
	require.NotNil(t, st.Items)
	require.Equal(t, before+1, testutil.ToFloat64(obs.CartMirrorInvalidTotal))
}

func TestStoreRecomputesInconsistentRecord(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	raw := `{"items":[
		{"id":1,"name":"X","price":10,"image":"i","quantity":2},
		{"id":2,"name":"Y","price":5,"image":"","quantity":0},
		{"id":1,"name":"X again","price":99,"image":"","quantity":1}
	],"total":12345,"itemCount":77}`
	require.NoError(t, kv.Set(ctx, cart.StorageKey, []byte(raw)))

	var logs bytes.Buffer
	s := cart.NewStore(ctx, cart.StoreConfig{Mirror: cart.NewKVMirror(kv), Logger: zerolog.New(&logs)})
	st := s.State()
	require.Equal(t, []cart.LineItem{
		{ID: 1, Name: "X", Price: 10, Image: "i", Quantity: 3},
		{ID: 2, Name: "Y", Price: 5, Image: "", Quantity: 1},
	}, st.Items)
	require.Equal(t, 35.0, st.Total)
	require.Equal(t, 4, st.ItemCount)
	require.Contains(t, logs.String(), "saved cart totals recomputed")
}

func TestStoreSurvivesMirrorFailures(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("quota exceeded")
	m := &flakyMirror{inner: cart.NewKVMirror(storage.NewMemory()), failErr: boom}

	var logs bytes.Buffer
	s := cart.NewStore(ctx, cart.StoreConfig{Mirror: m, Logger: zerolog.New(&logs)})
	require.Empty(t, s.State().Items)

	saveFailures := testutil.ToFloat64(obs.CartMirrorFailuresTotal.WithLabelValues("save"))
	st := s.AddItem(ctx, productX, 2)
	require.Equal(t, 20.0, st.Total)
	st = s.AddItem(ctx, productY, 1)
	require.Equal(t, 24.25, st.Total)
	require.Equal(t, saveFailures+2, testutil.ToFloat64(obs.CartMirrorFailuresTotal.WithLabelValues("save")))

	st = s.Clear(ctx)
	require.Empty(t, st.Items)
	require.Equal(t, 1, m.deletes)
	require.Contains(t, logs.String(), "quota exceeded")
	require.Contains(t, logs.String(), "cart mirror load failed")
}

func TestStoreReloadKeepsIsOpen(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	s := newStore(t, kv)
	s.Open(ctx)

	other := newStore(t, kv)
	other.AddItem(ctx, productY, 4)

	st := s.Reload(ctx)
	require.True(t, st.IsOpen)
	require.Len(t, st.Items, 1)
	require.Equal(t, 17.0, st.Total)

	require.NoError(t, kv.Delete(ctx, cart.StorageKey))
	require.Equal(t, st, s.Reload(ctx))
}

func TestStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, storage.NewMemory())
	st := s.AddItem(ctx, productX, 1)
	st.Items[0].Quantity = 99
	require.Equal(t, 1, s.State().Items[0].Quantity)
}

func TestStoreWithoutMirror(t *testing.T) {
	ctx := context.Background()
	s := cart.NewStore(ctx, cart.StoreConfig{Logger: zerolog.Nop()})
	require.Equal(t, 10.0, s.AddItem(ctx, productX, 1).Total)
	require.Empty(t, s.Clear(ctx).Items)
}

func TestStoreConcurrentAdds(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	s := newStore(t, kv)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.AddItem(ctx, productX, 1)
		}()
	}
	wg.Wait()

	st := s.State()
	require.Equal(t, 50, st.ItemCount)
	require.Equal(t, 500.0, st.Total)
	require.Equal(t, st.ItemCount, newStore(t, kv).State().ItemCount)
}

func TestStoreDispatchNilCommand(t *testing.T) {
	mirror := &flakyMirror{inner: cart.NewKVMirror(storage.NewMemory())}
	s := cart.NewStore(context.Background(), cart.StoreConfig{Mirror: mirror, Logger: zerolog.Nop()})
	before := s.AddItem(context.Background(), productX, 2)
	saves := mirror.saves

	require.NotPanics(t, func() {
		require.Equal(t, before, s.Dispatch(context.Background(), nil))
	})
	require.Equal(t, saves, mirror.saves)
}
