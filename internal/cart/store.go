package cart

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/catalog"
	"github.com/noah-isme/toko-storefront/internal/obs"
)

// StoreConfig wires a Store's collaborators. A nil Mirror disables persistence.
type StoreConfig struct {
	Mirror Mirror
	Logger zerolog.Logger
}

// Store owns the live cart state. Operations are serialized; each one reads
// and replaces the state atomically and returns a copy of the result.
type Store struct {
	mu     sync.Mutex
	state  State
	mirror Mirror
	log    zerolog.Logger
}

// NewStore builds the store and seeds it from the mirror. Any load failure
// leaves an empty cart; IsOpen always starts false.
func NewStore(ctx context.Context, cfg StoreConfig) *Store {
	s := &Store{
		state:  State{Items: []LineItem{}},
		mirror: cfg.Mirror,
		log:    cfg.Logger.With().Str("component", "cart").Logger(),
	}
	if items, ok := s.load(ctx); ok {
		s.state = Reduce(s.state, ReplaceItems{Items: items})
	}
	obs.ObserveCartCommand("load", s.state.ItemCount)
	return s
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Dispatch applies cmd, mirrors item changes, and returns the new state.
// A nil cmd leaves the state unchanged.
func (s *Store) Dispatch(ctx context.Context, cmd Command) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cmd == nil {
		return s.state.Clone()
	}

	next := Reduce(s.state, cmd)
	s.state = next
	if cmd.mutatesItems() {
		s.persist(ctx, next)
	}
	obs.ObserveCartCommand(cmd.Name(), next.ItemCount)
	s.log.Debug().
		Str("command", cmd.Name()).
		Int("items", len(next.Items)).
		Int("item_count", next.ItemCount).
		Float64("total", next.Total).
		Msg("cart command applied")
	return next.Clone()
}

// AddItem adds qty units of p; qty below 1 adds one unit.
func (s *Store) AddItem(ctx context.Context, p catalog.Product, qty int) State {
	return s.Dispatch(ctx, AddItem{Product: p, Quantity: qty})
}

// RemoveItem drops the line with id, if present.
func (s *Store) RemoveItem(ctx context.Context, id int) State {
	return s.Dispatch(ctx, RemoveItem{ID: id})
}

// UpdateQuantity sets the quantity of line id, floored at 1.
func (s *Store) UpdateQuantity(ctx context.Context, id, qty int) State {
	return s.Dispatch(ctx, UpdateQuantity{ID: id, Quantity: qty})
}

// Clear empties the cart and erases the saved record.
func (s *Store) Clear(ctx context.Context) State {
	return s.Dispatch(ctx, ClearCart{})
}

func (s *Store) Open(ctx context.Context) State   { return s.Dispatch(ctx, OpenCart{}) }
func (s *Store) Close(ctx context.Context) State  { return s.Dispatch(ctx, CloseCart{}) }
func (s *Store) Toggle(ctx context.Context) State { return s.Dispatch(ctx, ToggleCart{}) }

// Reload re-reads the mirror and replaces items and totals, keeping IsOpen.
// An absent or invalid record leaves the state unchanged.
func (s *Store) Reload(ctx context.Context) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if items, ok := s.load(ctx); ok {
		s.state = Reduce(s.state, ReplaceItems{Items: items})
		obs.ObserveCartCommand("reload", s.state.ItemCount)
	}
	return s.state.Clone()
}

// load must be called with mu held or before the store is shared.
func (s *Store) load(ctx context.Context) ([]LineItem, bool) {
	if s.mirror == nil {
		return nil, false
	}
	rec, ok, err := s.mirror.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrInvalidRecord) {
			obs.ObserveCartMirrorInvalid()
			s.log.Warn().Err(err).Msg("discarding saved cart")
		} else {
			obs.ObserveCartMirrorFailure("load")
			s.log.Error().Err(err).Msg("cart mirror load failed")
		}
		return nil, false
	}
	if !ok {
		return nil, false
	}

	items, repaired := normalizeItems(rec.Items)
	total, count := Totals(items)
	if repaired || total != rec.Total || count != rec.ItemCount {
		s.log.Warn().
			Float64("saved_total", rec.Total).
			Int("saved_item_count", rec.ItemCount).
			Float64("total", total).
			Int("item_count", count).
			Msg("saved cart totals recomputed")
	}
	return items, true
}

func (s *Store) persist(ctx context.Context, st State) {
	if s.mirror == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if len(st.Items) == 0 {
		if err := s.mirror.Delete(ctx); err != nil {
			obs.ObserveCartMirrorFailure("delete")
			s.log.Error().Err(err).Msg("cart mirror delete failed")
		}
		return
	}
	if err := s.mirror.Save(ctx, RecordOf(st)); err != nil {
		obs.ObserveCartMirrorFailure("save")
		s.log.Error().Err(err).Msg("cart mirror save failed")
	}
}
