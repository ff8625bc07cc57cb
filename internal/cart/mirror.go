package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/noah-isme/toko-storefront/internal/storage"
)

// StorageKey is the fixed key the cart record is saved under.
const StorageKey = "shopping_cart"

// ErrInvalidRecord marks a saved record that failed structural validation.
var ErrInvalidRecord = errors.New("cart: invalid saved record")

// Record is the persisted part of State. IsOpen is deliberately absent.
type Record struct {
	Items     []LineItem `json:"items"`
	Total     float64    `json:"total"`
	ItemCount int        `json:"itemCount"`
}

// RecordOf extracts the persisted fields of s.
func RecordOf(s State) Record {
	return Record{Items: s.Items, Total: s.Total, ItemCount: s.ItemCount}
}

// Mirror is the durable copy of the cart. Load reports ok=false when no
// record exists. Implementations return errors; the store decides to ignore them.
type Mirror interface {
	Load(ctx context.Context) (Record, bool, error)
	Save(ctx context.Context, rec Record) error
	Delete(ctx context.Context) error
}

// KVMirror keeps the cart record as JSON under a single key of a storage.KV.
type KVMirror struct {
	KV  storage.KV
	Key string
}

// NewKVMirror returns a mirror using StorageKey.
func NewKVMirror(kv storage.KV) *KVMirror {
	return &KVMirror{KV: kv, Key: StorageKey}
}

func (m *KVMirror) key() string {
	if m.Key == "" {
		return StorageKey
	}
	return m.Key
}

// Load reads and validates the saved record. A record is accepted only when
// items is a JSON array and total and itemCount are JSON numbers.
func (m *KVMirror) Load(ctx context.Context) (Record, bool, error) {
	raw, err := m.KV.Get(ctx, m.key())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("cart: load record: %w", err)
	}
	rec, err := DecodeRecord(raw)
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

// Save overwrites the saved record.
func (m *KVMirror) Save(ctx context.Context, rec Record) error {
	if rec.Items == nil {
		rec.Items = []LineItem{}
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("cart: encode record: %w", err)
	}
	if err := m.KV.Set(ctx, m.key(), payload); err != nil {
		return fmt.Errorf("cart: save record: %w", err)
	}
	return nil
}

// Delete erases the saved record; deleting an absent record is not an error.
func (m *KVMirror) Delete(ctx context.Context) error {
	if err := m.KV.Delete(ctx, m.key()); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("cart: delete record: %w", err)
	}
	return nil
}

// DecodeRecord validates and decodes a serialized record.
func DecodeRecord(raw []byte) (Record, error) {
	var fields struct {
		Items     json.RawMessage `json:"items"`
		Total     json.RawMessage `json:"total"`
		ItemCount json.RawMessage `json:"itemCount"`
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if !isJSONArray(fields.Items) {
		return Record{}, fmt.Errorf("%w: items is not an array", ErrInvalidRecord)
	}
	if !isJSONNumber(fields.Total) || !isJSONNumber(fields.ItemCount) {
		return Record{}, fmt.Errorf("%w: totals are not numeric", ErrInvalidRecord)
	}

	var rec Record
	if err := json.Unmarshal(fields.Items, &rec.Items); err != nil {
		return Record{}, fmt.Errorf("%w: items: %v", ErrInvalidRecord, err)
	}
	if err := json.Unmarshal(fields.Total, &rec.Total); err != nil {
		return Record{}, fmt.Errorf("%w: total: %v", ErrInvalidRecord, err)
	}
	var count float64
	if err := json.Unmarshal(fields.ItemCount, &count); err != nil {
		return Record{}, fmt.Errorf("%w: itemCount: %v", ErrInvalidRecord, err)
	}
	rec.ItemCount = int(count)
	return rec, nil
}

func isJSONArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}

func isJSONNumber(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false
	}
	c := raw[0]
	return c == '-' || (c >= '0' && c <= '9')
}

// normalizeItems repairs a loaded item list so the cart invariants hold:
// quantities are floored at 1 and repeated ids are merged into the first
// occurrence. It reports whether anything changed.
func normalizeItems(items []LineItem) ([]LineItem, bool) {
	out := make([]LineItem, 0, len(items))
	changed := false
	for _, it := range items {
		if it.Quantity < 1 {
			it.Quantity = 1
			changed = true
		}
		if i := indexOf(out, it.ID); i >= 0 {
			out[i].Quantity += it.Quantity
			changed = true
			continue
		}
		out = append(out, it)
	}
	return out, changed
}
