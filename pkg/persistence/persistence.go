// Package persistence saves and restores the timer collection in a single
// named key-value slot.
//
// Persistence is best effort. A snapshot that cannot be read is treated as
// empty and a failed write is logged; the in-memory collection stays
// authoritative for the lifetime of the process.
package persistence

import (
	"errors"
	"fmt"
	"time"

	"github.com/korjavin/kitchentimer/pkg/clock"
	"github.com/korjavin/kitchentimer/pkg/logger"
	"github.com/korjavin/kitchentimer/pkg/models"
	"github.com/korjavin/kitchentimer/pkg/storage"
)

// DefaultKey is the slot the timer collection is stored under.
const DefaultKey = "cooking_timers"

// SnapshotVersion is the current envelope format version.
const SnapshotVersion = 1

// ErrEmptySlot means nothing has been saved yet.
var ErrEmptySlot = errors.New("no saved timers")

// Slot is the durable key-value store the snapshot lives in.
type Slot interface {
	GetBytes(key string) ([]byte, error)
	SetBytes(key string, data []byte) error
}

// Snapshot is the persisted envelope around the timer list.
type Snapshot struct {
	Version int            `json:"version" cbor:"version"`
	SavedAt time.Time      `json:"saved_at" cbor:"saved_at"`
	Timers  []models.Timer `json:"timers" cbor:"timers"`
}

// Adapter reads and writes timer snapshots.
type Adapter struct {
	slot   Slot
	key    string
	codec  Codec
	clock  clock.Clock
	logger *logger.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithKey overrides the slot key.
func WithKey(key string) Option {
	return func(a *Adapter) {
		if key != "" {
			a.key = key
		}
	}
}

// WithCodec overrides the codec.
func WithCodec(codec Codec) Option {
	return func(a *Adapter) {
		if codec != nil {
			a.codec = codec
		}
	}
}

// WithClock overrides the clock used to stamp SavedAt.
func WithClock(c clock.Clock) Option {
	return func(a *Adapter) {
		if c != nil {
			a.clock = c
		}
	}
}

// WithLogger overrides the logger.
func WithLogger(l *logger.Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// New creates an adapter over slot.
func New(slot Slot, opts ...Option) *Adapter {
	a := &Adapter{
		slot:   slot,
		key:    DefaultKey,
		codec:  JSON,
		clock:  clock.Real{},
		logger: logger.New("persistence"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Key returns the slot key.
func (a *Adapter) Key() string {
	return a.key
}

// Read decodes the stored snapshot, reporting why it could not.
func (a *Adapter) Read() (Snapshot, error) {
	data, err := a.slot.GetBytes(a.key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Snapshot{}, ErrEmptySlot
		}
		return Snapshot{}, fmt.Errorf("read %s: %w", a.key, err)
	}
	if len(data) == 0 {
		return Snapshot{}, ErrEmptySlot
	}

	var snap Snapshot
	if err := a.codec.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode %s as %s: %w", a.key, a.codec.Name(), err)
	}
	if snap.Version > SnapshotVersion {
		return Snapshot{}, fmt.Errorf("snapshot version %d is newer than supported %d", snap.Version, SnapshotVersion)
	}
	return snap, nil
}

// Load returns the stored snapshot, or an empty one if nothing usable is stored.
func (a *Adapter) Load() Snapshot {
	snap, err := a.Read()
	if err != nil {
		if !errors.Is(err, ErrEmptySlot) {
			a.logger.Error("Error loading cooking timers, starting empty: %v", err)
		}
		return Snapshot{Version: SnapshotVersion}
	}
	a.logger.Info("Loaded %d cooking timers saved at %s", len(snap.Timers), snap.SavedAt.Format(time.RFC3339))
	return snap
}

// Save writes the collection. Errors are logged and returned; callers are
// free to ignore them.
func (a *Adapter) Save(timers []models.Timer) error {
	if timers == nil {
		timers = []models.Timer{}
	}
	snap := Snapshot{
		Version: SnapshotVersion,
		SavedAt: a.clock.Now(),
		Timers:  timers,
	}

	data, err := a.codec.Marshal(snap)
	if err != nil {
		a.logger.Error("Error encoding cooking timers: %v", err)
		return fmt.Errorf("encode timers: %w", err)
	}
	if err := a.slot.SetBytes(a.key, data); err != nil {
		a.logger.Error("Error saving cooking timers: %v", err)
		return fmt.Errorf("write timers: %w", err)
	}
	return nil
}
