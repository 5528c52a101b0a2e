package persistence

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/korjavin/kitchentimer/pkg/clock"
	"github.com/korjavin/kitchentimer/pkg/logger"
	"github.com/korjavin/kitchentimer/pkg/models"
	"github.com/korjavin/kitchentimer/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memSlot is an in-process Slot with injectable failures.
type memSlot struct {
	data    map[string][]byte
	readErr error
	saveErr error
}

func newMemSlot() *memSlot {
	return &memSlot{data: map[string][]byte{}}
}

func (m *memSlot) GetBytes(key string) ([]byte, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	data, ok := m.data[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return data, nil
}

func (m *memSlot) SetBytes(key string, data []byte) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.data[key] = data
	return nil
}

func sampleTimers() []models.Timer {
	created := time.Date(2024, 3, 1, 18, 0, 0, 123456789, time.FixedZone("CET", 3600))
	completed := created.Add(90*time.Second + 987654321)
	return []models.Timer{
		{
			ID: "timer-1", StepID: "s1", StepTitle: "Boil", RecipeTitle: "Pasta",
			Duration: 600, TimeRemaining: 420, IsActive: true, IsPaused: true,
			CreatedAt: created,
		},
		{
			ID: "timer-2", StepID: "s2", StepTitle: "Rest", RecipeTitle: "Pasta",
			Duration: 90, TimeRemaining: 0,
			CreatedAt: created, CompletedAt: &completed,
		},
	}
}

func quietLogger(buf *bytes.Buffer) *logger.Logger {
	return logger.NewWithWriter("persistence", buf)
}

func assertSameTimers(t *testing.T, want, got []models.Timer) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		w, g := want[i], got[i]
		assert.Equal(t, w.ID, g.ID)
		assert.Equal(t, w.StepID, g.StepID)
		assert.Equal(t, w.StepTitle, g.StepTitle)
		assert.Equal(t, w.RecipeTitle, g.RecipeTitle)
		assert.Equal(t, w.Duration, g.Duration)
		assert.Equal(t, w.TimeRemaining, g.TimeRemaining)
		assert.Equal(t, w.IsActive, g.IsActive)
		assert.Equal(t, w.IsPaused, g.IsPaused)
		assert.True(t, w.CreatedAt.Equal(g.CreatedAt), "created_at %v != %v", w.CreatedAt, g.CreatedAt)
		if w.CompletedAt == nil {
			assert.Nil(t, g.CompletedAt)
		} else {
			require.NotNil(t, g.CompletedAt)
			assert.True(t, w.CompletedAt.Equal(*g.CompletedAt), "completed_at %v != %v", *w.CompletedAt, *g.CompletedAt)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	for _, codec := range []Codec{JSON, CBOR} {
		t.Run(codec.Name(), func(t *testing.T) {
			slot := newMemSlot()
			savedAt := time.Date(2024, 3, 1, 18, 5, 0, 0, time.UTC)
			a := New(slot, WithCodec(codec), WithClock(clock.NewManual(savedAt)))

			require.NoError(t, a.Save(sampleTimers()))
			snap := a.Load()

			assert.Equal(t, SnapshotVersion, snap.Version)
			assert.True(t, savedAt.Equal(snap.SavedAt))
			assertSameTimers(t, sampleTimers(), snap.Timers)
		})
	}
}

func TestRoundTripThroughBadger(t *testing.T) {
	store, err := storage.NewInMemory()
	require.NoError(t, err)
	defer store.Close()

	a := New(store, WithKey("timers"))
	require.NoError(t, a.Save(sampleTimers()))

	assertSameTimers(t, sampleTimers(), New(store, WithKey("timers")).Load().Timers)
}

func TestLoadMissingSlotIsEmpty(t *testing.T) {
	var buf bytes.Buffer
	a := New(newMemSlot(), WithLogger(quietLogger(&buf)))

	_, err := a.Read()
	assert.ErrorIs(t, err, ErrEmptySlot)

	snap := a.Load()
	assert.Empty(t, snap.Timers)
	assert.NotContains(t, buf.String(), "ERROR", "a missing slot is not an error")
}

func TestLoadReadFailureIsEmpty(t *testing.T) {
	var buf bytes.Buffer
	slot := newMemSlot()
	slot.readErr = errors.New("disk on fire")
	a := New(slot, WithLogger(quietLogger(&buf)))

	snap := a.Load()
	assert.Empty(t, snap.Timers)
	assert.Contains(t, buf.String(), "disk on fire")
}

func TestLoadMalformedIsEmpty(t *testing.T) {
	var buf bytes.Buffer
	slot := newMemSlot()
	slot.data[DefaultKey] = []byte(`{"version":1,"timers":[{"id":`)
	a := New(slot, WithLogger(quietLogger(&buf)))

	_, err := a.Read()
	assert.Error(t, err)
	assert.Empty(t, a.Load().Timers)
	assert.Contains(t, buf.String(), "[ERROR]")
}

func TestLoadFutureVersionIsEmpty(t *testing.T) {
	var buf bytes.Buffer
	slot := newMemSlot()
	slot.data[DefaultKey] = []byte(`{"version":99,"timers":[]}`)
	a := New(slot, WithLogger(quietLogger(&buf)))

	_, err := a.Read()
	assert.ErrorContains(t, err, "newer than supported")
}

func TestSaveFailureIsReportedNotFatal(t *testing.T) {
	var buf bytes.Buffer
	slot := newMemSlot()
	slot.saveErr = errors.New("read-only filesystem")
	a := New(slot, WithLogger(quietLogger(&buf)))

	err := a.Save(sampleTimers())
	assert.ErrorContains(t, err, "read-only filesystem")
	assert.Contains(t, buf.String(), "Error saving cooking timers")
}

func TestSaveNilWritesEmptyList(t *testing.T) {
	slot := newMemSlot()
	a := New(slot)

	require.NoError(t, a.Save(nil))
	assert.Contains(t, string(slot.data[DefaultKey]), `"timers":[]`)
}

func TestCodecByName(t *testing.T) {
	for name, want := range map[string]Codec{"": JSON, "json": JSON, "CBOR": CBOR, " cbor ": CBOR} {
		got, err := CodecByName(name)
		require.NoError(t, err, name)
		assert.Equal(t, want.Name(), got.Name())
	}
	_, err := CodecByName("yaml")
	assert.Error(t, err)
}
