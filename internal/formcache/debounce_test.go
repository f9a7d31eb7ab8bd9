package formcache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type recordedWrite struct {
	formID string
	data   map[string]any
}

type recordingWriter struct {
	mu     sync.Mutex
	writes []recordedWrite
}

func (w *recordingWriter) SaveFormData(_ context.Context, formID string, data map[string]any) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writes = append(w.writes, recordedWrite{formID: formID, data: data})
	return true
}

func (w *recordingWriter) snapshot() []recordedWrite {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]recordedWrite(nil), w.writes...)
}

func TestDebouncer_TrailingEdge(t *testing.T) {
	defer goleak.VerifyNone(t)

	w := &recordingWriter{}
	d := NewDebouncer(w, 50*time.Millisecond, nil)

	for i := 1; i <= 5; i++ {
		require.True(t, d.Submit("profile", map[string]any{"rev": i}))
		time.Sleep(5 * time.Millisecond)
	}
	assert.True(t, d.Pending("profile"))
	assert.Empty(t, w.snapshot())

	require.Eventually(t, func() bool { return len(w.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	writes := w.snapshot()
	require.Len(t, writes, 1)
	assert.Equal(t, "profile", writes[0].formID)
	assert.Equal(t, 5, writes[0].data["rev"])
	assert.False(t, d.Pending("profile"))

	d.Stop(context.Background())
}

func TestDebouncer_FormsAreIndependent(t *testing.T) {
	defer goleak.VerifyNone(t)

	w := &recordingWriter{}
	d := NewDebouncer(w, 30*time.Millisecond, nil)

	d.Submit("a", map[string]any{"v": 1})
	d.Submit("b", map[string]any{"v": 2})

	require.Eventually(t, func() bool { return len(w.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
	d.Stop(context.Background())
}

func TestDebouncer_FlushAndStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	w := &recordingWriter{}
	d := NewDebouncer(w, time.Hour, nil)

	d.Submit("a", map[string]any{"v": 1})
	d.Submit("b", map[string]any{"v": 2})

	require.True(t, d.FlushForm(context.Background(), "a"))
	require.True(t, d.FlushForm(context.Background(), "missing"))
	assert.Len(t, w.snapshot(), 1)

	d.Stop(context.Background())
	assert.Len(t, w.snapshot(), 2)
	assert.False(t, d.Submit("c", map[string]any{}))
}
