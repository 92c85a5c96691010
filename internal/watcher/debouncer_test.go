package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWindow = 20 * time.Millisecond

func recvBatch(t *testing.T, d *debouncer) []FileEvent {
	t.Helper()
	select {
	case batch := <-d.Output():
		return batch
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timed out waiting for debounced batch")
		return nil
	}
}

func TestDebouncer_SingleEventFlushesAfterWindow(t *testing.T) {
	d := newDebouncer(testWindow)
	defer d.Stop()

	d.add(FileEvent{Path: "a.txt", Operation: OpCreate})

	batch := recvBatch(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, OpCreate, batch[0].Operation)
}

func TestDebouncer_CreateThenModifyCoalescesToCreate(t *testing.T) {
	d := newDebouncer(testWindow)
	defer d.Stop()

	d.add(FileEvent{Path: "a.txt", Operation: OpCreate})
	d.add(FileEvent{Path: "a.txt", Operation: OpModify})

	batch := recvBatch(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, OpCreate, batch[0].Operation)
}

func TestDebouncer_CreateThenDeleteCancelsOut(t *testing.T) {
	d := newDebouncer(testWindow)
	defer d.Stop()

	d.add(FileEvent{Path: "a.txt", Operation: OpCreate})
	d.add(FileEvent{Path: "a.txt", Operation: OpDelete})
	// A second, unrelated event so the flush still fires with something in it.
	d.add(FileEvent{Path: "b.txt", Operation: OpCreate})

	batch := recvBatch(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, "b.txt", batch[0].Path)
}

func TestDebouncer_ModifyThenDeleteCoalescesToDelete(t *testing.T) {
	d := newDebouncer(testWindow)
	defer d.Stop()

	d.add(FileEvent{Path: "a.txt", Operation: OpModify})
	d.add(FileEvent{Path: "a.txt", Operation: OpDelete})

	batch := recvBatch(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, OpDelete, batch[0].Operation)
}

func TestDebouncer_DeleteThenCreateCoalescesToModify(t *testing.T) {
	d := newDebouncer(testWindow)
	defer d.Stop()

	d.add(FileEvent{Path: "a.txt", Operation: OpDelete})
	d.add(FileEvent{Path: "a.txt", Operation: OpCreate})

	batch := recvBatch(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, OpModify, batch[0].Operation)
}

func TestDebouncer_ThreeEventChainCoalescesAgainstRunningState(t *testing.T) {
	// Modify -> Delete coalesces to Delete; Delete -> Create then applies
	// DELETE+CREATE=MODIFY against that Delete, not against the original
	// Modify, so the final result must be Modify.
	d := newDebouncer(testWindow)
	defer d.Stop()

	d.add(FileEvent{Path: "a.txt", Operation: OpModify})
	d.add(FileEvent{Path: "a.txt", Operation: OpDelete})
	d.add(FileEvent{Path: "a.txt", Operation: OpCreate})

	batch := recvBatch(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, OpModify, batch[0].Operation)
}

func TestDebouncer_CreateModifyDeleteChainCancelsOut(t *testing.T) {
	d := newDebouncer(testWindow)
	defer d.Stop()

	d.add(FileEvent{Path: "a.txt", Operation: OpCreate})
	d.add(FileEvent{Path: "a.txt", Operation: OpModify})
	d.add(FileEvent{Path: "a.txt", Operation: OpDelete})
	d.add(FileEvent{Path: "b.txt", Operation: OpCreate})

	batch := recvBatch(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, "b.txt", batch[0].Path)
}

func TestDebouncer_DistinctPathsFlushAsOneBatch(t *testing.T) {
	d := newDebouncer(testWindow)
	defer d.Stop()

	d.add(FileEvent{Path: "a.txt", Operation: OpCreate})
	d.add(FileEvent{Path: "b.txt", Operation: OpModify})

	batch := recvBatch(t, d)
	assert.Len(t, batch, 2)
}

func TestDebouncer_RapidEventsResetTheFlushTimer(t *testing.T) {
	d := newDebouncer(testWindow)
	defer d.Stop()

	d.add(FileEvent{Path: "a.txt", Operation: OpCreate})
	time.Sleep(testWindow / 2)
	d.add(FileEvent{Path: "a.txt", Operation: OpModify})

	// Still within the (reset) window from the second add; nothing yet.
	select {
	case <-d.Output():
		t.Fatal("flushed before the debounce window elapsed")
	case <-time.After(testWindow / 2):
	}

	batch := recvBatch(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, OpCreate, batch[0].Operation)
}

func TestDebouncer_StopClosesOutputChannel(t *testing.T) {
	d := newDebouncer(testWindow)
	d.Stop()

	_, ok := <-d.Output()
	assert.False(t, ok)
}

func TestDebouncer_AddAfterStopIsNoop(t *testing.T) {
	d := newDebouncer(testWindow)
	d.Stop()

	assert.NotPanics(t, func() {
		d.add(FileEvent{Path: "a.txt", Operation: OpCreate})
	})
}
