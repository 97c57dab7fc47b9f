package delegate

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitFor(t *testing.T, ch <-chan []Result) []Result {
	t.Helper()
	select {
	case results := <-ch:
		return results
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for group callback")
		return nil
	}
}

func TestCallbackFiresExactlyOnce(t *testing.T) {
	d := New(4)

	var calls atomic.Int64
	done := make(chan []Result, 1)
	d.QueueTasks(func(results []Result) {
		calls.Add(1)
		done <- results
	},
		func(Context) Result { return Ok(1) },
		func(Context) Result { return Ok(2) },
		func(Context) Result { return Ok(3) },
	)

	results := waitFor(t, done)
	assert.Len(t, results, 3)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(1), calls.Load())
}

func TestEmptyResultsFiltered(t *testing.T) {
	d := New(4)

	done := make(chan []Result, 1)
	d.QueueTasks(func(results []Result) { done <- results },
		func(Context) Result { return Ok("kept") },
		func(Context) Result { return Empty() },
		func(Context) Result { return Errored(errors.New("boom")) },
	)

	results := waitFor(t, done)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.False(t, r.IsEmpty())
	}
}

func TestExtraTasksExtendGroup(t *testing.T) {
	d := New(4)

	done := make(chan []Result, 1)
	d.QueueTasks(func(results []Result) { done <- results },
		func(ctx Context) Result {
			ctx.Delegator.QueueExtraTasks(ctx.Group,
				func(Context) Result { return Ok("child-a") },
				func(Context) Result { return Ok("child-b") },
			)
			return Empty()
		},
	)

	results := waitFor(t, done)
	assert.Len(t, results, 2, "children counted, parent's empty filtered")
}

func TestExternalTaskDefersCompletion(t *testing.T) {
	d := New(4)

	done := make(chan []Result, 1)
	release := make(chan *ExternalTaskHandle, 1)
	d.QueueTasks(func(results []Result) { done <- results },
		func(ctx Context) Result {
			release <- ctx.Delegator.QueueExtraExternalTask(ctx.Group)
			return Empty()
		},
	)

	handle := <-release
	select {
	case <-done:
		t.Fatal("group completed before external task finished")
	case <-time.After(50 * time.Millisecond):
	}

	handle.Finish(Ok("external"))
	results := waitFor(t, done)
	require.Len(t, results, 1)
	assert.Equal(t, "external", results[0].Value())
}

func TestExternalFinishTwicePanics(t *testing.T) {
	d := New(1)

	done := make(chan []Result, 1)
	handle := d.QueueExternalTask(func(results []Result) { done <- results })
	handle.Finish(Ok(1))
	waitFor(t, done)

	assert.Panics(t, func() { handle.Finish(Ok(2)) })
}

func TestNilExternalHandleIsSafe(t *testing.T) {
	var handle *ExternalTaskHandle
	assert.NotPanics(t, func() { handle.Finish(Ok(1)) })
}

func TestAdmissionCapQueuesFIFO(t *testing.T) {
	d := New(1)

	var mu sync.Mutex
	var order []int

	gate := make(chan struct{})
	done := make(chan []Result, 1)

	tasks := make([]Task, 0, 4)
	for i := 0; i < 4; i++ {
		n := i
		tasks = append(tasks, func(Context) Result {
			if n == 0 {
				<-gate
			}
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
			return Ok(n)
		})
	}

	d.QueueTasks(func(results []Result) { done <- results }, tasks...)

	// Only the first task is admitted; the rest queue behind it.
	time.Sleep(50 * time.Millisecond)
	close(gate)

	waitFor(t, done)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2, 3}, order)
}

func TestRunningCounter(t *testing.T) {
	d := New(2)

	gate := make(chan struct{})
	done := make(chan []Result, 1)
	d.QueueTasks(func(results []Result) { done <- results },
		func(Context) Result { <-gate; return Ok(1) },
		func(Context) Result { <-gate; return Ok(2) },
	)

	assert.Eventually(t, func() bool { return d.Running() == 2 },
		time.Second, 10*time.Millisecond)
	close(gate)
	waitFor(t, done)
	assert.Eventually(t, func() bool { return d.Running() == 0 },
		time.Second, 10*time.Millisecond)
}

func TestResultAccessors(t *testing.T) {
	empty := Empty()
	assert.True(t, empty.IsEmpty())
	assert.False(t, empty.IsOK())

	errRes := Errored(errors.New("boom"))
	assert.False(t, errRes.IsEmpty())
	assert.False(t, errRes.IsOK())
	assert.EqualError(t, errRes.Err(), "boom")

	ok := Ok(42)
	assert.True(t, ok.IsOK())
	assert.Equal(t, 42, ok.Value())
	assert.NoError(t, ok.Err())
}
