// Package delegate schedules short closures concurrently up to an admission
// cap, grouping related tasks so that one aggregated callback fires once
// every member of the group has produced a Result. Tasks may enqueue further
// siblings into their own group, or hand completion off to an external event
// source through a one-shot handle.
package delegate

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

var (
	tasksSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "delegate_tasks_submitted_total",
		Help: "Total number of tasks submitted to the delegator",
	})

	tasksRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "delegate_tasks_running",
		Help: "Number of tasks currently executing",
	})

	groupsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "delegate_groups_completed_total",
		Help: "Total number of task groups whose callback has fired",
	})
)

// GroupID keys a group of tasks sharing one result callback.
type GroupID uint64

// Context is passed to every running task so it can enqueue siblings or
// external completions into its own group.
type Context struct {
	Group     GroupID
	Delegator *Delegator
}

// Task is a unit of work. A task that fans out returns Empty and lets its
// children or external handles contribute the group's results.
type Task func(ctx Context) Result

// ResultCallback receives the group's accumulated results, in arrival order,
// with Empty results filtered out. It is invoked exactly once per group.
type ResultCallback func(results []Result)

type boundTask struct {
	group GroupID
	run   Task
}

type group struct {
	expecting  int
	results    []Result
	onComplete ResultCallback
}

// Delegator runs tasks on per-task goroutines, admitting at most
// maxConcurrent at a time; excess submissions queue FIFO.
type Delegator struct {
	sem *semaphore.Weighted

	taskMu sync.Mutex
	queue  []boundTask

	groupsMu sync.Mutex
	groups   map[GroupID]*group

	nextGroup atomic.Uint64
	running   atomic.Int64
}

// New creates a Delegator admitting up to maxConcurrent tasks at once.
func New(maxConcurrent int) *Delegator {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Delegator{
		sem:    semaphore.NewWeighted(int64(maxConcurrent)),
		groups: make(map[GroupID]*group),
	}
}

// Running reports the number of currently executing tasks.
func (d *Delegator) Running() int {
	return int(d.running.Load())
}

// QueueTasks registers a new group expecting one result per initial task and
// submits the tasks. The callback fires once every member has resolved.
func (d *Delegator) QueueTasks(onComplete ResultCallback, tasks ...Task) GroupID {
	d.taskMu.Lock()
	defer d.taskMu.Unlock()

	id := d.newGroup(onComplete, len(tasks))
	d.tryRun(id, tasks)
	return id
}

// QueueExtraTasks adds tasks to an existing group, raising its expectation.
// Safe to call from within a running task of the same group.
func (d *Delegator) QueueExtraTasks(id GroupID, tasks ...Task) {
	d.taskMu.Lock()
	defer d.taskMu.Unlock()

	d.groupsMu.Lock()
	g, ok := d.groups[id]
	if !ok {
		d.groupsMu.Unlock()
		log.Warn().Uint64("group", uint64(id)).Msg("Extra tasks queued for unknown group")
		return
	}
	g.expecting += len(tasks)
	d.groupsMu.Unlock()

	d.tryRun(id, tasks)
}

// QueueExternalTask registers a single-task group whose result arrives by
// calling Finish on the returned handle from any goroutine.
func (d *Delegator) QueueExternalTask(onComplete ResultCallback) *ExternalTaskHandle {
	d.groupsMu.Lock()
	id := d.newGroupLocked(onComplete, 1)
	d.groupsMu.Unlock()

	return &ExternalTaskHandle{delegator: d, group: id}
}

// QueueExtraExternalTask raises a group's expectation by one and returns a
// handle whose Finish contributes the extra result.
func (d *Delegator) QueueExtraExternalTask(id GroupID) *ExternalTaskHandle {
	d.groupsMu.Lock()
	defer d.groupsMu.Unlock()

	g, ok := d.groups[id]
	if !ok {
		log.Warn().Uint64("group", uint64(id)).Msg("External task queued for unknown group")
		return nil
	}
	g.expecting++
	return &ExternalTaskHandle{delegator: d, group: id}
}

// newGroup registers a group; caller must hold taskMu but not groupsMu.
func (d *Delegator) newGroup(onComplete ResultCallback, expecting int) GroupID {
	d.groupsMu.Lock()
	defer d.groupsMu.Unlock()
	return d.newGroupLocked(onComplete, expecting)
}

func (d *Delegator) newGroupLocked(onComplete ResultCallback, expecting int) GroupID {
	id := GroupID(d.nextGroup.Add(1))
	d.groups[id] = &group{
		expecting:  expecting,
		results:    make([]Result, 0, expecting),
		onComplete: onComplete,
	}
	return id
}

// tryRun starts or enqueues tasks; caller must hold taskMu.
func (d *Delegator) tryRun(id GroupID, tasks []Task) {
	for _, task := range tasks {
		tasksSubmitted.Inc()
		bt := boundTask{group: id, run: task}
		if !d.sem.TryAcquire(1) {
			d.queue = append(d.queue, bt)
			continue
		}
		go d.worker(bt)
	}
}

// worker executes a task and then drains the pending queue while it still
// holds an admission permit, preserving FIFO order.
func (d *Delegator) worker(bt boundTask) {
	for {
		d.running.Add(1)
		tasksRunning.Inc()

		result := bt.run(Context{Group: bt.group, Delegator: d})
		d.processResult(bt.group, result)

		d.running.Add(-1)
		tasksRunning.Dec()

		d.taskMu.Lock()
		if len(d.queue) == 0 {
			d.sem.Release(1)
			d.taskMu.Unlock()
			return
		}
		bt = d.queue[0]
		d.queue = d.queue[1:]
		d.taskMu.Unlock()
	}
}

// processResult appends a result to its group and fires the callback once
// the group is complete. The callback runs outside the group lock so it may
// queue new groups freely.
func (d *Delegator) processResult(id GroupID, result Result) {
	d.groupsMu.Lock()
	g, ok := d.groups[id]
	if !ok {
		d.groupsMu.Unlock()
		log.Warn().Uint64("group", uint64(id)).Msg("Result for unknown group dropped")
		return
	}

	g.results = append(g.results, result)
	if len(g.results) < g.expecting {
		d.groupsMu.Unlock()
		return
	}

	delete(d.groups, id)
	d.groupsMu.Unlock()

	filtered := g.results[:0]
	for _, r := range g.results {
		if !r.IsEmpty() {
			filtered = append(filtered, r)
		}
	}
	groupsCompleted.Inc()
	g.onComplete(filtered)
}

// ExternalTaskHandle is a one-shot completion for a task resolved outside
// the delegator's workers, typically by the HTTP transfer driver.
type ExternalTaskHandle struct {
	delegator *Delegator
	group     GroupID
	finished  atomic.Bool
}

// Finish contributes the result to the handle's group. Calling Finish twice
// on the same handle is a programmer error and panics.
func (h *ExternalTaskHandle) Finish(result Result) {
	if h == nil {
		return
	}
	if !h.finished.CompareAndSwap(false, true) {
		panic("delegate: Finish called twice on external task handle")
	}
	h.delegator.processResult(h.group, result)
}
