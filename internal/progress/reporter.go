package progress

import (
	"io"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// UnknownTotal marks a task whose size is not known up front.
const UnknownTotal int64 = -1

// Options configures the progress reporter.
type Options struct {
	// Output is where bars are rendered.
	// Default: os.Stderr
	Output io.Writer

	// Width is the bar width in columns.
	// Default: 40
	Width int

	// RefreshRate is how often bars are redrawn.
	// Default: 200ms
	RefreshRate time.Duration
}

// Task is a single tracked transfer.
type Task struct {
	name    string
	total   atomic.Int64
	current atomic.Int64
	bar     *mpb.Bar
}

// Name returns the task's file name.
func (t *Task) Name() string { return t.name }

// Snapshot is a point-in-time view of a task.
type Snapshot struct {
	Name      string
	Total     int64
	Completed int64
}

// Reporter is a multi-task progress surface keyed by file name.
//
// One Reporter is shared by every worker of a process and reused across
// batches through Flush. All methods are safe for concurrent use; a nil
// *Reporter ignores every call.
type Reporter struct {
	container *mpb.Progress

	mu    sync.Mutex
	tasks map[string]*Task
}

// NewReporter creates a new progress reporter.
func NewReporter(opts Options) *Reporter {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if opts.Width <= 0 {
		opts.Width = 40
	}
	if opts.RefreshRate <= 0 {
		opts.RefreshRate = 200 * time.Millisecond
	}

	return &Reporter{
		container: mpb.New(
			mpb.WithOutput(opts.Output),
			mpb.WithWidth(opts.Width),
			mpb.WithRefreshRate(opts.RefreshRate),
		),
		tasks: make(map[string]*Task),
	}
}

// Add registers a task for name. A task already registered under the same
// name is removed first.
func (r *Reporter) Add(name string, total int64) *Task {
	if r == nil {
		return nil
	}

	barTotal := total
	if total < 0 {
		barTotal = 0
	}

	t := &Task{name: name}
	t.total.Store(total)
	t.bar = r.container.AddBar(barTotal,
		mpb.BarRemoveOnComplete(),
		mpb.PrependDecorators(
			decor.Name(name, decor.WCSyncSpaceR),
		),
		mpb.AppendDecorators(
			decor.CountersKibiByte("% .1f / % .1f", decor.WCSyncSpace),
			decor.Percentage(decor.WCSyncSpace),
		),
	)

	r.mu.Lock()
	old := r.tasks[name]
	r.tasks[name] = t
	r.mu.Unlock()

	if old != nil {
		old.bar.Abort(true)
	}
	return t
}

// SetTotal sets the size of a task created with UnknownTotal. It has no
// effect on tasks whose total is already known.
func (r *Reporter) SetTotal(t *Task, total int64) {
	if r == nil || t == nil || total < 0 {
		return
	}
	if !t.total.CompareAndSwap(UnknownTotal, total) {
		return
	}
	t.bar.SetTotal(total, false)
}

// Update sets the cumulative completed byte count of t.
func (r *Reporter) Update(t *Task, completed int64) {
	if r == nil || t == nil {
		return
	}
	t.current.Store(completed)
	t.bar.SetCurrent(completed)
}

// Complete marks t as finished. Tasks with an unknown total take their
// current count as the total.
func (r *Reporter) Complete(t *Task) {
	if r == nil || t == nil {
		return
	}
	total := t.total.Load()
	if total < 0 {
		t.bar.SetTotal(-1, true)
		return
	}
	t.bar.SetCurrent(total)
}

// Remove drops t from the surface.
func (r *Reporter) Remove(t *Task) {
	if r == nil || t == nil {
		return
	}
	r.mu.Lock()
	if r.tasks[t.name] == t {
		delete(r.tasks, t.name)
	}
	r.mu.Unlock()
	t.bar.Abort(true)
}

// Flush removes every task. Call it before starting an unrelated batch.
func (r *Reporter) Flush() {
	if r == nil {
		return
	}
	r.mu.Lock()
	tasks := r.tasks
	r.tasks = make(map[string]*Task)
	r.mu.Unlock()

	for _, t := range tasks {
		t.bar.Abort(true)
	}
}

// Len returns the number of registered tasks.
func (r *Reporter) Len() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// Snapshot returns the registered tasks sorted by name.
func (r *Reporter) Snapshot() []Snapshot {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	out := make([]Snapshot, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, Snapshot{Name: t.name, Total: t.total.Load(), Completed: t.current.Load()})
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Close flushes all tasks and waits for the renderer to stop.
func (r *Reporter) Close() {
	if r == nil {
		return
	}
	r.Flush()
	r.container.Wait()
}

// FormatBytes formats bytes as a human-readable IEC string (e.g. "1.5 KiB").
func FormatBytes(b int64) string {
	if b < 0 {
		return "unknown"
	}
	return humanize.IBytes(uint64(b))
}

// ParseBytes parses a human-readable byte string. IEC suffixes (KiB, MiB)
// are powers of 1024, SI suffixes (KB, MB) powers of 1000.
func ParseBytes(s string) (int64, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, err
	}
	return int64(n), nil
}
