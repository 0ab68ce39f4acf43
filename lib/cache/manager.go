package cache

import (
	"context"
	"errors"
	"fmt"
	"github.com/VictoriaMetrics/metrics"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/tenkdog/jarvis/lib/store"
	"golang.org/x/sync/errgroup"
	"io"
	"sync"
	"time"
)

// Manager owns the datasets of the process and is the single entry point for consumers.
// Datasets are addressed by name; operations on unknown names are logged and ignored so
// consumers never have to handle errors from the cache layer.
type Manager struct {
	now     func() time.Time
	metrics *metrics.Set

	datasets *xsync.MapOf[string, *Dataset]

	// names keeps the registration order for status reports and flushes
	mu    sync.Mutex
	names []string
}

// NewManager creates an empty manager. A nil clock uses time.Now.
func NewManager(now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{
		now:      now,
		metrics:  metrics.NewSet(),
		datasets: xsync.NewMapOf[string, *Dataset](),
	}
}

// Register creates a dataset on top of s and adds it to the manager
func (m *Manager) Register(cfg Config, s store.IDocumentStore) (*Dataset, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("dataset name must not be empty")
	}
	d := NewDataset(cfg, s, m.now, m.metrics)
	if _, loaded := m.datasets.LoadOrStore(cfg.Name, d); loaded {
		return nil, fmt.Errorf("dataset %s is already registered", cfg.Name)
	}

	m.mu.Lock()
	m.names = append(m.names, cfg.Name)
	m.mu.Unlock()

	Logger.Infof("registered dataset %s at %s (ttl %s, debounce %s)", cfg.Name, cfg.Locator, cfg.TTL, cfg.Debounce)
	return d, nil
}

// Dataset returns the dataset registered under name
func (m *Manager) Dataset(name string) (*Dataset, bool) {
	return m.datasets.Load(name)
}

// Names returns the names of all datasets in registration order
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.names...)
}

// --------------------------------------------------------------------------
// Consumer Interface
// --------------------------------------------------------------------------

// Get returns a copy of the value at key of the named dataset (see Dataset.Get)
func (m *Manager) Get(ctx context.Context, dataset, key string) any {
	d, ok := m.lookup(dataset)
	if !ok {
		return nil
	}
	return d.Get(ctx, key)
}

// Update stores value at key of the named dataset (see Dataset.Update)
func (m *Manager) Update(ctx context.Context, dataset, key string, value any) {
	if d, ok := m.lookup(dataset); ok {
		d.Update(ctx, key, value)
	}
}

// Modify applies fn to the value at key of the named dataset (see Dataset.Modify)
func (m *Manager) Modify(ctx context.Context, dataset, key string, fn func(current any) (any, bool)) bool {
	d, ok := m.lookup(dataset)
	if !ok {
		return false
	}
	return d.Modify(ctx, key, fn)
}

// OpportunisticFlush writes back every dataset whose debounce window passed. It is meant
// to be called at the start and at the end of every inbound request.
func (m *Manager) OpportunisticFlush(ctx context.Context) {
	m.each(func(d *Dataset) {
		d.FlushIfDue(ctx, false)
	})
}

// RefreshAll refreshes every stale dataset
func (m *Manager) RefreshAll(ctx context.Context) {
	m.each(func(d *Dataset) {
		d.Refresh(ctx, false)
	})
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// Initialize loads all datasets in parallel. It returns once every dataset was loaded (or
// fell back to its defaults) or the timeout elapsed, whichever comes first.
func (m *Manager) Initialize(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	m.each(func(d *Dataset) {
		g.Go(func() error {
			o := d.Refresh(gctx, true)
			Logger.Infof("initial load of dataset %s: %s", d.Name(), o)
			return nil
		})
	})
	_ = g.Wait()
	return ctx.Err()
}

// FlushAll writes back every dirty dataset regardless of the debounce window, in parallel.
// It is used on shutdown and by administrative tools. The returned error lists the
// datasets that are still dirty afterwards.
func (m *Manager) FlushAll(ctx context.Context) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	m.each(func(d *Dataset) {
		g.Go(func() error {
			switch o := d.FlushIfDue(ctx, true); o {
			case OutcomeWritten, OutcomeClean:
			default:
				mu.Lock()
				errs = append(errs, fmt.Errorf("dataset %s not flushed: %s", d.Name(), o))
				mu.Unlock()
			}
			return nil
		})
	})
	_ = g.Wait()
	return errors.Join(errs...)
}

// Status returns the diagnostics of all datasets in registration order
func (m *Manager) Status() []Status {
	out := make([]Status, 0, len(m.Names()))
	m.each(func(d *Dataset) {
		out = append(out, d.Status())
	})
	return out
}

// WritePrometheus writes the counters of all datasets in the Prometheus text format
func (m *Manager) WritePrometheus(w io.Writer) {
	m.metrics.WritePrometheus(w)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (m *Manager) lookup(name string) (*Dataset, bool) {
	d, ok := m.datasets.Load(name)
	if !ok {
		Logger.Warningf("unknown dataset %s", name)
	}
	return d, ok
}

// each calls fn for every dataset in registration order
func (m *Manager) each(fn func(d *Dataset)) {
	for _, name := range m.Names() {
		if d, ok := m.datasets.Load(name); ok {
			fn(d)
		}
	}
}
