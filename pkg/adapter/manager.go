package adapter

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"nexus-ai-be/internal/metrics"
	"nexus-ai-be/internal/pkg/logger"
	"nexus-ai-be/pkg/events"
	"nexus-ai-be/pkg/llm"

	"golang.org/x/sync/singleflight"
)

const module = "AdapterManager"

// Loader attaches an adapter to the base model and returns a backend that
// generates through it.
type Loader interface {
	Load(ctx context.Context, desc Descriptor, baseModel string) (llm.Backend, error)
	Unload(ctx context.Context, desc Descriptor) error
}

type entry struct {
	state  State
	handle *Handle
	done   chan struct{} // closed when the current transition finishes
}

// Manager owns the adapter registry. All state transitions for an id happen
// under mu; reads go through an immutable snapshot of ready handles.
type Manager struct {
	root             string
	defaultBaseModel string
	loader           Loader
	logger           logger.ILogger
	events           events.Publisher
	loadTimeout      time.Duration
	now              func() time.Time

	mu       sync.Mutex
	entries  map[string]*entry
	group    singleflight.Group
	snapshot atomic.Pointer[map[string]*Handle]
}

type Option func(*Manager)

func WithEvents(p events.Publisher) Option {
	return func(m *Manager) { m.events = p }
}

func WithLoadTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.loadTimeout = d
		}
	}
}

func WithDefaultBaseModel(model string) Option {
	return func(m *Manager) { m.defaultBaseModel = model }
}

func NewManager(root string, loader Loader, log logger.ILogger, opts ...Option) *Manager {
	m := &Manager{
		root:             root,
		defaultBaseModel: "llama3",
		loader:           loader,
		logger:           log,
		loadTimeout:      5 * time.Minute,
		now:              time.Now,
		entries:          make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	empty := map[string]*Handle{}
	m.snapshot.Store(&empty)
	return m
}

func (m *Manager) Root() string {
	return m.root
}

// ListAvailable scans the adapter root, newest first.
func (m *Manager) ListAvailable(_ context.Context) ([]Descriptor, error) {
	return Scan(m.root)
}

// Get is a non-blocking lookup of a ready handle.
func (m *Manager) Get(adapterID string) (*Handle, bool) {
	snap := *m.snapshot.Load()
	h, ok := snap[NormalizeID(adapterID)]
	return h, ok
}

// Loaded returns the ready handles, oldest first.
func (m *Manager) Loaded() []*Handle {
	snap := *m.snapshot.Load()
	handles := make([]*Handle, 0, len(snap))
	for _, h := range snap {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool {
		return handles[i].LoadedAt.Before(handles[j].LoadedAt)
	})
	return handles
}

// Status reports the registry state of an id.
func (m *Manager) Status(adapterID string) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[NormalizeID(adapterID)]; ok {
		return e.state
	}
	return StateAbsent
}

// Load returns the ready handle for an adapter stored under the root, loading
// it if needed. Concurrent callers for the same id share one load. The load
// itself is detached from ctx; a cancelled caller only stops waiting.
func (m *Manager) Load(ctx context.Context, adapterID, baseModel string) (*Handle, error) {
	name := NormalizeID(adapterID)
	if !ValidName(name) {
		return nil, fmt.Errorf("%w: %q", ErrAdapterNotFound, adapterID)
	}
	if h, ok := m.Get(name); ok {
		return h, nil
	}
	return m.acquire(ctx, name, filepath.Join(m.root, name), baseModel)
}

// LoadPath loads an adapter from an explicit directory. The directory name
// becomes the adapter id, so a second directory with the same name is
// rejected with ErrAdapterConflict while the first one is loaded.
func (m *Manager) LoadPath(ctx context.Context, path, baseModel string) (*Handle, error) {
	name := filepath.Base(filepath.Clean(path))
	if !ValidName(name) {
		return nil, fmt.Errorf("%w: %q", ErrAdapterNotFound, path)
	}

	h, ok := m.Get(name)
	if !ok {
		var err error
		if h, err = m.acquire(ctx, name, path, baseModel); err != nil {
			return nil, err
		}
	}
	if !samePath(h.Descriptor.Path, path) {
		return nil, fmt.Errorf("%w: %s is loaded from %s", ErrAdapterConflict, h.ID(), h.Descriptor.Path)
	}
	return h, nil
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

func (m *Manager) acquire(ctx context.Context, name, path, baseModel string) (*Handle, error) {
	ch := m.group.DoChan(name, func() (interface{}, error) {
		return m.load(name, path, baseModel)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Handle), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Manager) load(name, path, baseModel string) (*Handle, error) {
	// absent -> loading, waiting out an unload of the same id first
	for {
		m.mu.Lock()
		e, ok := m.entries[name]
		if !ok {
			break
		}
		if e.state == StateReady {
			m.mu.Unlock()
			return e.handle, nil
		}
		done := e.done
		m.mu.Unlock()
		<-done
	}

	e := &entry{state: StateLoading, done: make(chan struct{})}
	m.entries[name] = e
	m.mu.Unlock()

	start := m.now()
	handle, err := m.attach(path, baseModel)

	// loading -> ready | absent
	m.mu.Lock()
	if err != nil {
		delete(m.entries, name)
	} else {
		e.state = StateReady
		e.handle = handle
		m.publishLocked()
	}
	close(e.done)
	m.mu.Unlock()

	if err != nil {
		metrics.AdapterLoadsTotal.WithLabelValues("failed").Inc()
		m.logger.Error(module, "Adapter load failed", map[string]interface{}{
			"adapter": name,
			"error":   err,
		})
		if errors.Is(err, ErrAdapterLoadFailed) {
			m.emit(events.NewAdapterEvent(events.AdapterLoadFailed, idPrefix+name, map[string]interface{}{
				"error": err.Error(),
			}))
		}
		return nil, err
	}

	elapsed := m.now().Sub(start)
	metrics.AdapterLoadsTotal.WithLabelValues("ready").Inc()
	metrics.AdapterLoadDuration.Observe(elapsed.Seconds())
	m.logger.Info(module, "Adapter loaded", map[string]interface{}{
		"adapter":    name,
		"base_model": handle.BaseModel,
		"elapsed_ms": elapsed.Milliseconds(),
	})
	m.emit(events.NewAdapterEvent(events.AdapterLoaded, handle.ID(), map[string]interface{}{
		"base_model":      handle.BaseModel,
		"memory_estimate": handle.MemoryEstimate,
	}))
	return handle, nil
}

func (m *Manager) attach(path, baseModel string) (*Handle, error) {
	desc, err := Describe(path)
	if err != nil {
		return nil, err
	}

	if baseModel == "" {
		baseModel = desc.BaseModel
	}
	if baseModel == "" {
		baseModel = m.defaultBaseModel
	}
	if desc.BaseModel != "" && desc.BaseModel != baseModel {
		m.logger.Warn(module, "Adapter was trained on a different base model", map[string]interface{}{
			"adapter":    desc.Name,
			"trained_on": desc.BaseModel,
			"requested":  baseModel,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.loadTimeout)
	defer cancel()

	backend, err := m.loader.Load(ctx, desc, baseModel)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrAdapterLoadFailed, desc.Name, err)
	}
	return newHandle(desc, backend, baseModel, m.now()), nil
}

// Unload releases a ready adapter. It returns ErrAdapterNotFound when the id
// is absent. An in-flight load of the same id is awaited first.
func (m *Manager) Unload(ctx context.Context, adapterID string) error {
	name := NormalizeID(adapterID)

	var (
		e    *entry
		done chan struct{}
	)
	for {
		m.mu.Lock()
		var ok bool
		e, ok = m.entries[name]
		if !ok {
			m.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrAdapterNotFound, adapterID)
		}
		if e.state == StateReady {
			break
		}
		wait := e.done
		m.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	// ready -> unloading
	e.state = StateUnloading
	done = make(chan struct{})
	e.done = done
	handle := e.handle
	m.publishLocked()
	m.mu.Unlock()

	handle.release()

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.loadTimeout)
	if err := m.loader.Unload(rctx, handle.Descriptor); err != nil {
		m.logger.Warn(module, "Remote adapter unload failed, dropping handle anyway", map[string]interface{}{
			"adapter": name,
			"error":   err.Error(),
		})
	}
	cancel()

	// unloading -> absent
	m.mu.Lock()
	delete(m.entries, name)
	close(done)
	m.mu.Unlock()

	m.logger.Info(module, "Adapter unloaded", map[string]interface{}{"adapter": name})
	m.emit(events.NewAdapterEvent(events.AdapterUnloaded, handle.ID(), nil))
	return nil
}

// publishLocked swaps in a fresh snapshot of ready handles. mu must be held.
func (m *Manager) publishLocked() {
	snap := make(map[string]*Handle, len(m.entries))
	for name, e := range m.entries {
		if e.state == StateReady {
			snap[name] = e.handle
		}
	}
	m.snapshot.Store(&snap)
	metrics.AdaptersLoaded.Set(float64(len(snap)))
}

func (m *Manager) emit(event events.Event) {
	if m.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.events.Publish(ctx, event); err != nil {
		m.logger.Warn(module, "Failed to publish adapter event", map[string]interface{}{
			"event": event.EventType(),
			"error": err.Error(),
		})
	}
}
