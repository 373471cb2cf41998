/*
Package registry keeps the display surfaces of this node and the renderer
connectors attached to them.

Key Architectural Concepts:
  - Surfaces: every display target is an isolated surface.Surface bound to
    the shared bus; it owns its list, its dialog and its renderer sessions.
  - Addressing: a surface is reachable by its SurfaceID and, optionally, by a
    unique logical name. Producers target either. Opening a known name hands
    back the surface already registered under it.
  - Reclamation: ephemeral surfaces (opened through the API) are evicted by a
    janitor once nobody renders them; pinned surfaces (from configuration)
    live until shutdown.
*/
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/webitel/im-notice-service/internal/domain/bus"
	"github.com/webitel/im-notice-service/internal/domain/dialog"
	"github.com/webitel/im-notice-service/internal/domain/model"
	"github.com/webitel/im-notice-service/internal/domain/surface"
)

var ErrSurfaceNotFound = errors.New("registry: surface not found")

// Registrar defines the gateway for surface management.
type Registrar interface {
	Open(name string, pinned bool) (*surface.Surface, error)
	Lookup(id model.SurfaceID) (*surface.Surface, bool)
	LookupName(name string) (*surface.Surface, bool)
	Resolve(ref string) (*surface.Surface, error)
	Unregister(id model.SurfaceID) bool
	Connect(ctx context.Context, s *surface.Surface, meta ConnectMetadata) Connector
	Disconnect(s *surface.Surface, conn Connector)
	Count() int
	Stats() Stats
	Shutdown()
}

var _ Registrar = (*Registry)(nil)

type entry struct {
	surface *surface.Surface
	// pinned only ever goes from false to true
	pinned atomic.Bool
}

type Registry struct {
	// surfaces stores Map[model.SurfaceID]*entry. Optimized for [READ_HEAVY] workloads.
	surfaces sync.Map
	// names maps a logical name to its SurfaceID
	names sync.Map
	// openMu makes name reservation and registration atomic
	openMu sync.Mutex

	bus     bus.Subscriber
	tickets dialog.TicketService
	logger  *slog.Logger
	onDrop  func(pinned bool)

	config struct {
		evictionInterval time.Duration
		idleTimeout      time.Duration
		mailboxSize      int
		sendTimeout      time.Duration
	}

	startedAt time.Time
	doneCh    chan struct{}
	stopOnce  sync.Once
}

func NewRegistry(sub bus.Subscriber, opts ...Option) *Registry {
	r := &Registry{
		bus:       sub,
		logger:    slog.New(slog.DiscardHandler),
		startedAt: time.Now(),
		doneCh:    make(chan struct{}),
	}
	r.config.evictionInterval = 5 * time.Minute
	r.config.idleTimeout = 15 * time.Minute
	r.config.mailboxSize = 16
	r.config.sendTimeout = 100 * time.Millisecond

	for _, opt := range opts {
		opt(r)
	}

	if r.config.evictionInterval > 0 {
		go r.janitor()
	}
	return r
}

// Open returns the surface registered under name, creating and binding it
// on first use. Reopening a name never unpins it; pinned=true pins an
// existing ephemeral surface. An empty name yields an anonymous surface
// reachable only by id.
func (r *Registry) Open(name string, pinned bool) (*surface.Surface, error) {
	r.openMu.Lock()
	defer r.openMu.Unlock()

	if name != "" {
		if e, ok := r.lookupEntry(name); ok {
			if pinned && !e.pinned.Swap(true) {
				r.logger.Info("SURFACE_PINNED", "surface_id", e.surface.ID().String(), "surface", name)
			}
			return e.surface, nil
		}
	}

	e := &entry{}
	e.pinned.Store(pinned)
	e.surface = surface.New(model.NewSurfaceID(), name, surface.Options{
		Tickets:     r.tickets,
		SendTimeout: r.config.sendTimeout,
		Logger:      r.logger,
		OnDrop: func(string) {
			if r.onDrop != nil {
				r.onDrop(e.pinned.Load())
			}
		},
	})
	s := e.surface
	s.Bind(r.bus)

	r.surfaces.Store(s.ID(), e)
	if name != "" {
		r.names.Store(name, s.ID())
	}

	r.logger.Info("SURFACE_OPENED", "surface_id", s.ID().String(), "surface", name, "pinned", pinned)
	return s, nil
}

func (r *Registry) lookupEntry(name string) (*entry, bool) {
	id, ok := r.names.Load(name)
	if !ok {
		return nil, false
	}
	val, ok := r.surfaces.Load(id)
	if !ok {
		return nil, false
	}
	return val.(*entry), true
}

func (r *Registry) Lookup(id model.SurfaceID) (*surface.Surface, bool) {
	if val, ok := r.surfaces.Load(id); ok {
		return val.(*entry).surface, true
	}
	return nil, false
}

func (r *Registry) LookupName(name string) (*surface.Surface, bool) {
	if val, ok := r.names.Load(name); ok {
		return r.Lookup(val.(model.SurfaceID))
	}
	return nil, false
}

// Resolve accepts either a surface id or a surface name.
func (r *Registry) Resolve(ref string) (*surface.Surface, error) {
	if id, err := model.ParseSurfaceID(ref); err == nil {
		if s, ok := r.Lookup(id); ok {
			return s, nil
		}
	}
	if s, ok := r.LookupName(ref); ok {
		return s, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrSurfaceNotFound, ref)
}

// Unregister performs [GRACEFUL_RECLAMATION]: the surface leaves the bus
// and every renderer is closed.
func (r *Registry) Unregister(id model.SurfaceID) bool {
	val, ok := r.surfaces.LoadAndDelete(id)
	if !ok {
		return false
	}
	s := val.(*entry).surface
	if s.Name() != "" {
		r.names.CompareAndDelete(s.Name(), id)
	}
	s.Stop()

	r.logger.Info("SURFACE_CLOSED", "surface_id", id.String(), "surface", s.Name())
	return true
}

// Connect attaches a new renderer connector to s.
func (r *Registry) Connect(ctx context.Context, s *surface.Surface, meta ConnectMetadata) Connector {
	conn := NewConnector(ctx, s.ID(), r.config.mailboxSize, meta)
	s.Attach(conn)
	return conn
}

// Disconnect detaches and closes conn.
func (r *Registry) Disconnect(s *surface.Surface, conn Connector) {
	s.Detach(conn.GetID())
	conn.Close()
}

func (r *Registry) each(fn func(e *entry)) {
	r.surfaces.Range(func(_, val any) bool {
		fn(val.(*entry))
		return true
	})
}

// janitor reclaims ephemeral surfaces nobody renders anymore.
func (r *Registry) janitor() {
	ticker := time.NewTicker(r.config.evictionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.doneCh:
			return
		case <-ticker.C:
			r.evictIdle()
		}
	}
}

func (r *Registry) evictIdle() int {
	var idle []model.SurfaceID
	r.each(func(e *entry) {
		if !e.pinned.Load() && e.surface.IsIdle(r.config.idleTimeout) {
			idle = append(idle, e.surface.ID())
		}
	})
	for _, id := range idle {
		r.Unregister(id)
	}
	if len(idle) > 0 {
		r.logger.Info("SURFACES_EVICTED", "count", len(idle))
	}
	return len(idle)
}

// Shutdown stops the janitor and closes every surface.
func (r *Registry) Shutdown() {
	r.stopOnce.Do(func() {
		close(r.doneCh)
		var ids []model.SurfaceID
		r.each(func(e *entry) { ids = append(ids, e.surface.ID()) })
		for _, id := range ids {
			r.Unregister(id)
		}
	})
}

// Count returns the number of registered surfaces.
func (r *Registry) Count() int {
	n := 0
	r.surfaces.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

type Stats struct {
	TotalSurfaces int            `json:"total_surfaces"`
	TotalSessions int            `json:"total_sessions"`
	Uptime        time.Duration  `json:"uptime"`
	Surfaces      []SurfaceStats `json:"surfaces,omitempty"`
}

type SurfaceStats struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Pinned   bool   `json:"pinned"`
	Messages int    `json:"messages"`
	Sessions int    `json:"sessions"`
	Dropped  uint64 `json:"dropped"`
}

func (r *Registry) Stats() Stats {
	st := Stats{Uptime: time.Since(r.startedAt)}
	r.each(func(e *entry) {
		ss := SurfaceStats{
			ID:       e.surface.ID().String(),
			Name:     e.surface.Name(),
			Pinned:   e.pinned.Load(),
			Messages: e.surface.Len(),
			Sessions: e.surface.Sessions(),
			Dropped:  e.surface.Dropped(),
		}
		st.Surfaces = append(st.Surfaces, ss)
		st.TotalSessions += ss.Sessions
	})
	st.TotalSurfaces = len(st.Surfaces)
	sort.Slice(st.Surfaces, func(i, j int) bool { return st.Surfaces[i].ID < st.Surfaces[j].ID })
	return st
}
