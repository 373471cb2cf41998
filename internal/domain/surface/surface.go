/*
Package surface implements display surfaces: each one filters the shared
message stream by target, folds it into its own list of wrappers, owns a
cause dialog and pushes a full Frame to its attached renderers after every
state change.
*/
package surface

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/im-notice-service/internal/domain/bus"
	"github.com/webitel/im-notice-service/internal/domain/dialog"
	"github.com/webitel/im-notice-service/internal/domain/event"
	"github.com/webitel/im-notice-service/internal/domain/model"
)

// Renderer is a transport session that displays frames (WebSocket, long-poll...).
type Renderer interface {
	GetID() uuid.UUID
	Send(frame *model.Frame, timeout time.Duration) bool
	Close()
}

// Options tune a surface. The zero value is usable.
type Options struct {
	Tickets     dialog.TicketService
	SendTimeout time.Duration
	Logger      *slog.Logger
	// OnDrop is called with the surface name whenever a renderer refuses a frame.
	OnDrop func(name string)
}

type Surface struct {
	id   model.SurfaceID
	name string

	// [STATE] guards list, seq and renderers
	mu        sync.Mutex
	list      *List
	seq       uint64
	renderers map[uuid.UUID]Renderer

	// [ORDERING] frames leave in seq order
	renderMu sync.Mutex

	dialog      *dialog.Dialog
	unsubscribe func()

	sendTimeout time.Duration
	logger      *slog.Logger
	onDrop      func(string)

	dropped        atomic.Uint64
	lastActivityAt atomic.Int64
}

func New(id model.SurfaceID, name string, opts Options) *Surface {
	if id.IsZero() {
		id = model.NewSurfaceID()
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 500 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.OnDrop == nil {
		opts.OnDrop = func(string) {}
	}

	s := &Surface{
		id:          id,
		name:        name,
		list:        NewList(id, name),
		renderers:   make(map[uuid.UUID]Renderer),
		sendTimeout: opts.SendTimeout,
		logger:      opts.Logger.With("surface_id", id.String(), "surface", name),
		onDrop:      opts.OnDrop,
	}
	s.dialog = dialog.New(opts.Tickets, s.render)
	s.touch()
	return s
}

func (s *Surface) ID() model.SurfaceID { return s.id }
func (s *Surface) Name() string        { return s.name }

// Bind subscribes the surface to the bus. It must be called once.
func (s *Surface) Bind(sub bus.Subscriber) {
	s.unsubscribe = sub.Subscribe(s.OnEvent)
}

// OnEvent filters and folds one bus event, opens the dialog when the
// message demands it and renders the result.
func (s *Surface) OnEvent(ev *event.MessageEvent) {
	s.mu.Lock()
	if !s.list.Accepts(ev) {
		s.mu.Unlock()
		return
	}
	s.list.Apply(ev)

	var current *model.Wrapper
	if ev.Kind == event.Add && ev.Message != nil {
		if w, ok := s.list.Lookup(ev.Message.UseCaseID); ok {
			current = &w
		}
	}
	s.mu.Unlock()
	s.touch()

	s.logger.Debug("SURFACE_EVENT_APPLIED",
		"event_id", ev.ID,
		"kind", ev.Kind.String(),
		"use_case_id", ev.UseCaseID(),
	)

	switch {
	case current != nil && ev.Message.ShouldPopup():
		// [AUTO_POPUP] FATAL or openPopupImmediately bypasses the passive list
		s.dialog.Show(*current)
	case current != nil && s.dialog.Refresh(*current):
		// dialog change already rendered
	default:
		s.render()
	}
}

// Select opens the dialog for a message of this surface.
func (s *Surface) Select(useCaseID string) bool {
	s.mu.Lock()
	w, ok := s.list.Lookup(useCaseID)
	s.mu.Unlock()
	if !ok {
		return false
	}
	s.touch()
	s.dialog.Show(w)
	return true
}

func (s *Surface) Dismiss() {
	s.touch()
	s.dialog.Dismiss()
}

func (s *Surface) Describe(text string) error {
	s.touch()
	return s.dialog.SetDescription(text)
}

// SubmitTicket starts the ticket request of the dialog. The submission
// outlives ctx cancellation: it resolves exactly once on its own.
func (s *Surface) SubmitTicket(ctx context.Context) (<-chan error, error) {
	s.touch()
	return s.dialog.SubmitTicket(context.WithoutCancel(ctx))
}

// Attach registers a renderer and sends it the current frame.
func (s *Surface) Attach(r Renderer) {
	s.renderMu.Lock()
	defer s.renderMu.Unlock()

	s.mu.Lock()
	s.renderers[r.GetID()] = r
	frame := s.frameLocked()
	s.mu.Unlock()
	s.touch()

	if !r.Send(&frame, s.sendTimeout) {
		s.drop(r.GetID())
	}
}

// Detach removes a renderer and reports whether none is left.
func (s *Surface) Detach(rendererID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.renderers, rendererID)
	s.touch()
	return len(s.renderers) == 0
}

// Frame builds the current snapshot without advancing the sequence.
func (s *Surface) Frame() model.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frameLocked()
}

func (s *Surface) frameLocked() model.Frame {
	return model.Frame{
		SurfaceID: s.id,
		Name:      s.name,
		Seq:       s.seq,
		Messages:  s.list.Snapshot(),
		Dialog:    s.dialog.State(),
	}
}

func (s *Surface) render() {
	s.renderMu.Lock()
	defer s.renderMu.Unlock()

	s.mu.Lock()
	s.seq++
	frame := s.frameLocked()
	targets := make([]Renderer, 0, len(s.renderers))
	for _, r := range s.renderers {
		targets = append(targets, r)
	}
	s.mu.Unlock()

	for _, r := range targets {
		if !r.Send(&frame, s.sendTimeout) {
			s.drop(r.GetID())
		}
	}
}

func (s *Surface) drop(rendererID uuid.UUID) {
	s.dropped.Add(1)
	s.onDrop(s.name)
	s.logger.Warn("SURFACE_FRAME_DROPPED", "renderer_id", rendererID.String())
}

// Dropped reports how many frames renderers refused.
func (s *Surface) Dropped() uint64 { return s.dropped.Load() }

// Len reports the number of wrappers currently listed.
func (s *Surface) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list.Len()
}

// Sessions reports the number of attached renderers.
func (s *Surface) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.renderers)
}

// IsIdle returns true if no renderer is attached and nothing happened lately.
func (s *Surface) IsIdle(timeout time.Duration) bool {
	return s.Sessions() == 0 && time.Since(time.Unix(0, s.lastActivityAt.Load())) > timeout
}

func (s *Surface) touch() { s.lastActivityAt.Store(time.Now().UnixNano()) }

// Stop detaches from the bus and closes every renderer.
func (s *Surface) Stop() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}

	s.mu.Lock()
	renderers := s.renderers
	s.renderers = make(map[uuid.UUID]Renderer)
	s.mu.Unlock()

	for _, r := range renderers {
		r.Close()
	}
}
