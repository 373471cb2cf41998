package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/webitel/im-notice-service/internal/domain/model"
	"github.com/webitel/im-notice-service/internal/domain/registry"
	"github.com/webitel/im-notice-service/internal/domain/surface"
)

var ErrMessageNotFound = errors.New("message not listed on surface")

// [SURFACE_SERVICE] PRIMARY INTERFACE FOR RENDERER-FACING HANDLERS (HTTP/WS/LP)
type Surfacer interface {
	Open(name string) (*surface.Surface, error)
	Snapshot(ref string) (model.Frame, error)
	Attach(ctx context.Context, ref string, meta registry.ConnectMetadata) (*surface.Surface, registry.Connector, error)
	Detach(s *surface.Surface, conn registry.Connector)
	Select(ref, useCaseID string) error
	Dismiss(ref string) error
	Describe(ref, text string) error
	SubmitTicket(ctx context.Context, ref string) error
	Stats() registry.Stats
}

// [IMPLEMENTATION] all surface lookups go through the registry
type SurfaceService struct {
	registry registry.Registrar
}

func NewSurfaceService(r registry.Registrar) *SurfaceService {
	return &SurfaceService{registry: r}
}

// Open registers an ephemeral surface. It is evicted once nobody renders it.
func (s *SurfaceService) Open(name string) (*surface.Surface, error) {
	return s.registry.Open(name, false)
}

func (s *SurfaceService) Snapshot(ref string) (model.Frame, error) {
	sf, err := s.registry.Resolve(ref)
	if err != nil {
		return model.Frame{}, err
	}
	return sf.Frame(), nil
}

// [ATTACH] HANDLES RENDERER SESSION INITIATION
func (s *SurfaceService) Attach(ctx context.Context, ref string, meta registry.ConnectMetadata) (*surface.Surface, registry.Connector, error) {
	sf, err := s.registry.Resolve(ref)
	if err != nil {
		return nil, nil, err
	}
	// The connector receives the current frame before Attach returns
	return sf, s.registry.Connect(ctx, sf, meta), nil
}

// [DETACH] TRIGGERS CONNECTOR CLEANUP
func (s *SurfaceService) Detach(sf *surface.Surface, conn registry.Connector) {
	s.registry.Disconnect(sf, conn)
}

func (s *SurfaceService) Select(ref, useCaseID string) error {
	sf, err := s.registry.Resolve(ref)
	if err != nil {
		return err
	}
	if !sf.Select(useCaseID) {
		return fmt.Errorf("%w: %q", ErrMessageNotFound, useCaseID)
	}
	return nil
}

func (s *SurfaceService) Dismiss(ref string) error {
	sf, err := s.registry.Resolve(ref)
	if err != nil {
		return err
	}
	sf.Dismiss()
	return nil
}

func (s *SurfaceService) Describe(ref, text string) error {
	sf, err := s.registry.Resolve(ref)
	if err != nil {
		return err
	}
	return sf.Describe(text)
}

// SubmitTicket starts the submission and returns. The outcome is carried
// by the following frames (RequestInProgress, then TicketError or a
// closed dialog).
func (s *SurfaceService) SubmitTicket(ctx context.Context, ref string) error {
	sf, err := s.registry.Resolve(ref)
	if err != nil {
		return err
	}
	_, err = sf.SubmitTicket(ctx)
	return err
}

func (s *SurfaceService) Stats() registry.Stats {
	return s.registry.Stats()
}
