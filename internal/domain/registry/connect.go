package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/im-notice-service/internal/domain/model"
	"github.com/webitel/im-notice-service/internal/domain/surface"
)

// Interface guard
var _ Connector = (*connect)(nil)

// [CONNECTOR] THE INTERFACE FOR TRANSPORT HANDLERS (WS/LONG-POLL)
// A connector is the mailbox between one surface and one renderer session.
type Connector interface {
	surface.Renderer
	GetSurfaceID() model.SurfaceID
	Recv() <-chan *model.Frame
	Dropped() uint64
}

// [METADATA] EXPORTED FOR TRANSPORT AND ANALYTICS LAYERS
type ConnectMetadata struct {
	Transport string
	RemoteIP  string
	UserAgent string
}

// [CONNECT] CONCRETE IMPLEMENTATION (UNEXPORTED TO FORCE INTERFACE USAGE)
type connect struct {
	id        uuid.UUID
	surfaceID model.SurfaceID
	metadata  ConnectMetadata
	createdAt time.Time
	ctx       context.Context
	cancelFn  context.CancelFunc

	// [SEND_GUARD] serialises Send against Close so a closed channel is never written
	mu     sync.Mutex
	closed bool
	sendCh chan *model.Frame

	closeOnce      sync.Once
	lastActivityAt atomic.Int64
	droppedCount   atomic.Uint64
}

// NewConnector creates a renderer mailbox bound to ctx: cancelling ctx
// makes every further Send fail.
func NewConnector(ctx context.Context, surfaceID model.SurfaceID, bufferSize int, meta ConnectMetadata) Connector {
	if bufferSize < 1 {
		bufferSize = 1
	}
	childCtx, cancel := context.WithCancel(ctx)

	c := &connect{
		id:        uuid.New(),
		surfaceID: surfaceID,
		metadata:  meta,
		createdAt: time.Now(),
		ctx:       childCtx,
		cancelFn:  cancel,
		sendCh:    make(chan *model.Frame, bufferSize),
	}
	c.lastActivityAt.Store(time.Now().UnixNano())
	return c
}

// --- IMPLEMENTATION OF CONNECTOR INTERFACE ---

func (c *connect) GetID() uuid.UUID              { return c.id }
func (c *connect) GetSurfaceID() model.SurfaceID { return c.surfaceID }
func (c *connect) Recv() <-chan *model.Frame     { return c.sendCh }
func (c *connect) Dropped() uint64               { return c.droppedCount.Load() }

// Send enqueues a frame. When the mailbox stays full for the whole timeout
// the oldest pending frame is evicted: frames are full snapshots, so only
// the newest one matters to a lagging renderer.
func (c *connect) Send(f *model.Frame, timeout time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.ctx.Err() != nil {
		return false
	}

	// 1. [PRIMARY_DELIVERY]
	select {
	case c.sendCh <- f:
		c.lastActivityAt.Store(time.Now().UnixNano())
		return true
	default:
	}

	// 2. [JITTER_WINDOW] give a slow reader a short chance to catch up
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case c.sendCh <- f:
		c.lastActivityAt.Store(time.Now().UnixNano())
		return true
	case <-c.ctx.Done():
		return false
	case <-timer.C:
	}

	// 3. [LATEST_WINS] drop the stalest frame to make room
	return c.handleBackpressure(f)
}

func (c *connect) handleBackpressure(f *model.Frame) bool {
	select {
	case <-c.sendCh:
		c.droppedCount.Add(1)
	default:
	}

	select {
	case c.sendCh <- f:
		c.lastActivityAt.Store(time.Now().UnixNano())
		return true
	default:
		// If we can't even push the fresh frame, it's lost
		c.droppedCount.Add(1)
		return false
	}
}

// Close terminates the session. Safe to call concurrently and repeatedly.
func (c *connect) Close() {
	c.closeOnce.Do(func() {
		// 1. [SIGNAL_ABORT] stop any pending Send
		c.cancelFn()

		// 2. [UPSTREAM_NOTIFY] the handler sees !ok on Recv and exits its loop
		c.mu.Lock()
		c.closed = true
		close(c.sendCh)
		c.mu.Unlock()
	})
}
