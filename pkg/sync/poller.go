package sync

import (
	"context"
	"sync"
	"time"

	"tradepost/pkg/logger"
	"tradepost/pkg/models"
)

// DefaultListInterval is the conversation list refresh cadence.
const DefaultListInterval = 15 * time.Second

// ListPoller keeps the conversation list fresh: one fetch immediately on
// Start, then one per interval. A tick that arrives while a fetch is still
// outstanding is dropped, never queued. The first fetch failing is fatal to
// the view (reported with initial=true); later failures are reported and
// the previous list stays on screen.
type ListPoller struct {
	client   *Client
	interval time.Duration

	// OnUpdate receives the full server list on every successful fetch.
	// Callbacks run without the poller's lock held and may call back into
	// the poller, except Stop.
	OnUpdate func(list []models.ConversationView)
	// OnError receives fetch failures; initial is true for the first fetch.
	OnError func(err error, initial bool)

	mu       sync.Mutex
	inFlight bool
	disposed bool
	fetched  bool

	cancel context.CancelFunc
	done   chan struct{}
}

// NewListPoller builds a poller delivering through the given callbacks.
// interval <= 0 selects the default.
func NewListPoller(c *Client, interval time.Duration) *ListPoller {
	if interval <= 0 {
		interval = DefaultListInterval
	}
	return &ListPoller{client: c, interval: interval}
}

// Start launches the polling goroutine. Calling Start twice without an
// intervening Stop is a no-op.
func (p *ListPoller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil || p.disposed {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(ctx)
}

func (p *ListPoller) run(ctx context.Context) {
	defer close(p.done)

	p.fetch(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.fetch(ctx)
		}
	}
}

// fetch runs one list request under the single-flight guard and delivers
// the result. The disposal token is re-checked after the request returns so
// a response racing Stop is discarded; the callback itself is invoked with
// the lock released, on the run goroutine, so Stop still waits it out.
func (p *ListPoller) fetch(ctx context.Context) {
	p.mu.Lock()
	if p.inFlight || p.disposed {
		p.mu.Unlock()
		return
	}
	p.inFlight = true
	initial := !p.fetched
	p.mu.Unlock()

	list, err := p.client.ListConversations(ctx)

	p.mu.Lock()
	p.inFlight = false
	if p.disposed {
		p.mu.Unlock()
		return
	}
	if err == nil {
		p.fetched = true
	}
	p.mu.Unlock()

	if err != nil {
		logger.Warn("list_poll_failed", "initial", initial, "error", err)
		if p.OnError != nil {
			p.OnError(err, initial)
		}
		return
	}
	if p.OnUpdate != nil {
		p.OnUpdate(list)
	}
}

// Stop halts polling. It is synchronous: once it returns, no callback will
// fire again; a still-running request finishes in the background and its
// result is dropped. Stop must not be called from inside a callback.
func (p *ListPoller) Stop() {
	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		return
	}
	p.disposed = true
	cancel := p.cancel
	done := p.done
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}
