package sync

import (
	"context"
	"errors"
	"sync"
	"time"

	"tradepost/pkg/logger"
	"tradepost/pkg/models"
)

// DefaultThreadInterval is the open-thread message refresh cadence.
const DefaultThreadInterval = 7 * time.Second

// ErrSendInFlight is returned by Send while a previous send has not
// completed.
var ErrSendInFlight = errors.New("a send is already in flight")

// ThreadState describes the lifecycle of an open thread view.
type ThreadState int

const (
	// ThreadStarting is the state before the initial load completes.
	ThreadStarting ThreadState = iota
	// ThreadReady means the conversation and messages loaded; polling runs.
	ThreadReady
	// ThreadError means the thread failed before its first success; stale
	// data has been cleared.
	ThreadError
)

// ThreadPoller keeps one open conversation fresh. On Start it resets local
// state, loads the conversation and its messages (the server marks them
// read), then polls messages only on a fixed cadence with a single-flight
// guard. Every successful poll replaces the whole local message list; there
// is no client-side merging.
type ThreadPoller struct {
	client   *Client
	convID   string
	interval time.Duration

	// OnConversation receives the conversation view after the initial load.
	// Callbacks run without the poller's lock held and may call back into
	// the poller, except Stop.
	OnConversation func(models.ConversationView)
	// OnMessages receives the full replacement message list.
	OnMessages func([]models.Message)
	// OnState receives lifecycle transitions; err is non-nil for ThreadError.
	OnState func(state ThreadState, err error)

	mu       sync.Mutex
	inFlight bool
	sending  bool
	disposed bool
	ready    bool
	messages []models.Message

	// sendWG tracks callback deliveries on Send callers' goroutines so
	// Stop can wait them out.
	sendWG sync.WaitGroup

	cancel context.CancelFunc
	done   chan struct{}
}

// NewThreadPoller builds a poller for one conversation. interval <= 0
// selects the default.
func NewThreadPoller(c *Client, convID string, interval time.Duration) *ThreadPoller {
	if interval <= 0 {
		interval = DefaultThreadInterval
	}
	return &ThreadPoller{client: c, convID: convID, interval: interval}
}

// Messages returns a copy of the current local message list.
func (p *ThreadPoller) Messages() []models.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.Message, len(p.messages))
	copy(out, p.messages)
	return out
}

// Start resets local state and launches the polling goroutine.
func (p *ThreadPoller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil || p.disposed {
		return
	}
	p.ready = false
	p.messages = nil
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(ctx)
}

func (p *ThreadPoller) run(ctx context.Context) {
	defer close(p.done)

	if !p.initialLoad(ctx) {
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

// initialLoad fetches the conversation then its messages. Any failure here
// puts the thread in the error state with local data cleared; polling does
// not start.
func (p *ThreadPoller) initialLoad(ctx context.Context) bool {
	conv, err := p.client.GetConversation(ctx, p.convID)
	if err != nil {
		p.fail(err)
		return false
	}
	msgs, err := p.client.ListMessages(ctx, p.convID)
	if err != nil {
		p.fail(err)
		return false
	}

	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		return false
	}
	p.ready = true
	p.messages = msgs
	p.mu.Unlock()

	if p.OnConversation != nil {
		p.OnConversation(conv)
	}
	if p.OnState != nil {
		p.OnState(ThreadReady, nil)
	}
	if p.OnMessages != nil {
		p.OnMessages(msgs)
	}
	return true
}

// poll refreshes the message list under the single-flight guard. After a
// successful non-empty poll a mark-read is issued best-effort; its failure
// only logs, the next view fetch will catch up.
func (p *ThreadPoller) poll(ctx context.Context) {
	p.mu.Lock()
	if p.inFlight || p.disposed {
		p.mu.Unlock()
		return
	}
	p.inFlight = true
	p.mu.Unlock()

	msgs, err := p.client.ListMessages(ctx, p.convID)

	p.mu.Lock()
	p.inFlight = false
	if p.disposed {
		p.mu.Unlock()
		return
	}
	if err != nil {
		p.mu.Unlock()
		logger.Warn("thread_poll_failed", "conversation", p.convID, "error", err)
		return
	}
	p.messages = msgs
	p.mu.Unlock()

	if p.OnMessages != nil {
		p.OnMessages(msgs)
	}
	if len(msgs) > 0 {
		if _, err := p.client.MarkRead(ctx, p.convID); err != nil {
			logger.Warn("thread_mark_read_failed", "conversation", p.convID, "error", err)
		}
	}
}

// fail clears local state and reports the error, unless already disposed.
func (p *ThreadPoller) fail(err error) {
	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		return
	}
	p.messages = nil
	p.mu.Unlock()

	logger.Warn("thread_load_failed", "conversation", p.convID, "error", err)
	if p.OnState != nil {
		p.OnState(ThreadError, err)
	}
}

// Send appends a message through the server. There is no optimistic local
// append: the message only appears once the server confirms it, and only
// one send may be in flight at a time. On failure the caller keeps the
// text.
func (p *ThreadPoller) Send(ctx context.Context, content string) (models.Message, error) {
	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		return models.Message{}, errors.New("thread poller stopped")
	}
	if p.sending {
		p.mu.Unlock()
		return models.Message{}, ErrSendInFlight
	}
	p.sending = true
	p.mu.Unlock()

	m, err := p.client.SendMessage(ctx, p.convID, content)

	p.mu.Lock()
	p.sending = false
	if err != nil {
		p.mu.Unlock()
		return models.Message{}, err
	}
	var msgs []models.Message
	if !p.disposed {
		p.messages = append(p.messages, m)
		if p.OnMessages != nil {
			msgs = make([]models.Message, len(p.messages))
			copy(msgs, p.messages)
			p.sendWG.Add(1)
		}
	}
	p.mu.Unlock()

	if msgs != nil {
		p.OnMessages(msgs)
		p.sendWG.Done()
	}
	return m, nil
}

// Stop halts polling synchronously: no callback fires after it returns.
// Stop must not be called from inside a callback.
func (p *ThreadPoller) Stop() {
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
	// a Send caller may still be delivering its OnMessages
	p.sendWG.Wait()
}
