package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/vbonduro/plantid/internal/domain"
	"github.com/vbonduro/plantid/internal/gateway"
)

// FailureMessage is the only error text a user ever sees for a failed
// classification.
const FailureMessage = "Could not identify the plant. Please try another clear photo."

// Background work has no other way to be abandoned, so both calls into
// the gateway are bounded.
const (
	classifyTimeout = 2 * time.Minute
	chatTimeout     = time.Minute
)

var (
	ErrBusy         = errors.New("an identification is already in progress")
	ErrEmptyImage   = errors.New("image is empty")
	ErrEmptyMessage = errors.New("message is empty")
	ErrNoResults    = errors.New("no identified plant to chat about")
	ErrReplyPending = errors.New("a reply is already pending")
)

// Recorder receives one entry per finished classification.
type Recorder interface {
	Record(ctx context.Context, ident domain.Identification) (*domain.Identification, error)
}

// Controller owns the view of a single browser session.
//
// Every transition bumps epoch. Asynchronous work captures the epoch it
// started under and applies its result only if the epoch is unchanged,
// so a reply that arrives after a reset is dropped.
type Controller struct {
	id       string
	gw       gateway.Gateway
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time
	// chatTimeout bounds one assistant reply; tests shorten it.
	chatTimeout time.Duration
	// tracker, when set, also counts background work so its owner can
	// wait on sessions it no longer holds.
	tracker *sync.WaitGroup

	mu    sync.Mutex
	epoch uint64
	view  View
	conv  gateway.Conversation

	wg sync.WaitGroup
}

// NewController returns a controller in the Idle state. recorder may be nil.
func NewController(id string, gw gateway.Gateway, recorder Recorder, logger *slog.Logger) *Controller {
	return &Controller{
		id:       id,
		gw:       gw,
		recorder: recorder,
		logger:   logger.With("session_id", id),
		now:      time.Now,
		view:     Idle{},

		chatTimeout: chatTimeout,
	}
}

func (c *Controller) ID() string { return c.id }

// Snapshot returns a copy of the current view that is safe to render.
func (c *Controller) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyView(c.view)
}

// Submit moves Idle to Analyzing and classifies img in the background.
func (c *Controller) Submit(img Image) error {
	if len(img.Data) == 0 {
		return ErrEmptyImage
	}

	c.mu.Lock()
	if _, ok := c.view.(Idle); !ok {
		c.mu.Unlock()
		return ErrBusy
	}
	c.epoch++
	epoch := c.epoch
	c.view = Analyzing{Preview: img}
	c.background(func() { c.classify(epoch, img) })
	c.mu.Unlock()

	c.logger.Info("classification started", "mime_type", img.MIMEType, "bytes", len(img.Data))
	return nil
}

func (c *Controller) background(fn func()) {
	c.wg.Add(1)
	if c.tracker != nil {
		c.tracker.Add(1)
	}
	go func() {
		defer func() {
			if c.tracker != nil {
				c.tracker.Done()
			}
			c.wg.Done()
		}()
		fn()
	}()
}

func (c *Controller) classify(epoch uint64, img Image) {
	ctx, cancel := context.WithTimeout(context.Background(), classifyTimeout)
	defer cancel()

	start := c.now()
	rec, err := c.gw.Classify(ctx, img.Data, img.MIMEType)
	var conv gateway.Conversation
	if err == nil {
		conv, err = c.gw.StartConversation(ctx, *rec)
	}
	elapsed := c.now().Sub(start)
	c.journal(ctx, rec, err, elapsed)

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		if conv != nil {
			conv.Close()
		}
		c.logger.Info("discarded stale classification", "duration_ms", elapsed.Milliseconds())
		return
	}
	c.epoch++
	if err != nil {
		c.view = Failed{Message: FailureMessage}
		c.mu.Unlock()
		c.logger.Error("classification failed", "duration_ms", elapsed.Milliseconds(), "error", err)
		return
	}
	c.conv = conv
	c.view = Results{
		Preview: img,
		Record:  *rec,
		Transcript: []domain.ConversationTurn{{
			Role:      domain.RoleAssistant,
			Text:      gateway.Greeting(*rec),
			CreatedAt: c.now(),
		}},
	}
	c.mu.Unlock()
	c.logger.Info("classification complete", "common_name", rec.CommonName, "duration_ms", elapsed.Milliseconds())
}

func (c *Controller) journal(ctx context.Context, rec *domain.PlantRecord, err error, elapsed time.Duration) {
	if c.recorder == nil {
		return
	}
	ident := domain.Identification{
		SessionID: c.id,
		Outcome:   domain.OutcomeFailed,
		Duration:  elapsed,
	}
	if err == nil {
		ident.Outcome = domain.OutcomeIdentified
		ident.CommonName = rec.CommonName
		ident.ScientificName = rec.ScientificName
	}
	if _, jerr := c.recorder.Record(context.WithoutCancel(ctx), ident); jerr != nil {
		c.logger.Error("failed to record identification", "error", jerr)
	}
}

// Send appends text as a user turn straight away, then appends the
// assistant reply once the conversation returns. Replies to a session
// that was reset in the meantime are dropped.
func (c *Controller) Send(ctx context.Context, text string) error {
	epoch, conv, err := c.beginTurn(text)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, c.chatTimeout)
	defer cancel()
	c.finishTurn(epoch, conv.Send(ctx, text))
	return nil
}

// Ask is Send without waiting: the user turn and the pending marker are
// visible when it returns and the reply lands in the background.
func (c *Controller) Ask(text string) error {
	epoch, conv, err := c.beginTurn(text)
	if err != nil {
		return err
	}
	c.background(func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.chatTimeout)
		defer cancel()
		c.finishTurn(epoch, conv.Send(ctx, text))
	})
	return nil
}

func (c *Controller) beginTurn(text string) (uint64, gateway.Conversation, error) {
	if strings.TrimSpace(text) == "" {
		return 0, nil, ErrEmptyMessage
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	res, ok := c.view.(Results)
	if !ok {
		return 0, nil, ErrNoResults
	}
	if res.ReplyPending {
		return 0, nil, ErrReplyPending
	}
	res.Transcript = append(res.Transcript, domain.ConversationTurn{
		Role:      domain.RoleUser,
		Text:      text,
		CreatedAt: c.now(),
	})
	res.ReplyPending = true
	c.view = res
	return c.epoch, c.conv, nil
}

func (c *Controller) finishTurn(epoch uint64, reply string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		c.logger.Info("discarded stale chat reply")
		return
	}
	res := c.view.(Results)
	res.Transcript = append(res.Transcript, domain.ConversationTurn{
		Role:      domain.RoleAssistant,
		Text:      reply,
		CreatedAt: c.now(),
	})
	res.ReplyPending = false
	c.view = res
}

// Reset returns to Idle from any state, discarding the record, transcript,
// preview and error, and closing the conversation.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.epoch++
	c.view = Idle{}
	conv := c.conv
	c.conv = nil
	c.mu.Unlock()

	if conv != nil {
		conv.Close()
	}
}

// Wait blocks until background classifications and replies have finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}
