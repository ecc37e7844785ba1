// Package recognition owns the recognition state machine: it turns a submitted
// image and prompt into a published Loading state, calls the injected
// Capability off the caller's goroutine and publishes Success or Error when
// the call ends.
package recognition

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"picturereader/internal/prompts"
)

// Capability is the remote image-to-text operation.
type Capability interface {
	Recognize(ctx context.Context, image []byte, prompt string) (string, error)
}

// CapabilityFunc adapts a function to Capability.
type CapabilityFunc func(ctx context.Context, image []byte, prompt string) (string, error)

func (f CapabilityFunc) Recognize(ctx context.Context, image []byte, prompt string) (string, error) {
	return f(ctx, image, prompt)
}

// Request is one submission. Language, Category and Source only travel to
// completion hooks.
type Request struct {
	Image    []byte
	Prompt   string
	Language prompts.Language
	Category prompts.Category
	Source   string
}

// Ticket identifies a submission. Generation orders submissions and resets.
type Ticket struct {
	ID         uuid.UUID
	Generation uint64
}

// Completion describes a finished capability call. Applied is false when the
// call was superseded (newer submit, reset or Close) and its state was dropped.
type Completion struct {
	Ticket   Ticket
	Request  Request
	State    State
	Duration time.Duration
	Applied  bool
}

type ticketKey struct{}

// TicketFromContext returns the ticket of the submission a capability call
// belongs to.
func TicketFromContext(ctx context.Context) (Ticket, bool) {
	t, ok := ctx.Value(ticketKey{}).(Ticket)
	return t, ok
}

type Option func(*Coordinator)

// WithTimeout bounds each capability call.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.timeout = d }
}

// WithResolver sets the resolver used by SubmitImage.
func WithResolver(r *prompts.Resolver) Option {
	return func(c *Coordinator) {
		if r != nil {
			c.resolver = r
		}
	}
}

// WithCompletionHook registers fn to run on the call's goroutine after every
// capability call, applied or not.
func WithCompletionHook(fn func(Completion)) Option {
	return func(c *Coordinator) {
		if fn != nil {
			c.hooks = append(c.hooks, fn)
		}
	}
}

// Coordinator is the single owner of a State value.
type Coordinator struct {
	capability Capability
	resolver   *prompts.Resolver
	timeout    time.Duration
	hooks      []func(Completion)

	base context.Context
	stop context.CancelFunc

	mu          sync.Mutex
	state       State
	generation  uint64
	cancelCall  context.CancelFunc
	changed     chan struct{}
	subscribers map[int]chan State
	nextSub     int
	closed      bool

	// finishing counts calls whose capability returned and whose hooks may
	// still be running.
	finishing sync.WaitGroup
}

func NewCoordinator(capability Capability, opts ...Option) *Coordinator {
	base, stop := context.WithCancel(context.Background())
	c := &Coordinator{
		capability:  capability,
		resolver:    prompts.Default(),
		base:        base,
		stop:        stop,
		state:       Initial{},
		changed:     make(chan struct{}),
		subscribers: make(map[int]chan State),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit publishes Loading before it returns and starts the capability call.
// A submission made while another is in flight supersedes it: the earlier call
// is cancelled on a best-effort basis and its outcome is never published.
// On a closed coordinator nothing is started and the ticket has generation 0.
func (c *Coordinator) Submit(req Request) Ticket {
	ticket, _ := c.submit(req)
	return ticket
}

func (c *Coordinator) submit(req Request) (Ticket, error) {
	ticket := Ticket{ID: uuid.New()}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		log.WithField("request_id", ticket.ID).Warn("Submit called on a closed recognition coordinator")
		return ticket, ErrClosed
	}
	c.generation++
	ticket.Generation = c.generation
	if c.cancelCall != nil {
		c.cancelCall()
	}
	ctx, cancel := c.callContext()
	ctx = context.WithValue(ctx, ticketKey{}, ticket)
	c.cancelCall = cancel
	c.publishLocked(Loading{})
	c.mu.Unlock()

	log.WithFields(log.Fields{
		"request_id": ticket.ID,
		"generation": ticket.Generation,
		"language":   req.Language,
		"category":   req.Category,
		"image_size": len(req.Image),
	}).Debug("Recognition submitted")

	go c.run(ctx, cancel, ticket, req)
	return ticket, nil
}

// Submission is what SubmitImage started: the ticket, the language actually
// used and the template the selection resolved to.
type Submission struct {
	Ticket
	Language prompts.Language
	Template prompts.Template
}

// SubmitOption adjusts the request built by SubmitImage.
type SubmitOption func(*Request)

// WithSource records where the image came from.
func WithSource(source string) SubmitOption {
	return func(r *Request) { r.Source = source }
}

// SubmitImage resolves the prompt for the selection and submits it. It fails
// with ErrClosed once the coordinator is closed.
func (c *Coordinator) SubmitImage(image []byte, lang prompts.Language, category prompts.Category, opts ...SubmitOption) (Submission, error) {
	tmpl := c.Resolver().Resolve(lang, category)
	req := Request{
		Image:    image,
		Prompt:   tmpl.PromptText,
		Language: prompts.ParseLanguage(string(lang)),
		Category: tmpl.Category,
	}
	for _, opt := range opts {
		opt(&req)
	}
	ticket, err := c.submit(req)
	return Submission{Ticket: ticket, Language: req.Language, Template: tmpl}, err
}

// Resolver returns the resolver used by SubmitImage.
func (c *Coordinator) Resolver() *prompts.Resolver {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resolver
}

// SetResolver swaps the resolver used by later SubmitImage calls. A nil
// resolver is ignored.
func (c *Coordinator) SetResolver(r *prompts.Resolver) {
	if r == nil {
		return
	}
	c.mu.Lock()
	c.resolver = r
	c.mu.Unlock()
}

// Reset publishes Initial. The in-flight call, if any, is cancelled and its
// late result is dropped.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	if c.cancelCall != nil {
		c.cancelCall()
		c.cancelCall = nil
	}
	if c.closed {
		c.state = Initial{}
		return
	}
	c.publishLocked(Initial{})
}

// State returns the latest published state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe returns a channel that receives the current state immediately and
// then every transition. Delivery is conflated: a subscriber that falls behind
// only sees the latest state. The channel is closed by cancel or Close.
func (c *Coordinator) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	c.mu.Lock()
	if c.closed {
		ch <- c.state
		close(ch)
		c.mu.Unlock()
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subscribers[id] = ch
	ch <- c.state
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if sub, ok := c.subscribers[id]; ok {
				delete(c.subscribers, id)
				close(sub)
			}
		})
	}
}

// Wait blocks until the ticket's submission reaches a terminal state. It
// returns ErrSuperseded when a newer submission or a reset replaced it.
func (c *Coordinator) Wait(ctx context.Context, t Ticket) (State, error) {
	for {
		c.mu.Lock()
		state, gen, changed, closed := c.state, c.generation, c.changed, c.closed
		c.mu.Unlock()

		if gen == t.Generation && IsTerminal(state) {
			return state, nil
		}
		if closed {
			return state, ErrClosed
		}
		if gen != t.Generation {
			return state, ErrSuperseded
		}
		select {
		case <-ctx.Done():
			return state, ctx.Err()
		case <-changed:
		}
	}
}

// Close tears the coordinator down. In-flight calls are cancelled, their
// results dropped and every subscriber channel closed. Close returns once the
// hooks of calls that had already finished have run.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stop()
	close(c.changed)
	for id, ch := range c.subscribers {
		delete(c.subscribers, id)
		close(ch)
	}
	c.mu.Unlock()

	c.finishing.Wait()
}

func (c *Coordinator) callContext() (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(c.base, c.timeout)
	}
	return context.WithCancel(c.base)
}

func (c *Coordinator) run(ctx context.Context, cancel context.CancelFunc, ticket Ticket, req Request) {
	defer cancel()

	start := time.Now()
	state := c.invoke(ctx, req)
	elapsed := time.Since(start)
	if c.trackFinish() {
		defer c.finishing.Done()
	}
	applied := c.complete(ticket, state)

	entry := log.WithFields(log.Fields{
		"request_id":  ticket.ID,
		"generation":  ticket.Generation,
		"state":       state.Kind(),
		"duration_ms": elapsed.Milliseconds(),
	})
	if applied {
		entry.Info("Recognition finished")
	} else {
		entry.Debug("Dropped stale recognition result")
	}

	done := Completion{Ticket: ticket, Request: req, State: state, Duration: elapsed, Applied: applied}
	for _, hook := range c.hooks {
		hook(done)
	}
}

func (c *Coordinator) trackFinish() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.finishing.Add(1)
	return true
}

func (c *Coordinator) invoke(ctx context.Context, req Request) (state State) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Recognition capability panicked: %v", r)
			state = Error{Message: fmt.Sprintf("recognition failed: %v", r), Reason: CapabilityFailure}
		}
	}()

	text, err := c.capability.Recognize(ctx, req.Image, req.Prompt)
	if err != nil {
		return failureState(err, c.timeout)
	}
	if strings.TrimSpace(text) == "" {
		return Error{Message: NoTextMessage, Reason: EmptyResult}
	}
	return Success{OutputText: text}
}

func (c *Coordinator) complete(ticket Ticket, s State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || ticket.Generation != c.generation {
		return false
	}
	c.cancelCall = nil
	c.publishLocked(s)
	return true
}

// publishLocked must be called with mu held.
func (c *Coordinator) publishLocked(s State) {
	c.state = s
	close(c.changed)
	c.changed = make(chan struct{})
	for _, ch := range c.subscribers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
		}
	}
}
