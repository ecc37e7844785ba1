package recognition

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"picturereader/internal/prompts"
)

const testTimeout = 2 * time.Second

type reply struct {
	text string
	err  error
}

type pendingCall struct {
	ctx    context.Context
	image  []byte
	prompt string
	reply  chan reply
}

// fakeCapability hands every call to the test and blocks until the test
// replies. It ignores cancellation, like a remote call that cannot be aborted.
type fakeCapability struct {
	calls chan *pendingCall
}

func newFakeCapability() *fakeCapability {
	return &fakeCapability{calls: make(chan *pendingCall, 8)}
}

func (f *fakeCapability) Recognize(ctx context.Context, image []byte, prompt string) (string, error) {
	call := &pendingCall{ctx: ctx, image: image, prompt: prompt, reply: make(chan reply, 1)}
	f.calls <- call
	r := <-call.reply
	return r.text, r.err
}

func (f *fakeCapability) next(t *testing.T) *pendingCall {
	t.Helper()
	select {
	case c := <-f.calls:
		return c
	case <-time.After(testTimeout):
		t.Fatal("capability was not called")
		return nil
	}
}

func waitState(t *testing.T, c *Coordinator, ticket Ticket) State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	s, err := c.Wait(ctx, ticket)
	require.NoError(t, err)
	return s
}

func completions() (chan Completion, Option) {
	ch := make(chan Completion, 8)
	return ch, WithCompletionHook(func(c Completion) { ch <- c })
}

func nextCompletion(t *testing.T, ch chan Completion) Completion {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(testTimeout):
		t.Fatal("no completion")
		return Completion{}
	}
}

func TestCoordinator_InitialState(t *testing.T) {
	c := NewCoordinator(newFakeCapability())
	defer c.Close()
	assert.Equal(t, Initial{}, c.State())
}

func TestCoordinator_SubmitPublishesLoadingBeforeCallResolves(t *testing.T) {
	fake := newFakeCapability()
	c := NewCoordinator(fake)
	defer c.Close()

	ticket := c.Submit(Request{Image: []byte("img"), Prompt: "Describe this image"})
	assert.Equal(t, Loading{}, c.State())
	assert.Equal(t, uint64(1), ticket.Generation)

	call := fake.next(t)
	assert.Equal(t, Loading{}, c.State())
	assert.Equal(t, []byte("img"), call.image)
	assert.Equal(t, "Describe this image", call.prompt)
	fromCtx, ok := TicketFromContext(call.ctx)
	assert.True(t, ok)
	assert.Equal(t, ticket, fromCtx)
	call.reply <- reply{text: "done"}
	waitState(t, c, ticket)
}

func TestCoordinator_Outcomes(t *testing.T) {
	testCases := []struct {
		name  string
		reply reply
		want  State
	}{
		{"success", reply{text: "A cat sits on a windowsill."}, Success{OutputText: "A cat sits on a windowsill."}},
		{"empty text", reply{text: ""}, Error{Message: NoTextMessage, Reason: EmptyResult}},
		{"blank text", reply{text: " \n\t"}, Error{Message: NoTextMessage, Reason: EmptyResult}},
		{"empty result error", reply{err: fmt.Errorf("gemini: %w", ErrEmptyResult)}, Error{Message: NoTextMessage, Reason: EmptyResult}},
		{"failure", reply{err: errors.New("quota exceeded")}, Error{Message: "quota exceeded", Reason: CapabilityFailure}},
		{"failure without message", reply{err: errors.New("")}, Error{Message: UnknownErrorMessage, Reason: CapabilityFailure}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fake := newFakeCapability()
			c := NewCoordinator(fake)
			defer c.Close()

			ticket := c.Submit(Request{Image: []byte{1}, Prompt: "p"})
			fake.next(t).reply <- tc.reply

			assert.Equal(t, tc.want, waitState(t, c, ticket))
			assert.Equal(t, tc.want, c.State())
		})
	}
}

func TestCoordinator_TimeoutBecomesError(t *testing.T) {
	slow := CapabilityFunc(func(ctx context.Context, image []byte, prompt string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	c := NewCoordinator(slow, WithTimeout(20*time.Millisecond))
	defer c.Close()

	ticket := c.Submit(Request{Prompt: "p"})
	s := waitState(t, c, ticket)
	assert.Equal(t, Error{Message: "Recognition timed out after 20ms.", Reason: CapabilityFailure}, s)
}

func TestCoordinator_PanicIsConvertedToError(t *testing.T) {
	boom := CapabilityFunc(func(ctx context.Context, image []byte, prompt string) (string, error) {
		panic("decoder exploded")
	})
	c := NewCoordinator(boom)
	defer c.Close()

	s := waitState(t, c, c.Submit(Request{Prompt: "p"}))
	require.Equal(t, KindError, s.Kind())
	assert.Contains(t, s.(Error).Message, "decoder exploded")
}

func TestCoordinator_ResetFromEveryState(t *testing.T) {
	fake := newFakeCapability()
	c := NewCoordinator(fake)
	defer c.Close()

	c.Reset()
	assert.Equal(t, Initial{}, c.State())

	// Loading
	c.Submit(Request{Prompt: "p"})
	loadingCall := fake.next(t)
	c.Reset()
	assert.Equal(t, Initial{}, c.State())
	loadingCall.reply <- reply{text: "late"}

	// Success
	ticket := c.Submit(Request{Prompt: "p"})
	fake.next(t).reply <- reply{text: "ok"}
	assert.Equal(t, Success{OutputText: "ok"}, waitState(t, c, ticket))
	c.Reset()
	assert.Equal(t, Initial{}, c.State())

	// Error
	ticket = c.Submit(Request{Prompt: "p"})
	fake.next(t).reply <- reply{err: errors.New("network down")}
	assert.Equal(t, KindError, waitState(t, c, ticket).Kind())
	c.Reset()
	assert.Equal(t, Initial{}, c.State())

	// Submit after reset is valid.
	ticket = c.Submit(Request{Prompt: "p"})
	assert.Equal(t, Loading{}, c.State())
	fake.next(t).reply <- reply{text: "again"}
	assert.Equal(t, Success{OutputText: "again"}, waitState(t, c, ticket))
}

func TestCoordinator_LateResultAfterResetIsDropped(t *testing.T) {
	fake := newFakeCapability()
	done, hook := completions()
	c := NewCoordinator(fake, hook)
	defer c.Close()

	ticket := c.Submit(Request{Prompt: "p"})
	call := fake.next(t)
	c.Reset()

	_, err := c.Wait(context.Background(), ticket)
	assert.ErrorIs(t, err, ErrSuperseded)

	call.reply <- reply{text: "too late"}
	completion := nextCompletion(t, done)
	assert.False(t, completion.Applied)
	assert.Equal(t, Success{OutputText: "too late"}, completion.State)
	assert.Equal(t, Initial{}, c.State())
	assert.Error(t, call.ctx.Err(), "reset cancels the in-flight call context")
}

func TestCoordinator_NewestSubmissionWins(t *testing.T) {
	fake := newFakeCapability()
	done, hook := completions()
	c := NewCoordinator(fake, hook)
	defer c.Close()

	first := c.Submit(Request{Prompt: "first"})
	firstCall := fake.next(t)
	second := c.Submit(Request{Prompt: "second"})
	secondCall := fake.next(t)
	assert.Equal(t, Loading{}, c.State())
	assert.Greater(t, second.Generation, first.Generation)

	secondCall.reply <- reply{text: "second outcome"}
	assert.Equal(t, Success{OutputText: "second outcome"}, waitState(t, c, second))
	assert.True(t, nextCompletion(t, done).Applied)

	firstCall.reply <- reply{text: "first outcome"}
	stale := nextCompletion(t, done)
	assert.False(t, stale.Applied)
	assert.Equal(t, first, stale.Ticket)

	assert.Equal(t, Success{OutputText: "second outcome"}, c.State())
	_, err := c.Wait(context.Background(), first)
	assert.ErrorIs(t, err, ErrSuperseded)
}

func TestCoordinator_SubscribeSeesTransitions(t *testing.T) {
	fake := newFakeCapability()
	c := NewCoordinator(fake)
	defer c.Close()

	updates, cancel := c.Subscribe()
	defer cancel()

	recv := func() State {
		select {
		case s := <-updates:
			return s
		case <-time.After(testTimeout):
			t.Fatal("no state update")
			return nil
		}
	}

	assert.Equal(t, Initial{}, recv())
	c.Submit(Request{Prompt: "p"})
	assert.Equal(t, Loading{}, recv())
	fake.next(t).reply <- reply{text: "hello"}
	assert.Equal(t, Success{OutputText: "hello"}, recv())
	c.Reset()
	assert.Equal(t, Initial{}, recv())
}

func TestCoordinator_SubscribeIsConflated(t *testing.T) {
	c := NewCoordinator(newFakeCapability())
	defer c.Close()

	updates, cancel := c.Subscribe()
	c.Reset()
	c.Reset()
	c.Submit(Request{Prompt: "p"})

	assert.Equal(t, Loading{}, <-updates, "only the latest state is buffered")
	cancel()
	_, open := <-updates
	assert.False(t, open)
	cancel()
}

func TestCoordinator_Close(t *testing.T) {
	fake := newFakeCapability()
	done, hook := completions()
	c := NewCoordinator(fake, hook)

	updates, _ := c.Subscribe()
	<-updates

	ticket := c.Submit(Request{Prompt: "p"})
	<-updates
	call := fake.next(t)

	c.Close()
	c.Close()

	_, open := <-updates
	assert.False(t, open)
	assert.Error(t, call.ctx.Err())

	_, err := c.Wait(context.Background(), ticket)
	assert.ErrorIs(t, err, ErrClosed)

	call.reply <- reply{text: "after close"}
	assert.False(t, nextCompletion(t, done).Applied)
	assert.Equal(t, Loading{}, c.State())

	assert.Equal(t, uint64(0), c.Submit(Request{Prompt: "p"}).Generation)
	late, _ := c.Subscribe()
	assert.Equal(t, Loading{}, <-late)
}

func TestCoordinator_SubmitImageResolvesPrompt(t *testing.T) {
	fake := newFakeCapability()
	done, hook := completions()
	c := NewCoordinator(fake, hook)
	defer c.Close()

	sub, err := c.SubmitImage([]byte("jpeg"), prompts.ZHHant, "恐怖故事", WithSource("cat.jpg"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), sub.Generation)
	assert.Equal(t, prompts.ZHHant, sub.Language)
	assert.Equal(t, "生成恐怖故事", sub.Template.ButtonLabel)
	call := fake.next(t)
	assert.Equal(t, prompts.ResolvePrompt(prompts.ZHHant, "恐怖故事"), call.prompt)
	call.reply <- reply{text: "故事"}

	completion := nextCompletion(t, done)
	assert.Equal(t, prompts.ZHHant, completion.Request.Language)
	assert.Equal(t, prompts.Category("恐怖故事"), completion.Request.Category)
	assert.Equal(t, "cat.jpg", completion.Request.Source)

	sub, err = c.SubmitImage([]byte("jpeg"), "xx", "unknown")
	require.NoError(t, err)
	assert.Equal(t, prompts.EN, sub.Language)
	assert.Equal(t, prompts.Category("Recognition"), sub.Template.Category)
	call = fake.next(t)
	assert.Equal(t, "Describe this image", call.prompt)
	call.reply <- reply{text: "desc"}
	completion = nextCompletion(t, done)
	assert.Equal(t, prompts.EN, completion.Request.Language)
	assert.Equal(t, prompts.Category("Recognition"), completion.Request.Category)
}

func TestCoordinator_WaitHonoursContext(t *testing.T) {
	fake := newFakeCapability()
	c := NewCoordinator(fake)
	defer c.Close()

	ticket := c.Submit(Request{Prompt: "p"})
	call := fake.next(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	s, err := c.Wait(ctx, ticket)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, Loading{}, s)
	call.reply <- reply{text: "x"}
}

func TestView(t *testing.T) {
	assert.Equal(t, StateView{State: "initial"}, View(Initial{}))
	assert.Equal(t, StateView{State: "loading"}, View(Loading{}))
	assert.Equal(t, StateView{State: "success", Output: "hi"}, View(Success{OutputText: "hi"}))
	assert.Equal(t, StateView{State: "error", Message: "boom", Reason: "empty_result"}, View(Error{Message: "boom", Reason: EmptyResult}))

	text, ok := OutputText(Success{OutputText: "hi"})
	assert.True(t, ok)
	assert.Equal(t, "hi", text)
	_, ok = OutputText(Loading{})
	assert.False(t, ok)
	assert.False(t, IsTerminal(Loading{}))
	assert.True(t, IsTerminal(Error{}))
}

func TestCoordinator_CloseWaitsForFinishedHooks(t *testing.T) {
	fake := newFakeCapability()
	recorded := make(chan struct{})
	c := NewCoordinator(fake, WithCompletionHook(func(Completion) {
		time.Sleep(50 * time.Millisecond)
		close(recorded)
	}))

	ticket := c.Submit(Request{Prompt: "p"})
	fake.next(t).reply <- reply{text: "done"}
	assert.Equal(t, Success{OutputText: "done"}, waitState(t, c, ticket))

	c.Close()
	select {
	case <-recorded:
	default:
		t.Fatal("Close returned before the completion hook finished")
	}
}

func TestCoordinator_SubmitImageAfterClose(t *testing.T) {
	fake := newFakeCapability()
	c := NewCoordinator(fake)
	c.Close()

	sub, err := c.SubmitImage([]byte("jpeg"), prompts.EN, "")
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, uint64(0), sub.Generation)
	assert.Equal(t, Initial{}, c.State())
	select {
	case <-fake.calls:
		t.Fatal("capability called on a closed coordinator")
	default:
	}
}
