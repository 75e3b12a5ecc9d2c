// Package agent implements the in-meeting voice assistant.
//
// The agent consumes the caption scraper's event stream and runs a small
// state machine: a wake phrase earns a spoken acknowledgment, the next
// utterance becomes the question, the LLM's cleaned answer is synthesized
// into the meeting. A barge-in (someone talking over the bot) stops playback
// immediately and throws away whatever the LLM was still computing.
package agent

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/notulaai/notula/internal/captions"
	"github.com/notulaai/notula/pkg/provider/llm"
	"github.com/notulaai/notula/pkg/provider/tts"
)

const (
	// AckText is spoken when the wake phrase is recognized.
	AckText = "Yes, tell me. I'm listening."

	// ApologyText is spoken when the LLM fails or returns nothing usable.
	ApologyText = "Sorry, I could not find an answer to that."

	defaultSystemPrompt = "You are a meeting assistant who answers a spoken question from a live meeting. " +
		"Answer briefly, in plain conversational sentences, without markdown."

	defaultMaxAnswerTokens = 256
)

// State is the agent's position in the wake/query/respond cycle.
type State int

const (
	// Idle means the agent is waiting for the wake phrase.
	Idle State = iota
	// Acknowledging means the acknowledgment is being spoken.
	Acknowledging
	// AwaitingQuery means the ack finished and the next utterance is the question.
	AwaitingQuery
	// Responding means an answer is being computed or spoken.
	Responding
)

// Player is the slice of the audio output manager the agent needs: the
// synthesis sink plus playback inspection and preemption.
type Player interface {
	tts.StreamSink
	Playing() bool
	Stop()
}

// Option is a functional option for Agent.
type Option func(*Agent)

// WithSystemPrompt overrides the LLM system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(a *Agent) {
		a.systemPrompt = prompt
	}
}

// WithAckClip plays a pre-decoded PCM clip (mono 16-bit at sampleRate) as the
// wake acknowledgment instead of synthesizing [AckText].
func WithAckClip(pcm []byte, sampleRate int) Option {
	return func(a *Agent) {
		a.ackClip = pcm
		a.ackRate = sampleRate
	}
}

// Agent is the meeting voice assistant. Events are processed strictly
// serially on the Run goroutine; BargeIn is the only entry point called from
// outside it.
type Agent struct {
	speaker tts.Provider
	brain   llm.Provider
	out     Player

	systemPrompt string
	ackClip      []byte
	ackRate      int

	mu          sync.Mutex
	state       State
	cancelSpeak context.CancelFunc

	// skipWakeEcho marks that the next utterance is the finalization that
	// carried the wake phrase itself, not the question.
	skipWakeEcho bool

	// generation invalidates in-flight work: a barge-in bumps it, and any
	// LLM answer computed under an older generation is discarded.
	generation atomic.Int64
}

// New creates an Agent speaking through out.
func New(speaker tts.Provider, brain llm.Provider, out Player, opts ...Option) *Agent {
	a := &Agent{
		speaker:      speaker,
		brain:        brain,
		out:          out,
		systemPrompt: defaultSystemPrompt,
		state:        Idle,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// State returns the current state. Exposed for tests and logging.
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// BargeIn preempts whatever the agent is doing: playback stops, pending LLM
// work is invalidated, and the agent returns to Idle. Safe to call from any
// goroutine; the caption scraper calls it when a speaker talks over the bot.
func (a *Agent) BargeIn() {
	a.generation.Add(1)

	a.mu.Lock()
	cancel := a.cancelSpeak
	a.cancelSpeak = nil
	a.state = Idle
	a.skipWakeEcho = false
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	a.out.Stop()
}

// ackFinished moves to AwaitingQuery and arms the wake-echo skip, unless a
// barge-in already reset the agent.
func (a *Agent) ackFinished() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == Acknowledging {
		a.state = AwaitingQuery
		a.skipWakeEcho = true
	}
}

// Run consumes events until the channel closes or ctx is cancelled. Events
// are handled one at a time in arrival order.
func (a *Agent) Run(ctx context.Context, events <-chan captions.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			a.handle(ctx, e)
		}
	}
}

func (a *Agent) handle(ctx context.Context, e captions.Event) {
	switch e.Kind {
	case captions.KindWake:
		a.handleWake(ctx)
	case captions.KindUtterance:
		a.handleUtterance(ctx, e.Utterance.Text)
	}
}

func (a *Agent) handleWake(ctx context.Context) {
	a.mu.Lock()
	if a.state != Idle || a.out.Playing() {
		a.mu.Unlock()
		return
	}
	a.state = Acknowledging
	a.mu.Unlock()

	slog.Info("wake phrase recognized, acknowledging")
	if err := a.acknowledge(ctx); err != nil {
		slog.Warn("acknowledgment playback failed", "err", err)
		a.setStateIfCurrent(Acknowledging, Idle)
		return
	}
	a.ackFinished()
}

// acknowledge plays the canned ack clip when one is configured, otherwise
// synthesizes the ack text.
func (a *Agent) acknowledge(ctx context.Context) error {
	if a.ackClip == nil {
		return a.speak(ctx, AckText)
	}
	a.out.StartStream(a.ackRate)
	chunkSize := a.ackRate * 2 // one second of 16-bit mono
	for i := 0; i < len(a.ackClip); i += chunkSize {
		if ctx.Err() != nil {
			break
		}
		end := i + chunkSize
		if end > len(a.ackClip) {
			end = len(a.ackClip)
		}
		a.out.PushStreamChunk(a.ackClip[i:end])
	}
	// StopStream waits for the queue to drain, so the ack is fully audible
	// before the agent starts listening for the question.
	a.out.StopStream()
	return ctx.Err()
}

func (a *Agent) handleUtterance(ctx context.Context, question string) {
	a.mu.Lock()
	if a.state != AwaitingQuery {
		a.mu.Unlock()
		return
	}
	if a.skipWakeEcho {
		a.skipWakeEcho = false
		a.mu.Unlock()
		return
	}
	a.state = Responding
	a.mu.Unlock()

	gen := a.generation.Load()
	answer := a.answer(ctx, question)

	// A barge-in while the LLM was thinking invalidates the answer.
	if a.generation.Load() != gen {
		slog.Info("discarding stale answer after barge-in")
		return
	}

	if err := a.speak(ctx, answer); err != nil {
		slog.Warn("answer playback failed", "err", err)
	}
	a.setStateIfCurrent(Responding, Idle)
}

// answer asks the LLM and returns speakable text, falling back to the fixed
// apology on failure.
func (a *Agent) answer(ctx context.Context, question string) string {
	resp, err := a.brain.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: a.systemPrompt,
		Messages:     []llm.Message{{Role: "user", Content: question}},
		MaxTokens:    defaultMaxAnswerTokens,
	})
	if err != nil {
		slog.Warn("llm completion failed", "err", err)
		return ApologyText
	}
	cleaned := llm.CleanForSpeech(resp.Content)
	if cleaned == "" {
		return ApologyText
	}
	return cleaned
}

// speak synthesizes text into the meeting, blocking until the stream ends or
// a barge-in cancels it.
func (a *Agent) speak(ctx context.Context, text string) error {
	speakCtx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.cancelSpeak = cancel
	a.mu.Unlock()

	err := a.speaker.SynthesizeStream(speakCtx, text, a.out)

	a.mu.Lock()
	a.cancelSpeak = nil
	a.mu.Unlock()
	cancel()

	if speakCtx.Err() != nil {
		// Preempted: not a failure, the barge-in already reset state.
		return nil
	}
	return err
}

// setStateIfCurrent transitions from one state to another unless a barge-in
// already moved the agent elsewhere.
func (a *Agent) setStateIfCurrent(from, to State) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == from {
		a.state = to
	}
}
