// Package typing simulates incremental text rendering: it turns a complete
// response into a sequence of growing prefixes with randomized,
// punctuation-aware pacing, the way a person (or a streaming model) would
// appear to type.
package typing

import (
	"math/rand"
	"sync"
	"time"
)

// State is the engine's lifecycle phase.
type State int

const (
	// Idle means no target; nothing is being revealed.
	Idle State = iota
	// Revealing means a timer chain is growing the visible prefix.
	Revealing
	// Done means the last target was revealed to its full length.
	Done
)

// Config tunes chunking and pacing. Zero values fall back to defaults.
type Config struct {
	// Inter-tick delay bounds by pacing class.
	NormalMin, NormalMax     time.Duration // plain characters
	BurstMin, BurstMax       time.Duration // plain characters while bursting
	PauseMin, PauseMax       time.Duration // after . ! ?
	MidPauseMin, MidPauseMax time.Duration // after , ; :

	// BurstChance is the per-tick probability of arming burst mode once
	// BurstAfter characters are revealed; BurstExitChance is the per-tick
	// probability of disarming it.
	BurstChance     float64
	BurstExitChance float64
	BurstAfter      int

	// InitialReveal is shown instantly for targets longer than itself.
	InitialReveal int
}

// DefaultConfig returns the tuning observed in production.
func DefaultConfig() Config {
	return Config{
		NormalMin: 1 * time.Millisecond, NormalMax: 5 * time.Millisecond,
		BurstMin: 1 * time.Millisecond, BurstMax: 3 * time.Millisecond,
		PauseMin: 10 * time.Millisecond, PauseMax: 30 * time.Millisecond,
		MidPauseMin: 5 * time.Millisecond, MidPauseMax: 15 * time.Millisecond,
		BurstChance:     0.4,
		BurstExitChance: 0.3,
		BurstAfter:      5,
		InitialReveal:   10,
	}
}

// DelayPolicy computes the wait before the next tick, given the last
// character of the chunk about to be revealed and whether burst mode is
// active. Tests substitute a deterministic policy.
type DelayPolicy func(lastChar rune, burst bool) time.Duration

// Lookup resolves a target message id to its full text. A failed lookup
// (message cleared mid-reveal) sends the engine back to Idle.
type Lookup func(id string) (string, bool)

// Engine reveals one target message at a time. Retargeting cancels the
// previous reveal; at most one timer is ever pending.
type Engine struct {
	mu     sync.Mutex
	cfg    Config
	rng    *rand.Rand
	delay  DelayPolicy
	lookup Lookup
	manual bool

	// onFrame fires after every visible change, outside the lock.
	onFrame func()

	state      State
	gen        uint64 // invalidates timers from superseded targets
	targetID   string
	text       []rune
	revealed   int
	pending    int // chunk size the next tick will reveal
	burst      bool
	burstChunk int
	timer      *time.Timer
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig overrides the default tuning.
func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithRand substitutes the random source, for reproducible chunking.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) { e.rng = rng }
}

// WithDelayPolicy substitutes the pacing computation.
func WithDelayPolicy(p DelayPolicy) Option {
	return func(e *Engine) { e.delay = p }
}

// WithManualTicks disables self-scheduling; the caller drives the engine by
// calling Tick. Used by tests to assert exact reveal sequences.
func WithManualTicks() Option {
	return func(e *Engine) { e.manual = true }
}

// WithOnFrame registers a repaint callback.
func WithOnFrame(fn func()) Option {
	return func(e *Engine) { e.onFrame = fn }
}

// New creates an idle engine that resolves targets through lookup.
func New(lookup Lookup, opts ...Option) *Engine {
	e := &Engine{
		cfg:    DefaultConfig(),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		lookup: lookup,
		state:  Idle,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.delay == nil {
		e.delay = e.defaultDelay
	}
	return e
}

// Start begins revealing the message with the given id and full text. Any
// reveal in progress is cancelled first. Targets no longer than the initial
// reveal threshold start from an empty prefix.
func (e *Engine) Start(id, text string) {
	e.mu.Lock()

	e.cancelLocked()
	e.gen++
	e.targetID = id
	e.text = []rune(text)
	e.burst = false
	e.burstChunk = 0

	if len(e.text) == 0 {
		e.state = Done
		e.targetID = ""
		e.mu.Unlock()
		e.frame()
		return
	}

	e.revealed = 0
	if len(e.text) > e.cfg.InitialReveal {
		e.revealed = e.cfg.InitialReveal
	}
	e.state = Revealing

	e.armNextLocked(e.gen)
	e.mu.Unlock()
	e.frame()
}

// Cancel stops any reveal and returns the engine to Idle.
func (e *Engine) Cancel() {
	e.mu.Lock()
	e.cancelLocked()
	e.gen++
	e.state = Idle
	e.mu.Unlock()
	e.frame()
}

// cancelLocked clears the pending timer and target bookkeeping.
func (e *Engine) cancelLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.targetID = ""
	e.burst = false
	e.burstChunk = 0
	e.pending = 0
	e.revealed = 0
	e.text = nil
}

// Tick advances the reveal by one chunk. Under manual ticks this is the
// caller's drive shaft; otherwise the internal timer calls it.
func (e *Engine) Tick() {
	e.mu.Lock()
	gen := e.gen
	e.stepLocked(gen)
	e.mu.Unlock()
	e.frame()
}

func (e *Engine) tickFromTimer(gen uint64) {
	e.mu.Lock()
	if gen != e.gen {
		// A Start or Cancel superseded this timer between fire and lock.
		e.mu.Unlock()
		return
	}
	e.stepLocked(gen)
	e.mu.Unlock()
	e.frame()
}

// stepLocked is one tick fire: reveal the chunk computed when the tick was
// scheduled, then arm the next one.
func (e *Engine) stepLocked(gen uint64) {
	if e.state != Revealing {
		return
	}

	// The target may have vanished (conversation cleared mid-reveal).
	if e.lookup != nil {
		if _, ok := e.lookup(e.targetID); !ok {
			e.cancelLocked()
			e.state = Idle
			return
		}
	}

	e.revealed += e.pending
	if e.revealed >= len(e.text) {
		e.revealed = len(e.text)
		e.state = Done
		if e.timer != nil {
			e.timer.Stop()
			e.timer = nil
		}
		e.targetID = ""
		e.burst = false
		e.burstChunk = 0
		e.pending = 0
		return
	}

	e.armNextLocked(gen)
}

// armNextLocked computes the next chunk and schedules its tick. The delay is
// drawn from the pacing class of the last character the chunk will reveal.
func (e *Engine) armNextLocked(gen uint64) {
	// Burst mode arms once the reveal is under way and disarms
	// probabilistically; while armed the chunk size is drawn once and held.
	if !e.burst && e.revealed > e.cfg.BurstAfter && e.rng.Float64() < e.cfg.BurstChance {
		e.burst = true
		e.burstChunk = 2 + e.rng.Intn(3)
	} else if e.burst && e.rng.Float64() < e.cfg.BurstExitChance {
		e.burst = false
	}

	chunk := 1
	if e.burst {
		chunk = e.burstChunk
	}
	if e.revealed+chunk > len(e.text) {
		chunk = len(e.text) - e.revealed
	}
	e.pending = chunk

	if !e.manual {
		e.scheduleLocked(gen, e.delay(e.text[e.revealed+chunk-1], e.burst))
	}
}

// scheduleLocked arms the single pending timer. Any previous timer must
// already be stopped; two live timers would double-advance the reveal.
func (e *Engine) scheduleLocked(gen uint64, d time.Duration) {
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(d, func() { e.tickFromTimer(gen) })
}

// defaultDelay is the randomized punctuation-aware pacing policy.
func (e *Engine) defaultDelay(lastChar rune, burst bool) time.Duration {
	switch lastChar {
	case '.', '!', '?':
		return e.between(e.cfg.PauseMin, e.cfg.PauseMax)
	case ',', ';', ':':
		return e.between(e.cfg.MidPauseMin, e.cfg.MidPauseMax)
	}
	if burst {
		return e.between(e.cfg.BurstMin, e.cfg.BurstMax)
	}
	return e.between(e.cfg.NormalMin, e.cfg.NormalMax)
}

func (e *Engine) between(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(e.rng.Int63n(int64(max-min+1)))
}

// Revealed returns the currently visible prefix.
func (e *Engine) Revealed() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return string(e.text[:e.revealed])
}

// IsRevealing reports whether the message with the given id is the one
// currently being revealed. The renderer shows the caret only for it.
func (e *Engine) IsRevealing(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == Revealing && e.targetID == id
}

// State returns the current lifecycle phase.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) frame() {
	if e.onFrame != nil {
		e.onFrame()
	}
}
