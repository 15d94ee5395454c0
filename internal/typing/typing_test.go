package typing

import (
	"math/rand"
	"testing"
	"time"
)

// always resolves the target to the given text.
func fixedLookup(text string) Lookup {
	return func(id string) (string, bool) { return text, true }
}

// noBurst makes the reveal strictly one character per tick.
func noBurst() Config {
	cfg := DefaultConfig()
	cfg.BurstChance = 0
	return cfg
}

func newManualEngine(text string, cfg Config, seed int64) *Engine {
	return New(fixedLookup(text),
		WithConfig(cfg),
		WithRand(rand.New(rand.NewSource(seed))),
		WithManualTicks(),
	)
}

func runToDone(t *testing.T, e *Engine, maxTicks int) {
	t.Helper()
	for i := 0; i < maxTicks; i++ {
		if e.State() == Done {
			return
		}
		e.Tick()
	}
	if e.State() != Done {
		t.Fatalf("engine not Done after %d ticks (state=%d)", maxTicks, e.State())
	}
}

func TestShortResponseStartsEmpty(t *testing.T) {
	e := newManualEngine("Hi there!", noBurst(), 1)
	e.Start("m1", "Hi there!")

	if got := e.Revealed(); got != "" {
		t.Errorf("initial reveal for short response = %q, want empty", got)
	}
	if !e.IsRevealing("m1") {
		t.Error("engine not revealing m1")
	}
}

func TestLongResponseStartsWithPrefix(t *testing.T) {
	text := "This response is well over ten characters."
	e := newManualEngine(text, noBurst(), 1)
	e.Start("m1", text)

	if got := e.Revealed(); got != text[:10] {
		t.Errorf("initial reveal = %q, want %q", got, text[:10])
	}
}

func TestRevealMonotonicAndExact(t *testing.T) {
	texts := []string{
		"Hi there!",
		"Hello",
		"A somewhat longer answer, with commas; and pauses. Twice!",
		"exactly11ch",
	}
	for _, text := range texts {
		for seed := int64(0); seed < 5; seed++ {
			e := newManualEngine(text, DefaultConfig(), seed)
			e.Start("m1", text)

			prev := len([]rune(e.Revealed()))
			for i := 0; i < len(text)+10; i++ {
				if e.State() == Done {
					break
				}
				e.Tick()
				cur := len([]rune(e.Revealed()))
				if cur < prev {
					t.Fatalf("%q seed %d: prefix shrank %d -> %d", text, seed, prev, cur)
				}
				if cur > len([]rune(text)) {
					t.Fatalf("%q seed %d: overshot to %d", text, seed, cur)
				}
				prev = cur
			}
			if e.State() != Done {
				t.Fatalf("%q seed %d: never finished", text, seed)
			}
			if got := e.Revealed(); got != text {
				t.Errorf("%q seed %d: final reveal = %q", text, seed, got)
			}
		}
	}
}

func TestNoBurstRevealsOneCharPerTick(t *testing.T) {
	e := newManualEngine("Hi there!", noBurst(), 1)
	e.Start("m1", "Hi there!")

	want := "Hi there!"
	for i := 1; i <= len(want); i++ {
		e.Tick()
		if got := e.Revealed(); got != want[:i] {
			t.Fatalf("tick %d revealed %q, want %q", i, got, want[:i])
		}
	}
	if e.State() != Done {
		t.Error("engine not Done after full reveal")
	}
	if e.IsRevealing("m1") {
		t.Error("still revealing after Done")
	}
}

func TestBurstChunksBounded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BurstChance = 1.0     // arm as soon as allowed
	cfg.BurstExitChance = 0.0 // never disarm

	text := "0123456789abcdefghijklmnopqrstuvwxyz"
	e := newManualEngine(text, cfg, 7)
	e.Start("m1", text)

	prev := len([]rune(e.Revealed()))
	sawBurst := false
	for e.State() != Done {
		e.Tick()
		cur := len([]rune(e.Revealed()))
		step := cur - prev
		if step > 4 {
			t.Fatalf("chunk of %d exceeds burst maximum of 4", step)
		}
		if step >= 2 {
			sawBurst = true
		}
		prev = cur
	}
	if !sawBurst {
		t.Error("burst mode never produced a multi-char chunk despite certainty")
	}
}

func TestRetargetCancelsPrevious(t *testing.T) {
	e := newManualEngine("first message text", noBurst(), 1)
	e.Start("m1", "first message text")
	e.Tick()

	e.Start("m2", "second message body")
	if e.IsRevealing("m1") {
		t.Error("old target still marked revealing after retarget")
	}
	if !e.IsRevealing("m2") {
		t.Error("new target not revealing")
	}

	runToDone(t, e, 100)
	if got := e.Revealed(); got != "second message body" {
		t.Errorf("final reveal = %q, want new target's text", got)
	}
}

func TestMissingTargetGoesIdle(t *testing.T) {
	present := true
	lookup := func(id string) (string, bool) {
		if !present {
			return "", false
		}
		return "some response text here", true
	}
	e := New(lookup, WithConfig(noBurst()), WithManualTicks(),
		WithRand(rand.New(rand.NewSource(1))))
	e.Start("m1", "some response text here")
	e.Tick()

	// Conversation cleared out from under the engine.
	present = false
	e.Tick()

	if e.State() != Idle {
		t.Fatalf("state after missing target = %d, want Idle", e.State())
	}
	if e.Revealed() != "" {
		t.Errorf("revealed after reset = %q, want empty", e.Revealed())
	}
}

func TestEmptyTextImmediatelyDone(t *testing.T) {
	e := newManualEngine("", noBurst(), 1)
	e.Start("m1", "")
	if e.State() != Done {
		t.Errorf("empty target state = %d, want Done", e.State())
	}
}

func TestCancelStopsReveal(t *testing.T) {
	e := newManualEngine("some text to reveal", noBurst(), 1)
	e.Start("m1", "some text to reveal")
	e.Tick()
	e.Cancel()

	if e.State() != Idle {
		t.Fatalf("state after Cancel = %d, want Idle", e.State())
	}
	before := e.Revealed()
	e.Tick() // must be a no-op
	if e.Revealed() != before {
		t.Error("tick after Cancel advanced the reveal")
	}
}

func TestDefaultDelayClasses(t *testing.T) {
	cfg := DefaultConfig()
	e := New(fixedLookup("x"), WithConfig(cfg), WithRand(rand.New(rand.NewSource(42))))

	tests := []struct {
		name     string
		last     rune
		burst    bool
		min, max time.Duration
	}{
		{"sentence end", '.', false, cfg.PauseMin, cfg.PauseMax},
		{"exclamation", '!', true, cfg.PauseMin, cfg.PauseMax},
		{"question", '?', false, cfg.PauseMin, cfg.PauseMax},
		{"comma", ',', false, cfg.MidPauseMin, cfg.MidPauseMax},
		{"semicolon", ';', true, cfg.MidPauseMin, cfg.MidPauseMax},
		{"colon", ':', false, cfg.MidPauseMin, cfg.MidPauseMax},
		{"plain", 'a', false, cfg.NormalMin, cfg.NormalMax},
		{"plain burst", 'a', true, cfg.BurstMin, cfg.BurstMax},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 50; i++ {
				d := e.defaultDelay(tt.last, tt.burst)
				if d < tt.min || d > tt.max {
					t.Fatalf("delay %v outside [%v, %v]", d, tt.min, tt.max)
				}
			}
		})
	}
}

func TestInjectedDelayPolicy(t *testing.T) {
	var calls int
	policy := func(lastChar rune, burst bool) time.Duration {
		calls++
		return 0
	}
	e := New(fixedLookup("abcdef"), WithConfig(noBurst()), WithDelayPolicy(policy),
		WithRand(rand.New(rand.NewSource(1))))

	done := make(chan struct{})
	eng := e
	eng.onFrame = func() {
		if eng.State() == Done {
			select {
			case done <- struct{}{}:
			default:
			}
		}
	}

	e.Start("m1", "abcdef")
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timer-driven reveal with zero-delay policy never finished")
	}

	if calls == 0 {
		t.Error("injected delay policy never consulted")
	}
	if got := e.Revealed(); got != "abcdef" {
		t.Errorf("final reveal = %q", got)
	}
}
