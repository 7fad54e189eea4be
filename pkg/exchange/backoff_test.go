package exchange

import (
	"math/rand"
	"testing"
	"time"
)

func TestBackoffInitialRange(t *testing.T) {
	p := Params{
		AckTimeout:      2 * time.Second,
		AckRandomFactor: 1.5,
		MaxRetransmit:   4,
	}

	for seed := int64(0); seed < 50; seed++ {
		b := NewBackoffWithRand(p, rand.New(rand.NewSource(seed)))
		got := b.Peek()
		if got < 2*time.Second || got > 3*time.Second {
			t.Errorf("seed %d: initial delay %v outside [2s, 3s]", seed, got)
		}
	}
}

func TestBackoffFactorOneIsDeterministic(t *testing.T) {
	p := Params{
		AckTimeout:      40 * time.Millisecond,
		AckRandomFactor: 1,
		MaxRetransmit:   4,
	}

	b := NewBackoffWithRand(p, rand.New(rand.NewSource(7)))
	if got := b.Peek(); got != 40*time.Millisecond {
		t.Errorf("initial delay = %v, want exactly 40ms with factor 1", got)
	}
}

func TestBackoffDoubles(t *testing.T) {
	p := Params{
		AckTimeout:      100 * time.Millisecond,
		AckRandomFactor: 1,
		MaxRetransmit:   4,
	}
	b := NewBackoffWithRand(p, rand.New(rand.NewSource(1)))

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
	}
	for i, w := range want {
		if got := b.Next(); got != w {
			t.Errorf("Next() #%d = %v, want %v", i+1, got, w)
		}
	}
	if got := b.Attempts(); got != len(want) {
		t.Errorf("Attempts() = %d, want %d", got, len(want))
	}
}

func TestBackoffPeekDoesNotAdvance(t *testing.T) {
	p := Params{
		AckTimeout:      100 * time.Millisecond,
		AckRandomFactor: 1,
		MaxRetransmit:   4,
	}
	b := NewBackoffWithRand(p, rand.New(rand.NewSource(1)))

	first := b.Peek()
	if second := b.Peek(); second != first {
		t.Errorf("Peek() advanced: %v then %v", first, second)
	}
	if got := b.Attempts(); got != 0 {
		t.Errorf("Attempts() after Peek = %d, want 0", got)
	}

	b.Next()
	if got := b.Peek(); got != 2*first {
		t.Errorf("Peek() after one Next = %v, want %v", got, 2*first)
	}
}
