package voice

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestNewGate(t *testing.T) {
	gate := NewGate()

	// Initially nothing is allowed
	if gate.CanListen() {
		t.Error("NewGate() should not allow listening")
	}

	gate.SetConnected(true)
	gate.SetShouldListen(true)
	if !gate.CanListen() {
		t.Error("connected gate with listen intent should allow listening")
	}

	gate.SetSpeaking(true)
	if gate.CanListen() {
		t.Error("should not listen while speaking")
	}
	gate.SetSpeaking(false)

	if !gate.BeginSend() {
		t.Fatal("BeginSend() on idle gate should succeed")
	}
	if gate.CanListen() {
		t.Error("should not listen while sending")
	}
	gate.EndSend()

	gate.SetShouldListen(false)
	if gate.CanListen() {
		t.Error("should not listen without intent")
	}
}

func TestGate_BeginSendIsExclusive(t *testing.T) {
	gate := NewGate()
	if !gate.BeginSend() {
		t.Fatal("first BeginSend() should succeed")
	}
	if gate.BeginSend() {
		t.Error("second BeginSend() should fail while a send is in flight")
	}
	gate.EndSend()
	if !gate.BeginSend() {
		t.Error("BeginSend() after EndSend() should succeed")
	}
}

func TestGateConcurrency(t *testing.T) {
	gate := NewGate()

	var wg sync.WaitGroup
	var wins atomic.Int32

	// Only one of many concurrent senders may win
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if gate.BeginSend() {
				wins.Add(1)
			}
		}()
	}

	// Readers must not race with writers
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(on bool) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				gate.SetSpeaking(on)
				_ = gate.CanListen()
			}
		}(i%2 == 0)
	}

	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("BeginSend() winners = %d, want 1", wins.Load())
	}
}
