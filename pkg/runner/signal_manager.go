package runner

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// SignalManager turns SIGINT and SIGTERM into a two-stage shutdown. The first
// signal calls onInterrupt, which normally requests an abort so the run stops
// at the next node boundary with its state saved. The second signal, or the
// first when onInterrupt is nil, cancels the context.
type SignalManager struct {
	ctx    context.Context
	cancel context.CancelFunc

	signals     chan os.Signal
	onInterrupt func()
	stopOnce    sync.Once
	done        chan struct{}
}

// NewSignalManager creates a new manager and immediately starts listening for signals.
func NewSignalManager(onInterrupt func()) *SignalManager {
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	return newSignalManager(signals, onInterrupt)
}

func newSignalManager(signals chan os.Signal, onInterrupt func()) *SignalManager {
	sm := &SignalManager{
		signals:     signals,
		onInterrupt: onInterrupt,
		done:        make(chan struct{}),
	}
	sm.ctx, sm.cancel = context.WithCancel(context.Background())
	go sm.loop()
	return sm
}

func (sm *SignalManager) loop() {
	interrupted := false
	for {
		select {
		case <-sm.done:
			return
		case <-sm.signals:
			if !interrupted && sm.onInterrupt != nil {
				interrupted = true
				sm.onInterrupt()
				continue
			}
			sm.cancel()
			return
		}
	}
}

// Context returns the run context. It is cancelled by a forced interrupt or
// by Stop.
func (sm *SignalManager) Context() context.Context {
	return sm.ctx
}

// Stop permanently stops the signal listener.
func (sm *SignalManager) Stop() {
	sm.stopOnce.Do(func() {
		signal.Stop(sm.signals)
		close(sm.done)
		sm.cancel()
	})
}
