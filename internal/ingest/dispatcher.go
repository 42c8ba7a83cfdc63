package ingest

import (
	"context"
	"sync"
	"time"
)

// Handler zpracuje jednu zprávu. Coordinator ho implementuje.
type Handler interface {
	Handle(ctx context.Context, topic string, payload []byte) Outcome
}

// Dispatcher spouští každou zprávu v samostatné goroutině, aby pomalé
// úložiště neblokovalo síťovou smyčku MQTT klienta. Pořadí mezi zprávami
// se negarantuje.
type Dispatcher struct {
	ctx     context.Context
	handler Handler
	timeout time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher: timeout <= 0 znamená bez limitu na zprávu.
func NewDispatcher(ctx context.Context, h Handler, timeout time.Duration) *Dispatcher {
	return &Dispatcher{ctx: ctx, handler: h, timeout: timeout}
}

// Submit převezme zprávu. Payload se kopíruje, paho buffer po návratu recykluje.
// Po Close vrací false a zprávu zahodí.
func (d *Dispatcher) Submit(topic string, payload []byte) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return false
	}
	d.wg.Add(1)
	d.mu.Unlock()

	buf := make([]byte, len(payload))
	copy(buf, payload)

	go func() {
		defer d.wg.Done()

		ctx, cancel := d.messageContext()
		defer cancel()

		d.handler.Handle(ctx, topic, buf)
	}()
	return true
}

func (d *Dispatcher) messageContext() (context.Context, context.CancelFunc) {
	if d.timeout > 0 {
		return context.WithTimeout(d.ctx, d.timeout)
	}
	return context.WithCancel(d.ctx)
}

// Close přestane přijímat nové zprávy a počká na rozpracované.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.Wait()
}

// Wait počká na všechny rozpracované zprávy.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
