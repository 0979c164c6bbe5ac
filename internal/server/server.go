// Package server exposes the event bus to websocket clients so a running
// simulation can be watched from outside.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/zeusync/packwork/internal/core/events/bus"
	"github.com/zeusync/packwork/internal/core/observability/log"
)

const (
	EventsPath        = "/events"
	defaultBufferSize = 256
	shutdownTimeout   = 5 * time.Second
)

// Inspector forwards every bus event to the connected websocket clients.
type Inspector struct {
	bus    bus.EventBus
	logger log.Log
	buffer int

	mu      sync.Mutex
	clients map[*client]struct{}
	sub     bus.Subscription
	srv     *http.Server
	addr    net.Addr
	wg      sync.WaitGroup
	dropped uint64
}

type Option func(*Inspector)

func WithLogger(l log.Log) Option {
	return func(i *Inspector) { i.logger = l }
}

// WithBuffer sets how many frames a slow client may lag behind before
// frames are dropped for it.
func WithBuffer(n int) Option {
	return func(i *Inspector) {
		if n > 0 {
			i.buffer = n
		}
	}
}

func New(b bus.EventBus, opts ...Option) *Inspector {
	i := &Inspector{
		bus:     b,
		logger:  log.Nop(),
		buffer:  defaultBufferSize,
		clients: make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Handler serves the event stream. It subscribes to the bus on first use.
func (i *Inspector) Handler() (http.Handler, error) {
	if err := i.subscribe(); err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.HandleFunc(EventsPath, i.handleEvents)
	return mux, nil
}

func (i *Inspector) subscribe() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.sub != nil {
		return nil
	}
	sub, err := i.bus.Subscribe(bus.Wildcard, i.broadcast)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	i.sub = sub
	return nil
}

// Start listens on addr and serves until Stop or ctx is done.
func (i *Inspector) Start(ctx context.Context, addr string) error {
	i.mu.Lock()
	if i.srv != nil {
		i.mu.Unlock()
		return ErrAlreadyRunning
	}
	i.mu.Unlock()

	handler, err := i.Handler()
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrListenerFailed, err)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	i.mu.Lock()
	i.srv = srv
	i.addr = ln.Addr()
	i.mu.Unlock()

	i.logger.Info("inspector listening", log.String("addr", ln.Addr().String()), log.String("path", EventsPath))

	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			i.logger.Error("inspector stopped serving", log.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := i.Stop(stopCtx); err != nil && !errors.Is(err, ErrNotRunning) {
			i.logger.Warn("inspector shutdown", log.Error(err))
		}
	}()
	return nil
}

// Addr is the bound address while running.
func (i *Inspector) Addr() net.Addr {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.addr
}

// Stop closes the listener, disconnects every client and cancels the bus
// subscription.
func (i *Inspector) Stop(ctx context.Context) error {
	i.mu.Lock()
	srv := i.srv
	i.srv = nil
	i.addr = nil
	i.mu.Unlock()
	if srv == nil {
		return ErrNotRunning
	}

	err := srv.Shutdown(ctx)
	i.Close()
	i.wg.Wait()
	i.logger.Info("inspector stopped", log.Uint64("dropped_frames", i.Dropped()))
	return err
}

// Close disconnects every client and cancels the bus subscription. It is
// enough for handlers mounted on a foreign server.
func (i *Inspector) Close() {
	i.mu.Lock()
	sub := i.sub
	i.sub = nil
	clients := make([]*client, 0, len(i.clients))
	for c := range i.clients {
		clients = append(clients, c)
	}
	i.mu.Unlock()

	if sub != nil {
		_ = sub.Cancel()
	}
	for _, c := range clients {
		c.close()
	}
}

// Clients is the number of connected clients.
func (i *Inspector) Clients() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.clients)
}

// Dropped counts frames skipped for clients whose buffer was full.
func (i *Inspector) Dropped() uint64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.dropped
}

func (i *Inspector) broadcast(e bus.Event) error {
	f := frameOf(e)
	i.mu.Lock()
	defer i.mu.Unlock()
	for c := range i.clients {
		if !c.offer(f) {
			i.dropped++
		}
	}
	return nil
}
