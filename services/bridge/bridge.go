package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"chatbridge/lib/chatdom"
	"chatbridge/lib/scrapers/chat"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

type ConnState int32

const (
	ConnDisconnected ConnState = iota
	ConnConnecting
	ConnConnected
)

func (s ConnState) String() string {
	switch s {
	case ConnDisconnected:
		return "disconnected"
	case ConnConnecting:
		return "connecting"
	case ConnConnected:
		return "connected"
	}
	return "unknown"
}

const DefaultControlAddr = "127.0.0.1:8790"

// transport reconnect is a deliberately simpler policy than the
// engine's exponential pagination backoff, keep the two apart.
const DefaultReconnectInterval = 5000 * time.Millisecond

type Options struct {
	// loopback address of the control process
	Addr              string
	ReconnectInterval time.Duration
	Dialer            *websocket.Dialer
}

// Bridge owns the single persistent connection to the local control
// process and dispatches command envelopes against the live page.
type Bridge struct {
	page   chatdom.Page
	engine *Engine
	opts   Options

	state   atomic.Int32
	methods map[string]methodFunc

	// guards the current-session handle; scrapeAll swaps a fresh
	// session in and the previous one back out around its run
	sessionMu sync.Mutex
	session   *Session

	chatCache *expirable.LRU[string, []chat.ChatPreview]
}

func New(page chatdom.Page, engine *Engine, opts Options) *Bridge {
	if opts.Addr == "" {
		opts.Addr = DefaultControlAddr
	}
	if opts.ReconnectInterval <= 0 {
		opts.ReconnectInterval = DefaultReconnectInterval
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}

	b := &Bridge{
		page:      page,
		engine:    engine,
		opts:      opts,
		chatCache: expirable.NewLRU[string, []chat.ChatPreview](8, nil, time.Second*30),
	}
	b.registerMethods()
	return b
}

func (b *Bridge) State() ConnState {
	return ConnState(b.state.Load())
}

func (b *Bridge) setState(s ConnState) {
	b.state.Store(int32(s))
}

// CurrentSession returns the session handle an embedding caller last
// installed (or scrapeAll last restored). May be nil.
func (b *Bridge) CurrentSession() *Session {
	b.sessionMu.Lock()
	defer b.sessionMu.Unlock()
	return b.session
}

// SetSession installs a session handle, e.g. for an interactively
// triggered scrape run outside the rpc path.
func (b *Bridge) SetSession(s *Session) {
	b.sessionMu.Lock()
	defer b.sessionMu.Unlock()
	b.session = s
}

func (b *Bridge) swapSession(fresh *Session) *Session {
	b.sessionMu.Lock()
	defer b.sessionMu.Unlock()
	prev := b.session
	b.session = fresh
	return prev
}

// Run maintains the outbound connection until ctx is cancelled,
// redialing on a fixed interval whenever the transport drops.
// Protocol-level failures never tear the connection down; in-flight
// scrape sessions keep running regardless of transport state.
func (b *Bridge) Run(ctx context.Context) error {
	url := fmt.Sprintf("ws://%s/", b.opts.Addr)

	for {
		b.setState(ConnConnecting)
		conn, _, err := b.opts.Dialer.DialContext(ctx, url, nil)
		if err != nil {
			b.setState(ConnDisconnected)
			slog.WarnContext(ctx, "control connection failed",
				"addr", b.opts.Addr,
				"err", err,
			)
		} else {
			b.setState(ConnConnected)
			slog.InfoContext(ctx, "control connection open", "addr", b.opts.Addr)
			b.serve(ctx, conn)
			b.setState(ConnDisconnected)
			slog.WarnContext(ctx, "control connection lost", "addr", b.opts.Addr)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.opts.ReconnectInterval):
		}
	}
}

// serve reads envelopes until the connection breaks. One request is
// dispatched at a time; every valid envelope gets exactly one
// response.
func (b *Bridge) serve(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		response, ok := b.dispatch(ctx, data)
		if !ok {
			continue
		}
		payload, err := json.Marshal(response)
		if err != nil {
			slog.ErrorContext(ctx, "failed to marshal rpc response", "err", err)
			continue
		}
		err = conn.WriteMessage(websocket.TextMessage, payload)
		if err != nil {
			return
		}
	}
}

// dispatch parses one inbound envelope and runs its handler. The
// second return is false when no response can be produced because no
// valid id could be recovered.
func (b *Bridge) dispatch(ctx context.Context, data []byte) (Response, bool) {
	var request Request
	err := json.Unmarshal(data, &request)
	if err != nil || request.ID == "" {
		slog.WarnContext(ctx, "dropping malformed rpc message",
			"err", err,
			"bytes", len(data),
		)
		return Response{}, false
	}

	handler, known := b.methods[request.Method]
	if !known {
		return errorResponse(
			request.ID,
			CodeUnknownMethod,
			fmt.Sprintf("unknown method %q", request.Method),
		), true
	}

	result, err := b.call(ctx, handler, request.Params)
	if err != nil {
		return errorResponse(request.ID, CodeHandlerError, err.Error()), true
	}
	return Response{ID: request.ID, Result: result}, true
}

// call shields the read loop from handler panics, converting them into
// error responses like any other handler failure.
func (b *Bridge) call(ctx context.Context, handler methodFunc, params json.RawMessage) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler(ctx, params)
}
