// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package transport delivers report payloads to the tag writer service.
//
// The Gate accepts one owned payload at a time, wraps it in a minimal
// HTTP/1.1 POST and sends it on a fresh TCP connection from its own
// goroutine. A payload that is still in flight when the next one arrives is
// cancelled and released. Delivery is never retried.
package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Thermoquad/deltagate/pkg/sbuf"
	"github.com/rs/zerolog"
)

const (
	DefaultEndpoint    = "10.0.1.48:8074"
	DefaultPath        = "/tagwriter"
	DefaultDialTimeout = 5 * time.Second
	DefaultIOTimeout   = 10 * time.Second

	// requestOverhead is room reserved for the request line and headers
	requestOverhead = 100
)

// ErrUnexpectedHeader is returned when the reply does not start with an
// HTTP/1.x status line.
var ErrUnexpectedHeader = errors.New("unexpected HTTP header received")

// DialError reports a failed connection to the tag writer.
type DialError struct {
	Addr string
	Err  error
}

func (e *DialError) Error() string {
	return e.Err.Error() + " while connecting to " + e.Addr
}

func (e *DialError) Unwrap() error {
	return e.Err
}

// StatusError reports a reply with a status other than 200.
type StatusError struct {
	Status int
	Line   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("error returned from remote server: %q", e.Line)
}

// Config describes the tag writer endpoint.
type Config struct {
	Endpoint    string // host:port
	Path        string
	DialTimeout time.Duration
	IOTimeout   time.Duration
}

// DefaultConfig returns the tag writer defaults.
func DefaultConfig() Config {
	return Config{
		Endpoint:    DefaultEndpoint,
		Path:        DefaultPath,
		DialTimeout: DefaultDialTimeout,
		IOTimeout:   DefaultIOTimeout,
	}
}

// Result describes the outcome of one delivery attempt.
type Result struct {
	Status   int
	Bytes    int
	Duration time.Duration
	Err      error
}

// Stats are cumulative delivery counters.
type Stats struct {
	Posted     uint64
	Delivered  uint64
	Failed     uint64
	Superseded uint64
}

// Gate serialises report delivery.
type Gate struct {
	cfg    Config
	log    zerolog.Logger
	dialer net.Dialer

	// OnResult, if set, is called from the send goroutine after every
	// attempt.
	OnResult func(Result)

	mu       sync.Mutex
	inflight *flight
	wg       sync.WaitGroup

	posted     atomic.Uint64
	delivered  atomic.Uint64
	failed     atomic.Uint64
	superseded atomic.Uint64
}

// flight is one request being delivered. The buffer is released exactly
// once, by whichever of the sender or a superseding Post gets there first.
type flight struct {
	buf    *sbuf.Buffer
	once   sync.Once
	cancel context.CancelFunc
}

func (f *flight) release() {
	f.once.Do(f.buf.Release)
}

// NewGate creates a gate for cfg. Zero fields take their defaults.
func NewGate(cfg Config, logger zerolog.Logger) *Gate {
	def := DefaultConfig()
	if cfg.Endpoint == "" {
		cfg.Endpoint = def.Endpoint
	}
	if cfg.Path == "" {
		cfg.Path = def.Path
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = def.DialTimeout
	}
	if cfg.IOTimeout <= 0 {
		cfg.IOTimeout = def.IOTimeout
	}

	return &Gate{
		cfg:    cfg,
		log:    logger.With().Str("component", "transport").Logger(),
		dialer: net.Dialer{Timeout: cfg.DialTimeout},
	}
}

// Endpoint returns the configured host:port.
func (g *Gate) Endpoint() string {
	return g.cfg.Endpoint
}

// Stats returns a snapshot of the delivery counters.
func (g *Gate) Stats() Stats {
	return Stats{
		Posted:     g.posted.Load(),
		Delivered:  g.delivered.Load(),
		Failed:     g.failed.Load(),
		Superseded: g.superseded.Load(),
	}
}

// Busy reports whether a payload is in flight.
func (g *Gate) Busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inflight != nil
}

// Post takes ownership of content and starts delivering it. content is
// released before Post returns, whether or not the request could be built.
// The returned error only covers building the request; delivery failures
// are logged and reported through OnResult.
func (g *Gate) Post(ctx context.Context, content *sbuf.Buffer) error {
	g.mu.Lock()
	if prev := g.inflight; prev != nil {
		g.log.Warn().Msg("previous payload still in flight, releasing it")
		prev.cancel()
		prev.release()
		g.inflight = nil
		g.superseded.Add(1)
	}
	g.mu.Unlock()

	req, err := g.buildRequest(content)
	content.Release()
	if err != nil {
		g.log.Error().Err(err).Msg("unable to prepare HTTP message for transmission")
		return err
	}

	sendCtx, cancel := context.WithCancel(ctx)
	f := &flight{buf: req, cancel: cancel}
	payload := req.Bytes()

	g.mu.Lock()
	g.inflight = f
	g.mu.Unlock()

	g.posted.Add(1)
	g.wg.Add(1)
	go g.send(sendCtx, f, payload)
	return nil
}

// Wait blocks until every started delivery has finished.
func (g *Gate) Wait() {
	g.wg.Wait()
}

// buildRequest wraps content in the POST request line and headers.
func (g *Gate) buildRequest(content *sbuf.Buffer) (*sbuf.Buffer, error) {
	if content == nil || content.Released() {
		return nil, fmt.Errorf("failed to build request: %w", sbuf.ErrReleased)
	}

	req := sbuf.New(content.Len() + requestOverhead)
	req.AppendString("POST ")
	req.AppendString(g.cfg.Path)
	req.AppendString(" HTTP/1.1\r\nHost: ")
	req.AppendString(g.cfg.Endpoint)
	req.AppendString("\r\nContent-Type: application/json\r\n" +
		"Connection: close\r\n" +
		"Content-Length: ")
	req.AppendInt(int64(content.Len()))
	req.AppendString("\r\n\r\n")
	req.AppendBuffer(content)

	if err := req.Err(); err != nil {
		req.Release()
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	return req, nil
}

func (g *Gate) send(ctx context.Context, f *flight, payload []byte) {
	defer g.wg.Done()
	defer g.finish(f)

	start := time.Now()
	status, err := g.deliver(ctx, payload)
	res := Result{
		Status:   status,
		Bytes:    len(payload),
		Duration: time.Since(start),
		Err:      err,
	}

	if err != nil {
		g.failed.Add(1)
		g.log.Error().Err(err).Int("status", status).Msg("report delivery failed")
	} else {
		g.delivered.Add(1)
		g.log.Debug().Int("bytes", len(payload)).Dur("took", res.Duration).Msg("report delivered")
	}

	if g.OnResult != nil {
		g.OnResult(res)
	}
}

// finish clears the in-flight slot if f still holds it and releases f.
func (g *Gate) finish(f *flight) {
	g.mu.Lock()
	if g.inflight == f {
		g.inflight = nil
	}
	g.mu.Unlock()
	f.cancel()
	f.release()
}

func (g *Gate) deliver(ctx context.Context, payload []byte) (int, error) {
	g.log.Debug().Str("endpoint", g.cfg.Endpoint).Msg("connecting to server")
	conn, err := g.dialer.DialContext(ctx, "tcp", g.cfg.Endpoint)
	if err != nil {
		return 0, &DialError{Addr: g.cfg.Endpoint, Err: err}
	}
	defer conn.Close()

	// Cancelling ctx aborts blocked I/O.
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Now())
	})
	defer stop()

	if err := conn.SetDeadline(time.Now().Add(g.cfg.IOTimeout)); err != nil {
		return 0, fmt.Errorf("failed to set deadline: %w", err)
	}

	n, err := conn.Write(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to send request: %w", err)
	}
	g.log.Debug().Int("bytes", n).Msg("request sent")

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && line == "" {
		return 0, fmt.Errorf("failed to read response: %w", err)
	}

	status, err := ParseStatusLine(line)
	if err != nil {
		return 0, err
	}
	if status != 200 {
		return status, &StatusError{Status: status, Line: trimLine(line)}
	}
	return status, nil
}

// ParseStatusLine extracts the status code from a reply beginning
// "HTTP/1.x ". Digits are read up to the first non-digit.
func ParseStatusLine(line string) (int, error) {
	const prefix = "HTTP/1."
	if len(line) < len(prefix)+2 || line[:len(prefix)] != prefix || line[len(prefix)+1] != ' ' {
		return 0, fmt.Errorf("%w: %q", ErrUnexpectedHeader, trimLine(line))
	}

	status := 0
	for i := len(prefix) + 2; i < len(line); i++ {
		c := line[i]
		if c < '0' || c > '9' {
			break
		}
		status = status*10 + int(c-'0')
	}
	return status, nil
}

func trimLine(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
