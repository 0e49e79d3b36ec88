// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package gateway runs the polling loop: it owns an exchange.Machine, feeds
// it ticks, received bytes and timeouts, and carries out the effects it
// returns against the serial link and the report destinations.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Thermoquad/deltagate/internal/sink"
	"github.com/Thermoquad/deltagate/pkg/delta"
	"github.com/Thermoquad/deltagate/pkg/exchange"
	"github.com/Thermoquad/deltagate/pkg/report"
	"github.com/Thermoquad/deltagate/pkg/sbuf"
	"github.com/rs/zerolog"
)

const (
	readBufferSize = 256
	sinkTimeout    = 15 * time.Second
)

// ErrLinkClosed is returned by Run when the link reports end of stream.
var ErrLinkClosed = errors.New("link closed")

// Link is the half-duplex path to the inverter.
type Link interface {
	io.Reader
	io.Writer
}

// TxKeyer drives a transceiver's transmit enable line. Links that
// implement it are keyed around every request.
type TxKeyer interface {
	SetTx(on bool) error
}

// Drainer blocks until written bytes have left the UART.
type Drainer interface {
	Drain() error
}

// Poster takes ownership of a report payload. *transport.Gate implements it.
type Poster interface {
	Post(ctx context.Context, content *sbuf.Buffer) error
}

// Options configures a Gateway.
type Options struct {
	Catalog  delta.Catalog
	Exchange exchange.Config

	Interval     time.Duration
	SweepOnStart bool

	TxLeadDelay time.Duration
	TxTailDelay time.Duration

	Group         string
	StatsInterval time.Duration // zero disables the periodic statistics line
}

// Outcome is the result of one sweep.
type Outcome struct {
	Completed bool
	Recovered bool
	Values    []uint32 // result table, stale from TimedOut on after a timeout
	TimedOut  int      // index of the entry that timed out, -1 if completed
	Report    *report.Report
}

// Gateway polls one inverter.
type Gateway struct {
	opts    Options
	link    Link
	keyer   TxKeyer
	poster  Poster
	sinks   []sink.Sink
	log     zerolog.Logger
	machine *exchange.Machine
	stats   *delta.Statistics

	observer Observer

	rxOnce sync.Once
	rx     chan []byte
	rxErr  chan error

	timer    *time.Timer
	timerGen uint64
	timeouts chan uint64

	outcome *Outcome
	sinkWG  sync.WaitGroup
}

// New creates a gateway polling over link. poster may be nil when reports
// only go to sinks.
func New(link Link, poster Poster, sinks []sink.Sink, opts Options, logger zerolog.Logger) (*Gateway, error) {
	if link == nil {
		return nil, fmt.Errorf("gateway: nil link")
	}
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("gateway: poll interval must be positive")
	}
	if opts.Group == "" {
		opts.Group = report.DefaultGroup
	}

	m, err := exchange.New(opts.Catalog, opts.Exchange)
	if err != nil {
		return nil, err
	}

	g := &Gateway{
		opts:     opts,
		link:     link,
		poster:   poster,
		sinks:    sinks,
		log:      logger.With().Str("component", "gateway").Logger(),
		machine:  m,
		stats:    delta.NewStatistics(),
		rx:       make(chan []byte, 64),
		rxErr:    make(chan error, 1),
		timeouts: make(chan uint64, 4),
	}
	if k, ok := link.(TxKeyer); ok {
		g.keyer = k
	}
	return g, nil
}

// Observe registers fn to be called from the loop for every update. fn must
// not block. Call it before Run.
func (g *Gateway) Observe(fn Observer) {
	g.observer = fn
}

// Catalog returns the catalog being polled.
func (g *Gateway) Catalog() delta.Catalog {
	return g.machine.Catalog()
}

// Stats returns a copy of the counters. It is only safe to call while the
// loop is not running; observers get a copy with every update.
func (g *Gateway) Stats() delta.Statistics {
	return *g.stats
}

// Run polls until ctx is done or the link fails. A cancelled context is not
// an error.
func (g *Gateway) Run(ctx context.Context) error {
	g.log.Info().
		Dur("interval", g.opts.Interval).
		Int("entries", len(g.opts.Catalog)).
		Msg("polling started")

	err := g.loop(ctx, false)
	g.disarm()
	g.sinkWG.Wait()

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		g.log.Info().Msg("polling stopped")
		return nil
	}
	return err
}

// RunOnce performs a single sweep and returns its outcome once the sweep
// completes or times out. Reports are published as in Run.
func (g *Gateway) RunOnce(ctx context.Context) (*Outcome, error) {
	g.outcome = nil
	err := g.loop(ctx, true)
	g.disarm()
	g.sinkWG.Wait()
	if err != nil {
		return nil, err
	}
	return g.outcome, nil
}

func (g *Gateway) loop(ctx context.Context, once bool) error {
	g.rxOnce.Do(func() { go g.readLoop() })

	var tick <-chan time.Time
	if !once {
		ticker := time.NewTicker(g.opts.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	var statsTick <-chan time.Time
	if !once && g.opts.StatsInterval > 0 {
		ticker := time.NewTicker(g.opts.StatsInterval)
		defer ticker.Stop()
		statsTick = ticker.C
	}

	if once || g.opts.SweepOnStart {
		g.sweep(ctx)
	}

	for {
		if once && g.outcome != nil {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-tick:
			g.sweep(ctx)

		case p := <-g.rx:
			g.receive(ctx, p)

		case err := <-g.rxErr:
			return err

		case gen := <-g.timeouts:
			if gen != g.timerGen {
				continue
			}
			g.timer = nil
			g.handle(ctx, exchange.Timeout())

		case <-statsTick:
			g.log.Info().
				Uint64("sweeps", g.stats.Sweeps).
				Uint64("complete", g.stats.CompletedSweeps).
				Uint64("timed_out", g.stats.TimedOutSweeps).
				Uint64("crc_errors", g.stats.CRCErrors).
				Uint64("framing_errors", g.stats.FramingErrors).
				Int("overflow_bytes", g.machine.Dropped()).
				Msg("statistics")
		}
	}
}

// sweep starts a sweep. Bytes already queued by readLoop are fed to the
// machine first so a late reply to an abandoned request is discarded
// instead of answering the new sweep's first request.
func (g *Gateway) sweep(ctx context.Context) {
	for drained := false; !drained; {
		select {
		case p := <-g.rx:
			g.receive(ctx, p)
		default:
			drained = true
		}
	}
	g.handle(ctx, exchange.SweepTick())
}

func (g *Gateway) receive(ctx context.Context, p []byte) {
	g.log.Trace().Msg(delta.FormatTrace("rx", p))
	for _, b := range p {
		g.handle(ctx, exchange.ByteReceived(b))
	}
}

// readLoop forwards link reads to the loop until the link fails. It
// outlives individual RunOnce calls; bytes queued between sweeps are
// drained into the machine before the next sweep starts.
func (g *Gateway) readLoop() {
	buf := make([]byte, readBufferSize)
	for {
		n, err := g.link.Read(buf)
		if n > 0 {
			g.rx <- append([]byte(nil), buf[:n]...)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = ErrLinkClosed
			}
			g.rxErr <- fmt.Errorf("read error: %w", err)
			return
		}
	}
}

func (g *Gateway) handle(ctx context.Context, ev exchange.Event) {
	for _, eff := range g.machine.Handle(ev) {
		g.apply(ctx, eff)
	}
}

func (g *Gateway) apply(ctx context.Context, eff exchange.Effect) {
	switch e := eff.(type) {
	case exchange.Transmit:
		if e.Index == 0 {
			g.stats.RecordSweepStart()
			g.log.Debug().Msg("sweep started")
		}
		if err := g.transmit(e.Frame); err != nil {
			// The response timer decides the sweep.
			g.log.Error().Err(err).Stringer("command", e.Command).Msg("transmit failed")
		}
		g.notify(Update{Kind: UpdateTransmit, Index: e.Index, Command: e.Command})

	case exchange.ArmTimeout:
		g.arm(e.After)

	case exchange.DisarmTimeout:
		g.disarm()

	case exchange.Accepted:
		g.stats.Update(nil)
		cmd := g.opts.Catalog[e.Index]
		g.log.Debug().
			Stringer("command", cmd).
			Uint32("value", e.Reply.Value).
			Msg("reply accepted")
		g.notify(Update{Kind: UpdateAccepted, Index: e.Index, Command: cmd, Value: e.Reply.Value})

	case exchange.Rejected:
		g.stats.Update(e.Err)
		cmd := g.opts.Catalog[e.Index]
		g.log.Warn().Err(e.Err).Stringer("command", cmd).Msg("reply rejected")
		g.log.Debug().Msg(delta.FormatMismatch(e.Err))
		g.notify(Update{Kind: UpdateRejected, Index: e.Index, Command: cmd, Err: e.Err})

	case exchange.SweepComplete:
		g.stats.RecordSweepComplete()
		g.log.Info().Bool("recovered", e.Recovered).Msg("sweep complete")

		r, err := report.Normal(e.Values, g.opts.Catalog, e.Recovered, g.opts.Group)
		if err != nil {
			g.stats.RecordReport(err)
			g.log.Error().Err(err).Msg("report dropped")
		} else {
			g.publish(ctx, r)
		}
		g.outcome = &Outcome{Completed: true, Recovered: e.Recovered, Values: e.Values, TimedOut: -1, Report: r}
		g.notify(Update{Kind: UpdateComplete, Values: e.Values})

	case exchange.SweepTimedOut:
		g.stats.RecordTimeout()
		cmd := g.opts.Catalog[e.Index]
		g.log.Warn().Stringer("command", cmd).Msg("no reply, sweep abandoned")

		r := report.Timeout(g.opts.Group)
		g.publish(ctx, r)
		g.outcome = &Outcome{Values: g.machine.Values(), TimedOut: e.Index, Report: r}
		g.notify(Update{Kind: UpdateTimeout, Index: e.Index, Command: cmd})

	case exchange.SweepSkipped:
		g.stats.RecordSkipped()
		g.log.Warn().Stringer("state", e.State).Msg("sweep still running, tick skipped")
		g.notify(Update{Kind: UpdateSkipped})
	}
}

// transmit keys the line, writes frame and waits for it to drain before
// releasing the line.
func (g *Gateway) transmit(frame []byte) error {
	g.log.Debug().Msg(delta.FormatTrace("tx", frame))

	if g.keyer != nil {
		if err := g.keyer.SetTx(true); err != nil {
			return fmt.Errorf("tx enable: %w", err)
		}
		if g.opts.TxLeadDelay > 0 {
			time.Sleep(g.opts.TxLeadDelay)
		}
		defer func() {
			if g.opts.TxTailDelay > 0 {
				time.Sleep(g.opts.TxTailDelay)
			}
			if err := g.keyer.SetTx(false); err != nil {
				g.log.Error().Err(err).Msg("failed to release tx enable")
			}
		}()
	}

	if _, err := g.link.Write(frame); err != nil {
		return fmt.Errorf("write error: %w", err)
	}
	if d, ok := g.link.(Drainer); ok {
		if err := d.Drain(); err != nil {
			return fmt.Errorf("drain error: %w", err)
		}
	}
	return nil
}

func (g *Gateway) arm(after time.Duration) {
	g.disarm()
	gen := g.timerGen
	g.timer = time.AfterFunc(after, func() {
		select {
		case g.timeouts <- gen:
		default:
		}
	})
}

// disarm stops the response timer. Bumping the generation drops a fire
// that raced with the stop.
func (g *Gateway) disarm() {
	g.timerGen++
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}

// publish hands r to the transport and every sink. Sinks run off the loop.
func (g *Gateway) publish(ctx context.Context, r *report.Report) {
	if g.poster != nil {
		buf, err := r.JSON()
		g.stats.RecordReport(err)
		if err != nil {
			g.log.Error().Err(err).Msg("report dropped")
		} else if err := g.poster.Post(ctx, buf); err != nil {
			g.log.Error().Err(err).Msg("report not posted")
		}
	}
	g.notify(Update{Kind: UpdateReport, Report: r})

	for _, s := range g.sinks {
		g.sinkWG.Add(1)
		go func(s sink.Sink) {
			defer g.sinkWG.Done()
			sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
			defer cancel()
			if err := s.Publish(sctx, r); err != nil {
				g.log.Warn().Err(err).Str("sink", s.Name()).Msg("sink publish failed")
			}
		}(s)
	}
}
