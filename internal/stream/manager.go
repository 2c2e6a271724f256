package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Mesteriis/crypto-inspector-sub001/internal/exchange"
	"github.com/Mesteriis/crypto-inspector-sub001/internal/metrics"
	"github.com/Mesteriis/crypto-inspector-sub001/internal/model"
)

// Fetcher is the slice of the race fetcher the REST tier polls through.
type Fetcher interface {
	Fetch(ctx context.Context, req exchange.FetchRequest) (*model.FetchResult, error)
}

// Config tunes the fallback chain.
type Config struct {
	Interval        model.Interval
	FallbackTimeout time.Duration // quiet period before forced demotion
	MaxErrors       int           // disconnects before demotion
	RESTPollEvery   time.Duration
	MonitorEvery    time.Duration
}

func (c *Config) applyDefaults() {
	if c.Interval == "" {
		c.Interval = model.Interval1m
	}
	if c.FallbackTimeout <= 0 {
		c.FallbackTimeout = 30 * time.Second
	}
	if c.MaxErrors <= 0 {
		c.MaxErrors = 3
	}
	if c.RESTPollEvery <= 0 {
		c.RESTPollEvery = 60 * time.Second
	}
	if c.MonitorEvery <= 0 {
		c.MonitorEvery = 10 * time.Second
	}
}

// SymbolStatus is the externally visible state of one symbol's stream.
type SymbolStatus struct {
	Symbol         model.Symbol `json:"symbol"`
	Source         Source       `json:"source"`
	LastCandleTime time.Time    `json:"last_candle_time"`
	ErrorCount     int          `json:"error_count"`
}

// symbolState is the per-symbol record. gen increments on every stream
// swap so events from a replaced stream are recognized as stale.
type symbolState struct {
	symbol         model.Symbol
	source         Source
	gen            int
	stream         CandleStream
	lastCandle     *model.Candle
	lastCandleTime time.Time
	errorCount     int
}

// Manager owns all per-symbol streams, the health monitor, and the shared
// REST polling loop.
type Manager struct {
	cfg       Config
	factory   StreamFactory
	fetcher   Fetcher
	callbacks Callbacks

	mu     sync.Mutex
	states map[model.Symbol]*symbolState

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
	now      func() time.Time
}

// NewManager wires a manager; factory may be nil to use the real venue
// streams (Binance primary, OKX secondary).
func NewManager(cfg Config, symbols []model.Symbol, fetcher Fetcher, callbacks Callbacks, factory StreamFactory) *Manager {
	cfg.applyDefaults()
	if factory == nil {
		factory = defaultFactory
	}
	m := &Manager{
		cfg:       cfg,
		factory:   factory,
		fetcher:   fetcher,
		callbacks: callbacks,
		states:    make(map[model.Symbol]*symbolState, len(symbols)),
		now:       time.Now,
	}
	for _, s := range symbols {
		m.states[s] = &symbolState{symbol: s, source: SourcePrimaryWS}
	}
	return m
}

func defaultFactory(source Source, symbol model.Symbol, interval model.Interval, handler StreamHandler) (CandleStream, error) {
	switch source {
	case SourcePrimaryWS:
		return newBinanceStream(symbol, interval, handler), nil
	case SourceSecondaryWS:
		return newOKXStream(symbol, interval, handler)
	default:
		return nil, fmt.Errorf("no stream for source %s", source)
	}
}

// Start connects every symbol at the primary tier and launches the health
// monitor and the REST polling loop.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	m.mu.Lock()
	symbols := make([]model.Symbol, 0, len(m.states))
	for s, st := range m.states {
		st.lastCandleTime = m.now()
		symbols = append(symbols, s)
	}
	m.mu.Unlock()

	for _, s := range symbols {
		m.connect(s)
	}

	m.wg.Add(2)
	go m.monitorLoop()
	go m.restLoop()

	log.Info().Int("symbols", len(symbols)).Stringer("interval", m.cfg.Interval).Msg("stream manager started")
	return nil
}

// Stop tears down the monitor, the REST loop, and every per-symbol stream.
// Idempotent; the second call is a no-op.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		if m.cancel != nil {
			m.cancel()
		}
		m.mu.Lock()
		streams := make([]CandleStream, 0, len(m.states))
		for _, st := range m.states {
			if st.stream != nil {
				streams = append(streams, st.stream)
				st.stream = nil
			}
			st.gen++
		}
		m.mu.Unlock()

		for _, s := range streams {
			s.Stop()
		}
		m.wg.Wait()
		log.Info().Msg("stream manager stopped")
	})
}

// Status snapshots every symbol's stream state for the ops surface.
func (m *Manager) Status() []SymbolStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SymbolStatus, 0, len(m.states))
	for _, st := range m.states {
		out = append(out, SymbolStatus{
			Symbol:         st.symbol,
			Source:         st.source,
			LastCandleTime: st.lastCandleTime,
			ErrorCount:     st.errorCount,
		})
	}
	return out
}

// RetryPrimary is the external command to move a downgraded symbol back to
// the primary websocket.
func (m *Manager) RetryPrimary(symbol model.Symbol) error {
	m.mu.Lock()
	st, ok := m.states[symbol]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("unknown symbol %s", symbol)
	}
	from := st.source
	if from == SourcePrimaryWS {
		m.mu.Unlock()
		return nil
	}
	old := st.stream
	st.stream = nil
	st.source = SourcePrimaryWS
	st.errorCount = 0
	st.gen++
	m.mu.Unlock()

	if old != nil {
		old.Stop()
	}
	m.emitSourceChange(symbol, from, SourcePrimaryWS)
	m.connect(symbol)
	return nil
}

// connect builds and starts the stream for the symbol's current source.
// Failure to start counts as a disconnect.
func (m *Manager) connect(symbol model.Symbol) {
	m.mu.Lock()
	st, ok := m.states[symbol]
	if !ok || st.source == SourceREST {
		m.mu.Unlock()
		return
	}
	source, gen := st.source, st.gen
	m.mu.Unlock()

	handler := &streamHandle{m: m, symbol: symbol, source: source, gen: gen}
	s, err := m.factory(source, symbol, m.cfg.Interval, handler)
	if err == nil {
		err = s.Start()
	}
	if err != nil {
		log.Warn().Err(err).Stringer("symbol", symbol).Str("source", string(source)).Msg("stream connect failed")
		m.onDisconnect(handler, err)
		return
	}

	m.mu.Lock()
	// The state may have moved on while we were dialing.
	if st.gen == gen && st.source == source {
		st.stream = s
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()
	s.Stop()
}

// streamHandle routes one stream's events back into the manager with
// enough identity to detect staleness.
type streamHandle struct {
	m      *Manager
	symbol model.Symbol
	source Source
	gen    int
}

func (h *streamHandle) OnCandle(c model.Candle, closed bool) { h.m.onCandle(h, c, closed) }
func (h *streamHandle) OnDisconnect(err error)               { h.m.onDisconnect(h, err) }

func (m *Manager) onCandle(h *streamHandle, c model.Candle, closed bool) {
	m.mu.Lock()
	st, ok := m.states[h.symbol]
	if !ok || st.gen != h.gen || st.source != h.source {
		m.mu.Unlock()
		return
	}
	// Monotonic delivery: a source change must never rewind time.
	if st.lastCandle != nil && c.Timestamp < st.lastCandle.Timestamp {
		m.mu.Unlock()
		return
	}
	st.lastCandle = &c
	st.lastCandleTime = m.now()
	st.errorCount = 0
	cb := m.callbacks.OnCandle
	m.mu.Unlock()

	metrics.StreamCandles.WithLabelValues(h.symbol.String(), string(h.source)).Inc()
	if cb != nil {
		cb(h.symbol, c, closed, h.source)
	}
}

func (m *Manager) onDisconnect(h *streamHandle, err error) {
	m.mu.Lock()
	st, ok := m.states[h.symbol]
	if !ok || st.gen != h.gen || st.source != h.source {
		m.mu.Unlock()
		return
	}
	st.errorCount++
	count := st.errorCount
	// Retire the broken instance before anything replaces it; bumping gen
	// turns any straggler events from it stale.
	old := st.stream
	st.stream = nil
	st.gen++
	m.mu.Unlock()

	if old != nil {
		old.Stop()
	}

	log.Warn().Err(err).Stringer("symbol", h.symbol).Str("source", string(h.source)).Int("errors", count).Msg("stream disconnected")

	if count >= m.cfg.MaxErrors {
		m.demote(h.symbol)
		return
	}
	m.connect(h.symbol)
}

// demote moves a symbol one step down the chain, closing the old stream
// first and emitting the source-change event before any candle from the
// new source.
func (m *Manager) demote(symbol model.Symbol) {
	m.mu.Lock()
	st, ok := m.states[symbol]
	if !ok {
		m.mu.Unlock()
		return
	}
	from := st.source
	to, ok := from.next()
	if !ok {
		// REST is terminal.
		m.mu.Unlock()
		return
	}
	old := st.stream
	st.stream = nil
	st.source = to
	st.errorCount = 0
	st.gen++
	st.lastCandleTime = m.now()
	m.mu.Unlock()

	if old != nil {
		old.Stop()
	}
	log.Info().Stringer("symbol", symbol).Str("from", string(from)).Str("to", string(to)).Msg("stream source demoted")
	metrics.StreamTransitions.WithLabelValues(symbol.String(), string(from), string(to)).Inc()
	m.emitSourceChange(symbol, from, to)

	if to != SourceREST {
		m.connect(symbol)
	}
}

func (m *Manager) emitSourceChange(symbol model.Symbol, from, to Source) {
	if m.callbacks.OnSourceChange != nil {
		m.callbacks.OnSourceChange(symbol, from, to)
	}
}

// monitorLoop forces demotion of any non-REST symbol that has gone quiet
// past the fallback timeout.
func (m *Manager) monitorLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.MonitorEvery)
	defer ticker.Stop()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			now := m.now()
			m.mu.Lock()
			var stale []model.Symbol
			for s, st := range m.states {
				if st.source != SourceREST && now.Sub(st.lastCandleTime) > m.cfg.FallbackTimeout {
					stale = append(stale, s)
				}
			}
			m.mu.Unlock()
			for _, s := range stale {
				log.Warn().Stringer("symbol", s).Msg("stream quiet past fallback timeout, demoting")
				m.demote(s)
			}
		}
	}
}

// restLoop polls the race fetcher for every symbol currently in REST mode
// and feeds the results through the normal delivery path. REST errors
// count but never demote further.
func (m *Manager) restLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.RESTPollEvery)
	defer ticker.Stop()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.pollRESTOnce()
		}
	}
}

func (m *Manager) pollRESTOnce() {
	m.mu.Lock()
	var polled []*symbolState
	for _, st := range m.states {
		if st.source == SourceREST {
			polled = append(polled, st)
		}
	}
	m.mu.Unlock()

	for _, st := range polled {
		m.pollREST(st.symbol)
	}
}

func (m *Manager) pollREST(symbol model.Symbol) {
	m.mu.Lock()
	st, ok := m.states[symbol]
	if !ok || st.source != SourceREST {
		m.mu.Unlock()
		return
	}
	gen := st.gen
	m.mu.Unlock()

	res, err := m.fetcher.Fetch(m.ctx, exchange.FetchRequest{
		Symbol:   symbol,
		Interval: m.cfg.Interval,
		Limit:    2,
	})
	if err != nil {
		m.mu.Lock()
		if st, ok := m.states[symbol]; ok && st.gen == gen {
			st.errorCount++
		}
		m.mu.Unlock()
		log.Warn().Err(err).Stringer("symbol", symbol).Msg("rest poll failed")
		return
	}

	// The newest bar may still be open; deliver the most recent closed one.
	candles := res.Candles
	if len(candles) == 0 {
		return
	}
	closedBar := candles[len(candles)-1]
	if len(candles) >= 2 {
		closedBar = candles[len(candles)-2]
	}

	handler := &streamHandle{m: m, symbol: symbol, source: SourceREST, gen: gen}
	m.onCandle(handler, closedBar, true)
}
