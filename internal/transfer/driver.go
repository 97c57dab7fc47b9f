// Package transfer provides a pooled HTTP transfer driver. A fixed number of
// transfer slots run concurrently while a single dispatch goroutine owns all
// driver state and invokes every completion, so callbacks are serialized on
// one goroutine regardless of how many goroutines submit transfers.
package transfer

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

var (
	transfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transfer_requests_total",
		Help: "Total number of HTTP transfers by outcome",
	}, []string{"status"})

	transfersInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "transfer_in_flight",
		Help: "Number of HTTP transfers currently occupying a slot",
	})

	transferDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "transfer_duration_seconds",
		Help:    "Wall time of HTTP transfers",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})
)

// Completion receives the outcome of a transfer. It is invoked exactly once,
// always on the driver's dispatch goroutine. On failure the body is empty.
type Completion func(body []byte, effectiveURL string, status Status)

type request struct {
	url  string
	opts Options
	done Completion
}

// slot is a reusable transfer seat with its own response buffer. The buffer
// is only touched by the transfer goroutine currently occupying the slot,
// and by the dispatcher between transfers.
type slot struct {
	buf bytes.Buffer
}

type finished struct {
	slotIdx int
	body    []byte
	url     string
	status  Status
	done    Completion
	started time.Time
}

// Config carries driver construction parameters.
type Config struct {
	PoolSize          int
	UserAgent         string
	RequestsPerSecond float64
	Timeout           time.Duration
}

// Driver is the pooled HTTP transfer driver.
type Driver struct {
	client    *http.Client
	userAgent string
	limiter   *rate.Limiter
	logger    zerolog.Logger

	mu      sync.Mutex
	pending []request
	wake    chan struct{}

	doneCh  chan finished
	stopCh  chan struct{}
	stopped chan struct{}

	slots []*slot
	free  []int
}

// NewDriver creates a driver with the given pool size. Run must be called
// before submitting transfers.
func NewDriver(cfg Config, logger zerolog.Logger) *Driver {
	if cfg.PoolSize < 1 {
		cfg.PoolSize = 32
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.PoolSize)
	}

	d := &Driver{
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        cfg.PoolSize,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: cfg.UserAgent,
		limiter:   limiter,
		logger:    logger.With().Str("component", "transfer").Logger(),
		wake:      make(chan struct{}, 1),
		doneCh:    make(chan finished, cfg.PoolSize),
		stopCh:    make(chan struct{}),
		stopped:   make(chan struct{}),
		slots:     make([]*slot, cfg.PoolSize),
		free:      make([]int, 0, cfg.PoolSize),
	}
	for i := range d.slots {
		d.slots[i] = &slot{}
		d.free = append(d.free, i)
	}
	return d
}

// Run starts the dispatch goroutine.
func (d *Driver) Run() {
	go d.dispatch()
}

// Close interrupts the dispatch loop. In-flight transfers finish in the
// background but their completions are not invoked.
func (d *Driver) Close() {
	close(d.stopCh)
	<-d.stopped
}

// Submit queues a transfer. It never blocks beyond a short mutex section;
// when the pool is saturated the request waits in FIFO order for a free
// slot. The completion is invoked exactly once on the dispatch goroutine.
func (d *Driver) Submit(url string, opts Options, done Completion) {
	d.mu.Lock()
	d.pending = append(d.pending, request{url: url, opts: opts, done: done})
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// dispatch owns all slot state. It starts transfers when slots are free and
// invokes completions inline as transfers finish.
func (d *Driver) dispatch() {
	defer close(d.stopped)

	for {
		select {
		case <-d.stopCh:
			return
		case <-d.wake:
			d.fill()
		case fin := <-d.doneCh:
			transferDuration.Observe(time.Since(fin.started).Seconds())
			transfersTotal.WithLabelValues(fin.status.String()).Inc()
			transfersInFlight.Dec()

			fin.done(fin.body, fin.url, fin.status)

			d.free = append(d.free, fin.slotIdx)
			d.fill()
		}
	}
}

// fill starts pending transfers while free slots remain.
func (d *Driver) fill() {
	for {
		d.mu.Lock()
		if len(d.pending) == 0 || len(d.free) == 0 {
			d.mu.Unlock()
			return
		}
		req := d.pending[0]
		d.pending = d.pending[1:]
		d.mu.Unlock()

		idx := d.free[len(d.free)-1]
		d.free = d.free[:len(d.free)-1]

		transfersInFlight.Inc()
		go d.perform(idx, req)
	}
}

// perform runs one transfer on its own goroutine and reports back to the
// dispatcher. It is the only goroutine touching the slot's buffer while the
// transfer is in flight.
func (d *Driver) perform(idx int, req request) {
	started := time.Now()
	s := d.slots[idx]
	s.buf.Reset()

	report := func(body []byte, url string, status Status) {
		select {
		case d.doneCh <- finished{slotIdx: idx, body: body, url: url,
			status: status, done: req.done, started: started}:
		case <-d.stopCh:
		}
	}

	if d.limiter != nil {
		if err := d.limiter.Wait(context.Background()); err != nil {
			report(nil, req.url, StatusTransportError)
			return
		}
	}

	method := http.MethodGet
	var body io.Reader
	if req.opts.Method == MethodPost {
		method = http.MethodPost
		body = strings.NewReader(req.opts.Body)
	}

	httpReq, err := http.NewRequest(method, req.url, body)
	if err != nil {
		d.logger.Warn().Err(err).Str("url", req.url).Msg("Failed to build request")
		report(nil, req.url, StatusTransportError)
		return
	}

	req.opts.headerSet().apply(httpReq)
	if d.userAgent != "" {
		httpReq.Header.Set("User-Agent", d.userAgent)
	}

	resp, err := d.client.Do(httpReq)
	if err != nil {
		d.logger.Warn().Err(err).Str("url", req.url).Msg("Transfer failed")
		report(nil, req.url, StatusTransportError)
		return
	}
	defer resp.Body.Close()

	effectiveURL := req.url
	if resp.Request != nil && resp.Request.URL != nil {
		effectiveURL = resp.Request.URL.String()
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		d.logger.Warn().Int("status", resp.StatusCode).Str("url", effectiveURL).
			Msg("Transfer returned error status")
		io.Copy(io.Discard, resp.Body)
		report(nil, effectiveURL, StatusHTTPError)
		return
	}

	if _, err := s.buf.ReadFrom(resp.Body); err != nil {
		d.logger.Warn().Err(err).Str("url", effectiveURL).Msg("Failed to read response body")
		report(nil, effectiveURL, StatusTransportError)
		return
	}

	// Copy out so the slot buffer can be reused for the next transfer once
	// the completion has run.
	out := make([]byte, s.buf.Len())
	copy(out, s.buf.Bytes())
	report(out, effectiveURL, StatusOK)
}
