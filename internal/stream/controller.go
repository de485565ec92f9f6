package stream

import (
	"bufio"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/streamkit/twitterstream/internal/metrics"
	"github.com/streamkit/twitterstream/internal/oauth"
	"github.com/streamkit/twitterstream/internal/sink"
	"github.com/streamkit/twitterstream/internal/wire"
)

var (
	// ErrAlreadyFetching is returned by Fetch when a stream is already active.
	ErrAlreadyFetching = errors.New("fetch already active")

	// ErrStopped is returned by Fetch after Stop.
	ErrStopped = errors.New("controller stopped")
)

// fatalStatuses is the status class surfaced to OnError instead of retried.
var fatalStatuses = map[int]bool{
	401: true,
	403: true,
	404: true,
	406: true,
	413: true,
}

// Config holds connection settings for a Controller.
type Config struct {
	Host           string
	Scheme         string // "https" or "http"
	Port           int
	ConnectTimeout time.Duration
	StallTimeout   time.Duration

	// TLSConfig overrides the default TLS client config. Used in tests.
	TLSConfig *tls.Config
}

func (cfg *Config) applyDefaults() {
	if cfg.Scheme == "" {
		cfg.Scheme = "https"
	}
	if cfg.Port == 0 {
		cfg.Port = 443
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}
	if cfg.StallTimeout == 0 {
		cfg.StallTimeout = 90 * time.Second
	}
}

// Controller drives one signed streaming connection through its lifecycle
// and reconnects it across every transient failure mode.
type Controller struct {
	cfg     Config
	sink    sink.Sink
	logger  *slog.Logger
	metrics *metrics.StreamMetrics

	mu     sync.Mutex
	signer *oauth.Signer

	// Request target; set once by Fetch, immutable afterwards.
	method   string
	path     string
	query    string
	fetching bool
	stopped  bool

	// Current attempt. attemptID is the staleness token: callbacks whose
	// token no longer matches are ignored.
	attemptID        string
	conn             net.Conn
	stall            *StallSupervisor
	retryTimer       *time.Timer
	restartScheduled bool
	restartInProcess bool
	lastAttemptStart time.Time
	backoff          backoffState

	// flapWindow is flapGuardWindow; tests shorten it.
	flapWindow time.Duration
}

// NewController creates a Controller. A nil logger falls back to
// slog.Default; a nil metrics handle disables instrumentation.
func NewController(cfg Config, signer *oauth.Signer, snk sink.Sink, logger *slog.Logger, m *metrics.StreamMetrics) *Controller {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		cfg:        cfg,
		signer:     signer,
		sink:       snk,
		logger:     logger,
		metrics:    m,
		backoff:    newBackoffState(),
		flapWindow: flapGuardWindow,
	}
}

// Fetch opens the stream for path, which may carry a query string. Query
// parameters with empty values are dropped. Only one fetch per controller.
func (c *Controller) Fetch(path, method string) error {
	if method == "" {
		method = "GET"
	}
	u, err := url.Parse(path)
	if err != nil {
		return fmt.Errorf("parse path: %w", err)
	}

	params := url.Values{}
	for key, values := range u.Query() {
		for _, v := range values {
			if v != "" {
				params.Add(key, v)
			}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return ErrStopped
	}
	if c.fetching {
		return ErrAlreadyFetching
	}
	c.fetching = true
	c.method = strings.ToUpper(method)
	c.path = u.Path
	c.query = params.Encode()
	c.scheduleRestartLocked(0)
	return nil
}

// SetSigner replaces the request signer used by subsequent connection
// attempts, e.g. after rotating access tokens.
func (c *Controller) SetSigner(s *oauth.Signer) {
	c.mu.Lock()
	c.signer = s
	c.mu.Unlock()
}

// SetToken rotates the access token material in place. The live
// connection is untouched; the next attempt signs with the new token.
func (c *Controller) SetToken(accessToken, accessTokenSecret string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := c.signer.WithToken(accessToken, accessTokenSecret)
	if err != nil {
		return err
	}
	c.signer = next
	return nil
}

// Stop tears down the current attempt and cancels all pending timers.
// Idempotent, including when nothing is pending.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	c.abandonLocked()
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	c.restartScheduled = false
	c.mu.Unlock()

	c.metrics.Disconnected()
	c.logger.Info("stream controller stopped")
}

// abandonLocked supersedes the current attempt: clears its identity token,
// stops its stall deadline, closes its transport.
func (c *Controller) abandonLocked() {
	c.attemptID = ""
	if c.stall != nil {
		c.stall.Stop()
		c.stall = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// scheduleRestartLocked schedules a reconnect after delay. Requests are
// coalesced: a restart already scheduled or in process absorbs this one.
func (c *Controller) scheduleRestartLocked(delay time.Duration) {
	if c.stopped || c.restartScheduled || c.restartInProcess {
		return
	}
	c.restartScheduled = true
	if delay <= 0 {
		go c.connect()
		return
	}
	c.retryTimer = time.AfterFunc(delay, c.connect)
}

// connect starts a new connection attempt, superseding any previous one.
func (c *Controller) connect() {
	c.mu.Lock()
	c.restartScheduled = false
	if c.stopped {
		c.mu.Unlock()
		return
	}

	if !c.lastAttemptStart.IsZero() && time.Since(c.lastAttemptStart) < c.flapWindow {
		// Rapid flapping; try again once the window has passed.
		c.scheduleRestartLocked(c.flapWindow)
		c.mu.Unlock()
		return
	}
	c.lastAttemptStart = time.Now()
	c.restartInProcess = true

	c.abandonLocked()
	id := uuid.NewString()
	c.attemptID = id
	c.mu.Unlock()

	go c.runAttempt(id)
}

// runAttempt drives one connection attempt: dial, sign, write the request,
// read the response head, then stream frames.
func (c *Controller) runAttempt(id string) {
	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
	c.logger.Info("opening stream connection", "addr", addr)

	dialer := net.Dialer{Timeout: c.cfg.ConnectTimeout}
	conn, err := dialer.Dial("tcp", addr)
	if err != nil {
		c.preEstablishedFailure(id, fmt.Errorf("dial %s: %w", addr, err))
		return
	}

	if c.cfg.Scheme == "https" {
		tlsCfg := c.cfg.TLSConfig
		if tlsCfg == nil {
			tlsCfg = &tls.Config{ServerName: c.cfg.Host}
		}
		tlsConn := tls.Client(conn, tlsCfg)
		tlsConn.SetDeadline(time.Now().Add(c.cfg.ConnectTimeout))
		if err := tlsConn.Handshake(); err != nil {
			conn.Close()
			c.preEstablishedFailure(id, fmt.Errorf("tls handshake: %w", err))
			return
		}
		tlsConn.SetDeadline(time.Time{})
		conn = tlsConn
	}

	// Hand the transport to the controller; bail if superseded meanwhile.
	c.mu.Lock()
	if c.stopped || c.attemptID != id {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	signer := c.signer
	c.mu.Unlock()

	conn.SetDeadline(time.Now().Add(c.cfg.ConnectTimeout))

	if err := c.writeRequest(conn, signer); err != nil {
		c.preEstablishedFailure(id, err)
		return
	}

	br := bufio.NewReader(conn)
	head, err := wire.ReadResponseHead(br)
	if err != nil {
		c.preEstablishedFailure(id, fmt.Errorf("read response head: %w", err))
		return
	}

	conn.SetDeadline(time.Time{})

	switch {
	case head.StatusCode == 200:
		if c.streamEstablished(id) {
			c.readFrames(id, br)
		}
	case head.StatusCode == 420:
		c.rateLimited(id)
	case fatalStatuses[head.StatusCode]:
		c.fatalFailure(id, head, br)
	default:
		c.transientStatus(id, head)
	}
}

// writeRequest signs the target URL and writes the HTTP/1.1 request.
func (c *Controller) writeRequest(conn net.Conn, signer *oauth.Signer) error {
	headers, err := signer.RequestHeaders(c.method, c.requestURL())
	if err != nil {
		return fmt.Errorf("sign request: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s HTTP/1.1\r\n", c.method, c.requestTarget())
	for _, h := range headers {
		fmt.Fprintf(&b, "%s: %s\r\n", h.Name, h.Value)
	}
	b.WriteString("\r\n")

	if _, err := io.WriteString(conn, b.String()); err != nil {
		return fmt.Errorf("write request: %w", err)
	}
	return nil
}

func (c *Controller) requestURL() string {
	host := c.cfg.Host
	if !(c.cfg.Scheme == "https" && c.cfg.Port == 443) &&
		!(c.cfg.Scheme == "http" && c.cfg.Port == 80) {
		host = net.JoinHostPort(host, strconv.Itoa(c.cfg.Port))
	}
	u := c.cfg.Scheme + "://" + host + c.path
	if c.query != "" {
		u += "?" + c.query
	}
	return u
}

func (c *Controller) requestTarget() string {
	if c.query != "" {
		return c.path + "?" + c.query
	}
	return c.path
}

// streamEstablished transitions the attempt to Streaming: resets every
// backoff tier and arms the stall supervisor. Returns false if the attempt
// was superseded.
func (c *Controller) streamEstablished(id string) bool {
	c.mu.Lock()
	if c.stopped || c.attemptID != id {
		c.mu.Unlock()
		return false
	}
	c.restartInProcess = false
	c.backoff.reset()
	c.stall = NewStallSupervisor(c.cfg.StallTimeout, func() { c.handleStall(id) })
	c.stall.Arm()
	c.mu.Unlock()

	c.logger.Info("stream connection established")
	c.metrics.Connected()
	return true
}

// readFrames pumps messages from the frame reader to the sink. Every frame
// read from the wire, keep-alives included, re-arms the stall supervisor.
func (c *Controller) readFrames(id string, br *bufio.Reader) {
	fr := wire.NewFrameReader(br)
	fr.OnFrame = func() {
		c.mu.Lock()
		stall := c.stall
		live := !c.stopped && c.attemptID == id
		c.mu.Unlock()
		if live && stall != nil {
			stall.Arm()
		}
	}

	for {
		msg, err := fr.Next()
		if err != nil {
			c.streamFailure(id, err)
			return
		}

		c.mu.Lock()
		if c.stopped || c.attemptID != id {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		c.metrics.Message()
		c.sink.OnMessage(msg)
	}
}

// streamFailure handles a transport close or read error while streaming.
func (c *Controller) streamFailure(id string, err error) {
	c.mu.Lock()
	if c.stopped || c.attemptID != id {
		c.mu.Unlock()
		return
	}
	c.abandonLocked()
	delay := c.backoff.nextError()
	if errors.Is(err, io.EOF) {
		c.logger.Error("stream closed by remote host", "retry_in", delay)
	} else {
		c.logger.Error("stream read failed", "error", err, "retry_in", delay)
	}
	c.scheduleRestartLocked(delay)
	c.mu.Unlock()

	c.metrics.Disconnected()
	c.metrics.Reconnect("stream", delay.Seconds())
}

// handleStall is the stall supervisor callback: the connection looks open
// but has gone silent, so force a reconnect.
func (c *Controller) handleStall(id string) {
	c.mu.Lock()
	if c.stopped || c.attemptID != id {
		c.mu.Unlock()
		return
	}
	c.abandonLocked()
	c.logger.Error("stream stalled, restarting")
	c.scheduleRestartLocked(0)
	c.mu.Unlock()

	c.metrics.Disconnected()
	c.metrics.Stall()
}

// preEstablishedFailure handles any failure before response headers arrive.
func (c *Controller) preEstablishedFailure(id string, err error) {
	c.mu.Lock()
	if c.stopped || c.attemptID != id {
		c.mu.Unlock()
		return
	}
	c.abandonLocked()
	c.restartInProcess = false
	delay := c.backoff.nextPreEstablished()
	c.logger.Error("stream closed before establishing a connection",
		"error", err,
		"retry_in", delay,
	)
	c.scheduleRestartLocked(delay)
	c.mu.Unlock()

	c.metrics.Reconnect("pre_established", delay.Seconds())
}

// rateLimited handles an HTTP 420 response.
func (c *Controller) rateLimited(id string) {
	c.mu.Lock()
	if c.stopped || c.attemptID != id {
		c.mu.Unlock()
		return
	}
	c.abandonLocked()
	c.restartInProcess = false
	delay := c.backoff.nextRateLimit()
	c.logger.Error("stream connect rate limited", "retry_in", delay)
	c.scheduleRestartLocked(delay)
	c.mu.Unlock()

	c.metrics.RateLimited()
	c.metrics.Reconnect("rate_limited", delay.Seconds())
	c.sink.OnRateLimited()
}

// transientStatus handles any non-200 status outside the rate-limit and
// fatal classes.
func (c *Controller) transientStatus(id string, head *wire.ResponseHead) {
	c.mu.Lock()
	if c.stopped || c.attemptID != id {
		c.mu.Unlock()
		return
	}
	c.abandonLocked()
	c.restartInProcess = false
	delay := c.backoff.nextError()
	c.logger.Error("stream connect failed",
		"status", head.StatusCode,
		"retry_in", delay,
	)
	c.scheduleRestartLocked(delay)
	c.mu.Unlock()

	c.metrics.Reconnect("status", delay.Seconds())
}

// fatalFailure handles the non-retried status class: capture the error body
// if Content-Length says there is one, then surface to OnError.
func (c *Controller) fatalFailure(id string, head *wire.ResponseHead, br *bufio.Reader) {
	var body []byte
	if n := head.ContentLength(); n > 0 {
		body = make([]byte, n)
		if _, err := io.ReadFull(br, body); err != nil {
			body = nil
		}
	}

	c.mu.Lock()
	if c.stopped || c.attemptID != id {
		c.mu.Unlock()
		return
	}
	c.abandonLocked()
	c.restartInProcess = false
	c.mu.Unlock()

	err := fmt.Errorf("could not connect: %s", head.Status)
	if len(body) > 0 {
		err = fmt.Errorf("could not connect: %s: %s", head.Status, body)
	}
	c.logger.Error("stream connect failed, not retrying",
		"status", head.StatusCode,
		"error", err,
	)
	c.sink.OnError(err)
}
