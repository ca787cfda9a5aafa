// Package client implements the ISO 14229-1 client state machine: a
// single-dialog UDS requester that drives a uds.Transport through
// send/await-send/await-response, applying the request-option flags and
// RCRRP pacing described in spec.md §4.4.
package client

import (
	"log/slog"

	uds "github.com/nordlicht/goudsstack"
	"github.com/nordlicht/goudsstack/pkg/event"
)

// State is one of the four states the client's low-level send/receive
// loop moves through per request.
type State uint8

const (
	StateIdle State = iota
	StateSending
	StateAwaitSendComplete
	StateAwaitResponse
)

// Option is a bitset of per-request behavior flags, set on each Send
// call rather than carried in Config since they vary request to
// request.
type Option uint8

const (
	// OptSuppressPosResp sets the suppressPositiveResponse bit (0x80) on
	// the subfunction byte of an eligible service and skips waiting for
	// a response once the send completes.
	OptSuppressPosResp Option = 1 << iota
	// OptFunctional marks the request as functionally addressed: the
	// client returns to Idle once the send completes, with no response
	// expected at all.
	OptFunctional
	// OptNegRespIsErr surfaces a negative response as a KindErr event
	// carrying the NRC, instead of a KindResponseReceived event with
	// Positive=false.
	OptNegRespIsErr
	// OptIgnoreSrvTimings keeps the configured P2/P2* values even after
	// a DiagnosticSessionControl positive response advertises new ones.
	OptIgnoreSrvTimings
)

func (o Option) has(bit Option) bool { return o&bit != 0 }

// suppressEligible lists the SIDs whose subfunction byte carries the
// suppressPositiveResponse bit, mirroring the server's own table.
var suppressEligible = map[uint8]bool{
	0x10: true, 0x11: true, 0x27: true, 0x28: true,
	0x31: true, 0x3E: true, 0x85: true, 0x87: true,
}

// Config holds the client's default P2/P2* timing, overridden per
// session by a DiagnosticSessionControl positive response unless the
// request that produced it set OptIgnoreSrvTimings.
type Config struct {
	P2Ms     int64
	P2StarMs int64
}

func DefaultConfig() Config {
	return Config{P2Ms: 50, P2StarMs: 5000}
}

// Client is the ISO 14229-1 client dispatcher. One Client drives one
// Transport endpoint and holds no goroutines of its own; Send installs a
// request and Poll drives it to completion.
type Client struct {
	logger *slog.Logger
	clock  uds.Clock
	tp     uds.Transport
	handle event.Handler
	cfg    Config

	state State
	opts  Option

	req    []byte
	reqSID uint8
	ta     uint32
	taType uds.AddressType

	p2Timer  int64
	p2Ms     int64
	p2StarMs int64

	recvBuf []byte
	err     Err
}

// New constructs a Client. handle receives every send-complete,
// response and error event; logger may be nil, in which case
// slog.Default() is used.
func New(clock uds.Clock, tp uds.Transport, handle event.Handler, cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		logger:   logger.With("service", "uds-client"),
		clock:    clock,
		tp:       tp,
		handle:   handle,
		cfg:      cfg,
		p2Ms:     cfg.P2Ms,
		p2StarMs: cfg.P2StarMs,
		recvBuf:  make([]byte, uds.MaxSDULength),
	}
}

// State reports the client's current low-level state.
func (c *Client) State() State { return c.state }

// Err reports the most recent client-side error, or ErrNone.
func (c *Client) Err() Err { return c.err }

// Busy reports whether a request is currently outstanding.
func (c *Client) Busy() bool { return c.state != StateIdle }

// P2Ms reports the timing currently in effect, possibly adopted from a
// prior DiagnosticSessionControl positive response.
func (c *Client) P2Ms() int64 { return c.p2Ms }

// P2StarMs reports the extended timing currently in effect.
func (c *Client) P2StarMs() int64 { return c.p2StarMs }

// Send installs req for transmission to ta. Only valid from Idle; a
// caller must wait for a KindResponseReceived, KindSendComplete (for
// functional requests) or KindErr event before calling again.
func (c *Client) Send(ta uint32, taType uds.AddressType, opts Option, req []byte) error {
	if c.state != StateIdle {
		return ErrBusy
	}
	if len(req) == 0 {
		return ErrInvalidArg
	}

	if opts.has(OptSuppressPosResp) && suppressEligible[req[0]] && len(req) >= 2 {
		req[1] |= 0x80
	}
	if opts.has(OptFunctional) {
		taType = uds.AddressFunctional
	}

	c.req = req
	c.reqSID = req[0]
	c.ta = ta
	c.taType = taType
	c.opts = opts
	c.err = ErrNone
	c.state = StateSending

	c.pollSending()
	return nil
}

// Poll advances the client's low-level state machine. Call it on a tick
// no coarser than the tightest configured timer (P2, the transport's own
// N_Bs/N_Cr timers, ...).
func (c *Client) Poll(nowMs int64) {
	switch c.state {
	case StateSending:
		c.pollSending()
	case StateAwaitSendComplete:
		c.pollAwaitSendComplete(nowMs)
	case StateAwaitResponse:
		c.pollAwaitResponse(nowMs)
	}
}

func (c *Client) pollSending() {
	n, err := c.tp.Send(uds.SDU{MType: uds.MTypeDiag, TA: c.ta, TAType: c.taType, Data: c.req})
	if err != nil {
		c.fail(ErrTransport)
		return
	}
	if n == 0 {
		return // transport accepted asynchronously, stay and retry
	}
	c.state = StateAwaitSendComplete
}

func (c *Client) pollAwaitSendComplete(nowMs int64) {
	status := c.tp.Poll(nowMs)
	if status.Has(uds.StatusError) {
		c.fail(ErrTransport)
		return
	}
	if status.Has(uds.StatusSendInProgress) {
		return
	}

	c.emit(event.Event{Kind: event.KindSendComplete})

	if c.taType == uds.AddressFunctional || c.opts.has(OptSuppressPosResp) {
		c.toIdle()
		return
	}

	c.p2Timer = nowMs + c.p2Ms
	c.state = StateAwaitResponse
}

func (c *Client) pollAwaitResponse(nowMs int64) {
	status := c.tp.Poll(nowMs)
	if status.Has(uds.StatusError) {
		c.fail(ErrTransport)
		return
	}

	n, _, err := c.tp.Recv(c.recvBuf)
	if err != nil {
		c.fail(ErrTransport)
		return
	}
	if n == 0 {
		if nowMs >= c.p2Timer {
			c.fail(ErrTimeout)
		}
		return
	}

	c.handleResponse(c.recvBuf[:n], nowMs)
}

func (c *Client) handleResponse(resp []byte, nowMs int64) {
	if len(resp) < 1 {
		c.fail(ErrRespTooShort)
		return
	}

	if resp[0] == 0x7F {
		if len(resp) < 3 {
			c.fail(ErrRespTooShort)
			return
		}
		if resp[1] != c.reqSID {
			c.fail(ErrSIDMismatch)
			return
		}
		nrc := event.NRC(resp[2])
		if nrc == event.NRCRequestCorrectlyReceivedResponsePending {
			// Discard the 0x78 response and keep waiting, re-arming the
			// timer with the full P2* budget per spec.md §4.4.
			c.p2Timer = nowMs + c.p2StarMs
			return
		}
		if c.opts.has(OptNegRespIsErr) {
			c.emit(event.Event{Kind: event.KindErr, Err: &event.ErrArgs{NRC: nrc}})
			c.toIdle()
			return
		}
		c.emit(event.Event{Kind: event.KindResponseReceived, ResponseReceived: &event.ResponseReceivedArgs{
			SID: c.reqSID, Positive: false, NRC: nrc, Data: resp,
		}})
		c.toIdle()
		return
	}

	if resp[0] != c.reqSID+0x40 {
		c.fail(ErrSIDMismatch)
		return
	}
	if c.reqSID == 0x11 {
		if len(resp) < 2 || resp[1] != c.req[1] {
			c.fail(ErrSubFunctionMismatch)
			return
		}
	}
	if c.reqSID == 0x10 && len(resp) >= 6 && !c.opts.has(OptIgnoreSrvTimings) {
		c.p2Ms = int64(resp[2])<<8 | int64(resp[3])
		c.p2StarMs = (int64(resp[4])<<8 | int64(resp[5])) * 10
	}

	c.emit(event.Event{Kind: event.KindResponseReceived, ResponseReceived: &event.ResponseReceivedArgs{
		SID: c.reqSID, Positive: true, NRC: event.NRCPositiveResponse, Data: resp,
	}})
	c.toIdle()
}

func (c *Client) fail(e Err) {
	c.err = e
	c.emit(event.Event{Kind: event.KindErr, Err: &event.ErrArgs{Err: e}})
	c.toIdle()
}

func (c *Client) toIdle() {
	c.state = StateIdle
	c.req = nil
}

func (c *Client) emit(ev event.Event) {
	if c.handle == nil {
		return
	}
	c.handle(ev)
}
