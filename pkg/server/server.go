// Package server implements the ISO 14229-1 server state machine: a
// single-dialog UDS responder that receives assembled SDUs from a
// uds.Transport, dispatches them to per-SID handlers, and manages
// session, security and data-transfer state across poll cycles.
package server

import (
	"bytes"
	"log/slog"

	uds "github.com/nordlicht/goudsstack"
	"github.com/nordlicht/goudsstack/pkg/event"
)

// Session types as used by subfunction byte of DiagnosticSessionControl.
const (
	SessionDefault        uint8 = 0x01
	SessionProgramming    uint8 = 0x02
	SessionExtendedDiag   uint8 = 0x03
	SessionSafetySystem   uint8 = 0x04
)

// Config holds the timing and buffer-size constants named in spec.md §6.
// New uses the Config exactly as given and fills in no zero-value
// fields; start from DefaultConfig() and override fields directly.
type Config struct {
	P2Ms                  int64
	P2StarMs              int64
	S3Ms                  int64
	PowerDownTimeMs       int64
	SecAccessBootDelayMs  int64
	SecAccessAuthFailMs   int64
	XferDataMaxBlockLen   int
	RespBufSize           int
}

func DefaultConfig() Config {
	return Config{
		P2Ms:                 50,
		P2StarMs:             5000,
		S3Ms:                 5100,
		PowerDownTimeMs:      60,
		SecAccessBootDelayMs: 1000,
		SecAccessAuthFailMs:  1000,
		XferDataMaxBlockLen:  4096,
		RespBufSize:          uds.MaxSDULength,
	}
}

// rcrrpState is the small "Idle / Pending" machine described in
// spec.md §9 for NRC 0x78 pacing: once a handler returns 0x78 the
// server re-invokes it on every subsequent deadline until it settles.
type rcrrpState struct {
	pending   bool
	deadline  int64
	sid       uint8
	req       []byte
	replySA   uint32 // our own address, echoed as the reply's SA
	replyTA   uint32 // where to send the reply (the original request's SA)
	reqTAType uds.AddressType
}

// transferState holds the 0x34..0x38 data-transfer counters. Zeroed
// whenever a transfer is not active, per the data-model invariant.
type transferState struct {
	active           bool
	totalBytes       uint32
	byteCounter      uint32
	blockLength      uint16
	blockSeqCounter  uint8
}

// Server is the ISO 14229-1 service dispatcher. One Server drives one
// Transport endpoint; it holds no goroutines of its own and advances
// only when Poll is called, per the cooperative single-threaded model.
type Server struct {
	logger *slog.Logger
	clock  uds.Clock
	tp     uds.Transport
	cfg    Config
	handle event.Handler

	sessionType   uint8
	securityLevel uint8

	s3Deadline           int64
	s3Armed              bool
	ecuResetScheduled    uint8
	ecuResetDeadline     int64
	secAccessBootDeadline int64
	secAccessFailDeadline int64

	notReadyToReceive bool
	rcrrp             rcrrpState
	xfer              transferState

	reqBuf  []byte
	respBuf *bytes.Buffer

	// Addressing of the request currently being (or about to be)
	// handled, so a reply (including a deferred RCRRP reply) can be
	// sent back to the right endpoint.
	lastReqTAType uds.AddressType
	lastReqSA     uint32
	lastReqTA     uint32
}

// New constructs a Server. handle receives every service, scheduling
// and error event; logger may be nil, in which case slog.Default() is
// used, matching the teacher's constructor convention.
func New(clock uds.Clock, tp uds.Transport, handle event.Handler, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	now := clock.NowMs()
	return &Server{
		logger:                logger.With("service", "uds-server"),
		clock:                 clock,
		tp:                    tp,
		cfg:                   cfg,
		handle:                handle,
		sessionType:           SessionDefault,
		secAccessBootDeadline: now + cfg.SecAccessBootDelayMs,
		reqBuf:                make([]byte, cfg.RespBufSize),
		respBuf:               bytes.NewBuffer(make([]byte, 0, cfg.RespBufSize)),
	}
}

// SessionType reports the currently active diagnostic session.
func (s *Server) SessionType() uint8 { return s.sessionType }

// SecurityLevel reports the currently unlocked security level (0 = locked).
func (s *Server) SecurityLevel() uint8 { return s.securityLevel }

// emit is the single funnel through which every event reaches the user
// callback, so tests and adapters only need to stub one function.
func (s *Server) emit(ev event.Event) event.NRC {
	if s.handle == nil {
		return event.NRCGeneralReject
	}
	return event.Clamp(s.handle(ev))
}
