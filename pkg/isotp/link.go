package isotp

import (
	"log/slog"

	uds "github.com/nordlicht/goudsstack"
)

// Config holds the tunable ISO-TP parameters from spec.md §6. NewLink
// uses the Config exactly as given; DefaultConfig supplies the standard
// values. The only zero-value guard is TimeoutUs, where anything under
// 1 ms is treated as 1 ms.
type Config struct {
	// BlockSize is advertised to the peer in our FC frames: how many CFs
	// it may send before waiting for our next FC. 0 means unlimited.
	BlockSize uint8
	// STMinUs is the separation time we advertise to the peer.
	STMinUs uint32
	// MaxWFT bounds FC(WAIT) frames tolerated while sending before we abort.
	MaxWFT uint8
	// TimeoutUs bounds both N_Bs (awaiting FC after our FF) and N_Cr
	// (awaiting the peer's next CF).
	TimeoutUs uint32
	// Pad enables padding frames to 8 bytes.
	Pad     bool
	PadByte byte
}

// DefaultConfig returns the spec.md §6 defaults.
func DefaultConfig() Config {
	return Config{
		BlockSize: DefaultBlockSize,
		STMinUs:   DefaultSTMinUs,
		MaxWFT:    MaxWFTNumber,
		TimeoutUs: DefaultTimeoutUs,
		Pad:       true,
		PadByte:   DefaultPaddingByte,
	}
}

func (c Config) timeoutMs() int64 {
	ms := c.TimeoutUs / 1000
	if ms == 0 {
		ms = 1
	}
	return int64(ms)
}

// Stats counts link-lifetime events for diagnostics; it is not used by
// any protocol decision, only surfaced to the host.
type Stats struct {
	FramesSent      uint64
	FramesReceived  uint64
	FlowControlWait uint64
	Aborts          uint64
}

// Link is one ISO-TP conversation: independent send and receive
// sub-state-machines sharing a pair of arbitration IDs. A Transport
// typically owns two Links (physical and functional addressing) and
// routes incoming frames to whichever Link's rxID matches.
type Link struct {
	logger *slog.Logger
	clock  uds.Clock
	cfg    Config

	txID uint32
	rxID uint32

	// send side
	txState          txState
	txBuf            []byte
	txOffset         int
	txSeq            uint8
	txBlockRemaining uint8
	txBlockUnlimited bool
	txPeerSTMinUs    uint32
	txWFTCount       uint8
	txTimerSt        int64
	txTimerBs        int64
	txErr            error

	// receive side
	rxState       rxState
	rxBuf         []byte
	rxTotalLen    int
	rxOffset      int
	rxSeqExpected uint8
	rxBsCount     uint8
	rxTimerCr     int64
	rxErr         error

	stats Stats
}

// NewLink creates a Link that sends on txID and expects peer frames on
// rxID. maxRecvLen bounds the reassembly buffer (<= uds.MaxSDULength).
func NewLink(clock uds.Clock, logger *slog.Logger, txID, rxID uint32, maxRecvLen int, cfg Config) *Link {
	if logger == nil {
		logger = slog.Default()
	}
	if maxRecvLen <= 0 || maxRecvLen > uds.MaxSDULength {
		maxRecvLen = uds.MaxSDULength
	}
	return &Link{
		logger: logger.With("component", "isotp", "txID", txID, "rxID", rxID),
		clock:  clock,
		cfg:    cfg,
		txID:   txID,
		rxID:   rxID,
		rxBuf:  make([]byte, maxRecvLen),
	}
}

// Mode reports the coarser combined status spec.md's data model uses.
func (l *Link) Mode() Mode {
	if l.txState == txError || l.rxState == rxError {
		return ModeError
	}
	if l.rxState == rxComplete {
		return ModeRecvComplete
	}
	if l.txState == txAwaitFC || l.txState == txSendingCF {
		return ModeSendInProgress
	}
	if l.rxState == rxInProgress {
		return ModeRecvInProgress
	}
	return ModeIdle
}

func (l *Link) Stats() Stats { return l.stats }

// Reset clears both sub-state-machines back to idle.
func (l *Link) Reset() {
	l.txState = txIdle
	l.rxState = rxIdle
	l.txErr = nil
	l.rxErr = nil
}

// Send begins transmitting data, encoding it as SF or FF+CFs depending
// on length. It rejects a new send while one is already in flight.
func (l *Link) Send(data []byte) ([]uds.Frame, error) {
	if l.txState == txAwaitFC || l.txState == txSendingCF {
		return nil, ErrBusy
	}
	if len(data) > uds.MaxSDULength {
		return nil, ErrTooLarge
	}

	if len(data) <= singleFramePayload {
		f := encodeSF(l.txID, data, l.cfg.Pad, l.cfg.PadByte)
		l.txState = txDone
		l.stats.FramesSent++
		return []uds.Frame{f}, nil
	}

	l.txBuf = append(l.txBuf[:0], data...)
	l.txOffset = ffFirstPayload
	l.txSeq = 1
	l.txState = txAwaitFC
	now := l.clock.NowMs()
	l.txTimerBs = now + l.cfg.timeoutMs()
	f := encodeFF(l.txID, len(data), l.txBuf[:ffFirstPayload])
	l.stats.FramesSent++
	return []uds.Frame{f}, nil
}

// Done reports whether the last Send has fully completed (all bytes
// transmitted, or a one-frame SF already sent).
func (l *Link) Done() bool { return l.txState == txDone }

// SendError returns the error that aborted the current/last send, if any.
func (l *Link) SendError() error { return l.txErr }

// TakeReceived returns the reassembled payload once rxState is
// rxComplete, and resets the receive side back to idle.
func (l *Link) TakeReceived() ([]byte, bool) {
	if l.rxState != rxComplete {
		return nil, false
	}
	out := make([]byte, l.rxTotalLen)
	copy(out, l.rxBuf[:l.rxTotalLen])
	l.rxState = rxIdle
	l.rxOffset = 0
	l.rxTotalLen = 0
	return out, true
}

// RecvError returns the error that aborted the current receive, if any.
func (l *Link) RecvError() error { return l.rxErr }

// HandleFrame dispatches one incoming link frame to the tx or rx
// sub-state-machine depending on its PCI type, returning any frames that
// must be transmitted immediately in response (e.g. an FC reply to an FF).
func (l *Link) HandleFrame(f uds.Frame, nowMs int64) []uds.Frame {
	if f.DLC == 0 {
		return nil
	}
	l.stats.FramesReceived++
	switch pciType(f.Data[0]) {
	case pciFC:
		return l.handleFC(f, nowMs)
	case pciSF:
		return l.handleSF(f)
	case pciFF:
		return l.handleFF(f, nowMs)
	case pciCF:
		return l.handleCF(f, nowMs)
	default:
		return nil
	}
}

// Poll advances timers and, for an in-progress send, emits the next
// batch of consecutive frames it is allowed to send under the current
// block-size/stmin pacing.
func (l *Link) Poll(nowMs int64) []uds.Frame {
	var out []uds.Frame
	switch l.txState {
	case txAwaitFC:
		if nowMs >= l.txTimerBs {
			l.txState = txError
			l.txErr = ErrAborted
			l.stats.Aborts++
		}
	case txSendingCF:
		out = append(out, l.pollSendCF(nowMs)...)
	}

	if l.rxState == rxInProgress && nowMs >= l.rxTimerCr {
		l.rxState = rxError
		l.rxErr = ErrAborted
		l.stats.Aborts++
	}
	return out
}
