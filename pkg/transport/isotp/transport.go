// Package isotp adapts a physical/functional pair of pkg/isotp.Link
// state machines plus a raw frame sink into a full uds.Transport, so
// pkg/server and pkg/client can run over a real CAN-like link instead
// of pkg/transport/mock.
package isotp

import (
	"log/slog"

	uds "github.com/nordlicht/goudsstack"
	link "github.com/nordlicht/goudsstack/pkg/isotp"
)

// FrameSink transmits one raw link frame, e.g. onto a CAN bus.
type FrameSink interface {
	WriteFrame(f uds.Frame) error
}

// Transport implements uds.Transport over one physical and one
// functional pkg/isotp.Link, demultiplexing inbound frames by
// arbitration ID the way a CAN stack's listener array routes a frame to
// the handler registered for its ID.
type Transport struct {
	logger *slog.Logger
	clock  uds.Clock
	sink   FrameSink

	phys *link.Link
	fn   *link.Link

	physRxID uint32
	fnRxID   uint32
}

// New constructs a Transport. physTxID/physRxID address the 1:1
// diagnostic dialog; fnTxID/fnRxID address the 1:n functional request
// channel. maxRecvLen bounds the reassembly buffer for both links.
func New(clock uds.Clock, sink FrameSink, physTxID, physRxID, fnTxID, fnRxID uint32, maxRecvLen int, cfg link.Config, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "isotp-transport")
	return &Transport{
		logger:   logger,
		clock:    clock,
		sink:     sink,
		phys:     link.NewLink(clock, logger, physTxID, physRxID, maxRecvLen, cfg),
		fn:       link.NewLink(clock, logger, fnTxID, fnRxID, maxRecvLen, cfg),
		physRxID: physRxID,
		fnRxID:   fnRxID,
	}
}

// HandleFrame routes one inbound raw frame to whichever link's rxID
// matches, writing out any immediate reply (e.g. a flow-control frame).
func (t *Transport) HandleFrame(f uds.Frame, nowMs int64) {
	switch f.ID {
	case t.physRxID:
		t.writeAll(t.phys.HandleFrame(f, nowMs))
	case t.fnRxID:
		t.writeAll(t.fn.HandleFrame(f, nowMs))
	}
}

// Listener returns a uds.FrameListener that feeds inbound frames into
// HandleFrame timestamped by the transport's own clock, for registering
// with a cansock.Bus or any other real frame source.
func (t *Transport) Listener() uds.FrameListener {
	return frameListenerFunc(func(f uds.Frame) {
		t.HandleFrame(f, t.clock.NowMs())
	})
}

type frameListenerFunc func(uds.Frame)

func (f frameListenerFunc) Handle(frame uds.Frame) { f(frame) }

func (t *Transport) writeAll(frames []uds.Frame) {
	for _, f := range frames {
		if err := t.sink.WriteFrame(f); err != nil {
			t.logger.Warn("failed to write isotp frame", "err", err)
			return
		}
	}
}

// Send implements uds.Transport.
func (t *Transport) Send(sdu uds.SDU) (int, error) {
	if err := sdu.Validate(7); err != nil {
		return 0, err
	}
	l := t.linkFor(sdu.TAType)
	frames, err := l.Send(sdu.Data)
	if err != nil {
		return 0, err
	}
	t.writeAll(frames)
	if l.Done() {
		return len(sdu.Data), nil
	}
	return 0, nil
}

// Recv implements uds.Transport. The physical link is checked first, so
// a diagnostic reply is never starved by a pending functional receive.
func (t *Transport) Recv(buf []byte) (int, uds.SDU, error) {
	if data, ok := t.phys.TakeReceived(); ok {
		n := copy(buf, data)
		return n, uds.SDU{MType: uds.MTypeDiag, TAType: uds.AddressPhysical, TA: t.physRxID}, nil
	}
	if data, ok := t.fn.TakeReceived(); ok {
		n := copy(buf, data)
		return n, uds.SDU{MType: uds.MTypeDiag, TAType: uds.AddressFunctional, TA: t.fnRxID}, nil
	}
	return 0, uds.SDU{}, nil
}

// Poll implements uds.Transport.
func (t *Transport) Poll(nowMs int64) uds.Status {
	t.writeAll(t.phys.Poll(nowMs))
	t.writeAll(t.fn.Poll(nowMs))

	var status uds.Status
	if t.phys.Mode() == link.ModeSendInProgress || t.fn.Mode() == link.ModeSendInProgress {
		status |= uds.StatusSendInProgress
	}
	if t.phys.Mode() == link.ModeRecvComplete || t.fn.Mode() == link.ModeRecvComplete {
		status |= uds.StatusRecvComplete
	}
	if t.phys.Mode() == link.ModeError || t.fn.Mode() == link.ModeError {
		status |= uds.StatusError
	}
	return status
}

func (t *Transport) linkFor(ta uds.AddressType) *link.Link {
	if ta == uds.AddressFunctional {
		return t.fn
	}
	return t.phys
}
