// Package cansock adapts a real CAN interface, via
// github.com/brutella/can, into an isotp.FrameSink plus a fixed
// arbitration-ID listener table, so the cooperative core never touches
// CAN-specific syscalls directly. The listener table is modeled
// directly on the teacher's BusManager.listeners array-based demux:
// one physical CAN bus can carry independent physical and functional
// ISO-TP conversations to the same ECU, so frames are routed by
// 11-bit arbitration ID to whichever isotp.Transport subscribed to it.
package cansock

import (
	"errors"
	"log/slog"
	"sync"

	sockcan "github.com/brutella/can"
	"golang.org/x/sys/unix"

	uds "github.com/nordlicht/goudsstack"
)

// MaxCanID is the highest standard (11-bit) CAN arbitration ID this bus
// can demux.
const MaxCanID = 0x7FF

const lookupArraySize = MaxCanID + 1

// ErrStandardIDOnly is returned by Subscribe for an extended (29-bit) ID.
var ErrStandardIDOnly = errors.New("cansock: only standard 11-bit arbitration IDs are supported")

// Bus wraps a brutella/can.Bus. Its background read goroutine (spun up
// by brutella/can itself) only ever pushes onto a buffered channel;
// Poll is what actually dispatches frames to listeners, keeping the
// cooperative core's single-threaded contract intact for everything
// downstream of this adapter.
type Bus struct {
	logger *slog.Logger
	bus    *sockcan.Bus

	mu        sync.Mutex
	listeners [lookupArraySize][]uds.FrameListener

	rx chan uds.Frame
}

// Open connects to the named SocketCAN interface (e.g. "can0").
func Open(name string, rxBuffer int, logger *slog.Logger) (*Bus, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if rxBuffer <= 0 {
		rxBuffer = 64
	}
	raw, err := sockcan.NewBusForInterfaceWithName(name)
	if err != nil {
		return nil, err
	}
	b := &Bus{
		logger: logger.With("component", "cansock", "iface", name),
		bus:    raw,
		rx:     make(chan uds.Frame, rxBuffer),
	}
	raw.Subscribe(b)
	go raw.ConnectAndPublish()
	return b, nil
}

// Handle implements brutella/can's frame handler interface. Per that
// library's contract this must not block; a full rx channel drops the
// frame rather than stalling the read goroutine.
func (b *Bus) Handle(f sockcan.Frame) {
	frame := uds.Frame{ID: f.ID & unix.CAN_SFF_MASK, DLC: f.Length, Data: f.Data}
	select {
	case b.rx <- frame:
	default:
		b.logger.Warn("rx channel full, dropping frame", "id", frame.ID)
	}
}

// WriteFrame implements isotp.FrameSink.
func (b *Bus) WriteFrame(f uds.Frame) error {
	return b.bus.Publish(sockcan.Frame{ID: f.ID, Length: f.DLC, Data: f.Data})
}

// Subscribe registers callback for every frame received on id, standard
// (11-bit) arbitration IDs only. The returned cancel func removes it.
func (b *Bus) Subscribe(id uint32, callback uds.FrameListener) (cancel func(), err error) {
	if id > MaxCanID {
		return nil, ErrStandardIDOnly
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[id] = append(b.listeners[id], callback)
	idx := len(b.listeners[id]) - 1
	cancel = func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.listeners[id]
		if idx < len(subs) {
			b.listeners[id] = append(subs[:idx], subs[idx+1:]...)
		}
	}
	return cancel, nil
}

// Poll drains every frame buffered since the last call and dispatches it
// to whichever listeners are registered for its arbitration ID. Call it
// on the same tick that drives isotp.Transport.Poll.
func (b *Bus) Poll() {
	for {
		select {
		case f := <-b.rx:
			b.dispatch(f)
		default:
			return
		}
	}
}

func (b *Bus) dispatch(f uds.Frame) {
	if f.ID > MaxCanID {
		return
	}
	b.mu.Lock()
	listeners := append([]uds.FrameListener(nil), b.listeners[f.ID]...)
	b.mu.Unlock()
	for _, l := range listeners {
		l.Handle(f)
	}
}

// Close disconnects the underlying CAN interface.
func (b *Bus) Close() error {
	return b.bus.Disconnect()
}
