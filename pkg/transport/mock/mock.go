// Package mock provides an in-memory uds.Transport for exercising
// server and client logic without a real ISO-TP link underneath,
// modeled on the teacher's virtual CAN bus (pkg/can/virtual).
package mock

import uds "github.com/nordlicht/goudsstack"

// Transport is a single-frame, synchronous uds.Transport. Push enqueues
// an SDU as if it had just arrived over the wire; Sent drains whatever
// the code under test has written since the last call.
type Transport struct {
	incoming   []uds.SDU
	outgoing   []uds.SDU
	maxSFBytes int
}

// New constructs a Transport. maxSFBytes bounds functional sends, as a
// real single-frame ISO-TP link would (7 on classic CAN).
func New(maxSFBytes int) *Transport {
	return &Transport{maxSFBytes: maxSFBytes}
}

// Push enqueues sdu to be returned by the next Recv call.
func (t *Transport) Push(sdu uds.SDU) {
	t.incoming = append(t.incoming, sdu)
}

// Sent drains and returns every SDU accepted by Send since the last call.
func (t *Transport) Sent() []uds.SDU {
	out := t.outgoing
	t.outgoing = nil
	return out
}

func (t *Transport) Send(sdu uds.SDU) (int, error) {
	if err := sdu.Validate(t.maxSFBytes); err != nil {
		return 0, err
	}
	cp := make([]byte, len(sdu.Data))
	copy(cp, sdu.Data)
	sdu.Data = cp
	t.outgoing = append(t.outgoing, sdu)
	return len(sdu.Data), nil
}

func (t *Transport) Recv(buf []byte) (int, uds.SDU, error) {
	if len(t.incoming) == 0 {
		return 0, uds.SDU{}, nil
	}
	sdu := t.incoming[0]
	t.incoming = t.incoming[1:]
	n := copy(buf, sdu.Data)
	sdu.Data = nil
	return n, sdu, nil
}

func (t *Transport) Poll(nowMs int64) uds.Status {
	if len(t.incoming) > 0 {
		return uds.StatusRecvComplete
	}
	return uds.StatusIdle
}
