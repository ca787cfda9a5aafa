package isotp_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	uds "github.com/nordlicht/goudsstack"
	"github.com/nordlicht/goudsstack/pkg/clock"
	link "github.com/nordlicht/goudsstack/pkg/isotp"
	isotp "github.com/nordlicht/goudsstack/pkg/transport/isotp"
)

// loopback wires two transports' frames directly into each other,
// standing in for a shared CAN bus.
type loopback struct {
	c     *clock.Virtual
	peer  *isotp.Transport
}

func (l *loopback) WriteFrame(f uds.Frame) error {
	l.peer.HandleFrame(f, l.c.NowMs())
	return nil
}

func TestRoundTripSingleFrame(t *testing.T) {
	c := clock.NewVirtual()
	sinkA := &loopback{c: c}
	sinkB := &loopback{c: c}
	a := isotp.New(c, sinkA, 0x7E0, 0x7E8, 0x7DF, 0x7E8, 4095, link.DefaultConfig(), nil)
	b := isotp.New(c, sinkB, 0x7E8, 0x7E0, 0x7DF, 0x7E0, 4095, link.DefaultConfig(), nil)
	sinkA.peer = b
	sinkB.peer = a

	n, err := a.Send(uds.SDU{MType: uds.MTypeDiag, TAType: uds.AddressPhysical, Data: []byte{0x10, 0x03}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	buf := make([]byte, 64)
	got, sdu, err := b.Recv(buf)
	require.NoError(t, err)
	require.Equal(t, 2, got)
	assert.Equal(t, []byte{0x10, 0x03}, buf[:got])
	assert.Equal(t, uds.AddressPhysical, sdu.TAType)
}

func TestRoundTripMultiFrame(t *testing.T) {
	c := clock.NewVirtual()
	sinkA := &loopback{c: c}
	sinkB := &loopback{c: c}
	a := isotp.New(c, sinkA, 0x7E0, 0x7E8, 0x7DF, 0x7E8, 4095, link.DefaultConfig(), nil)
	b := isotp.New(c, sinkB, 0x7E8, 0x7E0, 0x7DF, 0x7E0, 4095, link.DefaultConfig(), nil)
	sinkA.peer = b
	sinkB.peer = a

	payload := make([]byte, 20)
	for i := range payload {
		payload[i] = byte(i)
	}

	_, err := a.Send(uds.SDU{MType: uds.MTypeDiag, TAType: uds.AddressPhysical, Data: payload})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		c.Advance(1)
		a.Poll(c.NowMs())
		b.Poll(c.NowMs())
	}

	buf := make([]byte, 64)
	got, _, err := b.Recv(buf)
	require.NoError(t, err)
	assert.Equal(t, payload, buf[:got])
}
