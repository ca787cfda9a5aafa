package isotp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	uds "github.com/nordlicht/goudsstack"
	"github.com/nordlicht/goudsstack/pkg/clock"
)

// pairedLinks returns two Links addressed so that A's tx is B's rx and
// vice-versa, as if both sit on the same physical bus.
func pairedLinks(t *testing.T, c *clock.Virtual, cfg Config) (a, b *Link) {
	t.Helper()
	a = NewLink(c, nil, 0x100, 0x200, uds.MaxSDULength, cfg)
	b = NewLink(c, nil, 0x200, 0x100, uds.MaxSDULength, cfg)
	return a, b
}

// drive pumps frames between a and b, polling both every tick, until
// receiver b reports either rxComplete or rxError, or maxTicks elapses.
func drive(t *testing.T, c *clock.Virtual, a, b *Link, initial []uds.Frame, maxTicks int) {
	t.Helper()
	pending := initial
	for tick := 0; tick < maxTicks; tick++ {
		var next []uds.Frame
		for _, f := range pending {
			if f.ID == a.txID || f.ID == b.rxID {
				next = append(next, b.HandleFrame(f, c.NowMs())...)
			} else {
				next = append(next, a.HandleFrame(f, c.NowMs())...)
			}
		}
		pending = next
		pending = append(pending, a.Poll(c.NowMs())...)
		pending = append(pending, b.Poll(c.NowMs())...)
		if b.Mode() == ModeRecvComplete || b.Mode() == ModeError || a.Mode() == ModeError {
			return
		}
		c.Advance(1)
	}
}

func TestRoundTripSingleFrame(t *testing.T) {
	c := clock.NewVirtual()
	a, b := pairedLinks(t, c, DefaultConfig())
	payload := []byte{1, 2, 3, 4, 5}

	frames, err := a.Send(payload)
	require.NoError(t, err)
	require.True(t, a.Done())

	drive(t, c, a, b, frames, 50)

	got, ok := b.TakeReceived()
	require.True(t, ok)
	assert.Equal(t, payload, got)
	assert.Equal(t, ModeIdle, b.Mode())
}

func TestRoundTripMultiFrame(t *testing.T) {
	c := clock.NewVirtual()
	cfg := DefaultConfig()
	cfg.BlockSize = 3
	a, b := pairedLinks(t, c, cfg)

	payload := make([]byte, 200)
	for i := range payload {
		payload[i] = byte(i)
	}

	frames, err := a.Send(payload)
	require.NoError(t, err)

	drive(t, c, a, b, frames, 1000)

	got, ok := b.TakeReceived()
	require.True(t, ok)
	assert.Equal(t, payload, got)
	assert.Equal(t, ModeIdle, a.Mode())
}

func TestRoundTripAllLengths(t *testing.T) {
	for _, length := range []int{1, 6, 7, 8, 50, 255, 4095} {
		length := length
		t.Run("", func(t *testing.T) {
			c := clock.NewVirtual()
			a, b := pairedLinks(t, c, DefaultConfig())
			payload := make([]byte, length)
			for i := range payload {
				payload[i] = byte(i % 256)
			}
			frames, err := a.Send(payload)
			require.NoError(t, err)
			drive(t, c, a, b, frames, 2000)
			got, ok := b.TakeReceived()
			require.True(t, ok)
			assert.Equal(t, payload, got)
			assert.Equal(t, ModeIdle, b.Mode())
		})
	}
}

func TestSequenceGapEntersError(t *testing.T) {
	c := clock.NewVirtual()
	a, b := pairedLinks(t, c, DefaultConfig())
	payload := make([]byte, 50)

	frames, err := a.Send(payload)
	require.NoError(t, err)
	require.Len(t, frames, 1) // FF

	fc := b.HandleFrame(frames[0], c.NowMs())
	require.Len(t, fc, 1)
	cfs := a.HandleFrame(fc[0], c.NowMs())
	require.Len(t, cfs, 7) // seven CFs carry the remaining 44 bytes; the first has seq=1

	// Corrupt the sequence number before delivering.
	bad := cfs[0]
	bad.Data[0] = pciCF<<4 | 5
	more := b.HandleFrame(bad, c.NowMs())
	assert.Nil(t, more)
	assert.Equal(t, ModeError, b.Mode())
	assert.ErrorIs(t, b.RecvError(), ErrBadFrame)
}

func TestFlowControlWaitThenCTS(t *testing.T) {
	c := clock.NewVirtual()
	cfg := DefaultConfig()
	a, b := pairedLinks(t, c, cfg)
	payload := make([]byte, 50)

	frames, err := a.Send(payload)
	require.NoError(t, err)

	wait := encodeFC(a.rxID, FlowStatusWait, 0, 0, false, 0)
	out := a.HandleFrame(wait, c.NowMs())
	assert.Nil(t, out)
	assert.Equal(t, uint8(1), a.txWFTCount)
	assert.Equal(t, ModeSendInProgress, a.Mode())

	drive(t, c, a, b, frames, 2000)
	got, ok := b.TakeReceived()
	require.True(t, ok)
	assert.Equal(t, payload, got)
}

func TestFlowControlOverflowAborts(t *testing.T) {
	c := clock.NewVirtual()
	cfg := DefaultConfig()
	a := NewLink(c, nil, 0x100, 0x200, 10, cfg) // tiny receive buffer
	payload := make([]byte, 50)

	ff := encodeFF(0x200, len(payload), payload[:ffFirstPayload])
	fc := a.HandleFrame(ff, c.NowMs())
	require.Len(t, fc, 1)
	assert.Equal(t, FlowStatusOvflw, fc[0].Data[0]&0x0F)
	assert.Equal(t, ModeError, a.Mode())
}

func TestWFTExceededAborts(t *testing.T) {
	c := clock.NewVirtual()
	cfg := DefaultConfig()
	cfg.MaxWFT = 1
	a, _ := pairedLinks(t, c, cfg)
	payload := make([]byte, 50)
	_, err := a.Send(payload)
	require.NoError(t, err)

	wait := encodeFC(a.rxID, FlowStatusWait, 0, 0, false, 0)
	a.HandleFrame(wait, c.NowMs())
	a.HandleFrame(wait, c.NowMs())
	assert.Equal(t, ModeError, a.Mode())
	assert.ErrorIs(t, a.SendError(), ErrWFTExceeded)
}

func TestNBsTimeoutAborts(t *testing.T) {
	c := clock.NewVirtual()
	cfg := DefaultConfig()
	cfg.TimeoutUs = 10_000 // 10ms
	a, _ := pairedLinks(t, c, cfg)
	payload := make([]byte, 50)
	_, err := a.Send(payload)
	require.NoError(t, err)

	c.Advance(11)
	a.Poll(c.NowMs())
	assert.Equal(t, ModeError, a.Mode())
	assert.ErrorIs(t, a.SendError(), ErrAborted)
}

func TestSTMinPacing(t *testing.T) {
	c := clock.NewVirtual()
	cfg := DefaultConfig()
	cfg.STMinUs = 20_000 // 20ms, so CFs must be spaced out
	cfg.BlockSize = 0    // unlimited, so pacing is the only gate
	a, b := pairedLinks(t, c, cfg)
	payload := make([]byte, 50) // FF(6) + 6 CFs of 7 + final 2-byte CF

	frames, err := a.Send(payload)
	require.NoError(t, err)
	fc := b.HandleFrame(frames[0], c.NowMs())
	require.Len(t, fc, 1)
	cfs := a.HandleFrame(fc[0], c.NowMs())
	require.Len(t, cfs, 1) // only one CF emitted despite unlimited block, due to stmin

	more := a.Poll(c.NowMs())
	assert.Empty(t, more, "no new CF before stmin elapses")

	c.Advance(21)
	more = a.Poll(c.NowMs())
	assert.Len(t, more, 1)
}

func TestSTMinEncodeDecode(t *testing.T) {
	assert.Equal(t, byte(0x00), EncodeSTMin(0))
	assert.Equal(t, byte(0x0A), EncodeSTMin(10_000))
	assert.Equal(t, byte(0x7F), EncodeSTMin(200_000))
	assert.Equal(t, byte(0xF1), EncodeSTMin(100))
	assert.Equal(t, byte(0xF9), EncodeSTMin(900))

	assert.Equal(t, uint32(0), DecodeSTMin(0x00))
	assert.Equal(t, uint32(10_000), DecodeSTMin(0x0A))
	assert.Equal(t, uint32(100), DecodeSTMin(0xF1))
	assert.Equal(t, uint32(0), DecodeSTMin(0xFA)) // reserved -> 0
	assert.Equal(t, uint32(0), DecodeSTMin(0xFF)) // reserved -> 0
}
