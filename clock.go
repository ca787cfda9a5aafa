package uds

import "time"

// Clock is the monotonic millisecond time source injected into every
// Server, Client and isotp.Link. Keeping it as a capability rather than
// reaching for time.Now() directly is what lets tests drive every timer
// (P2, P2*, S3, N_Bs, N_Cr, ...) deterministically instead of racing the
// wall clock.
type Clock interface {
	// NowMs returns a monotonically non-decreasing millisecond timestamp.
	// The origin is unspecified; only differences between calls matter.
	NowMs() int64
}

// SystemClock is the production Clock, backed by the runtime's monotonic
// clock via time.Since.
type SystemClock struct {
	start time.Time
}

func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

func (c *SystemClock) NowMs() int64 {
	return time.Since(c.start).Milliseconds()
}
