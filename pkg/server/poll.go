package server

import (
	uds "github.com/nordlicht/goudsstack"
	"github.com/nordlicht/goudsstack/pkg/event"
)

// Poll advances every server-owned timer and drains at most one SDU
// from the transport, in the order spec.md's poll loop specifies. Call
// it on a tick no coarser than the tightest configured timer (P2, S3,
// the ISO-TP timers inside the transport, ...).
func (s *Server) Poll(nowMs int64) {
	s.pollScheduledReset(nowMs)
	s.pollRCRRP(nowMs)
	s.pollS3(nowMs)
	s.pollTransport(nowMs)
}

// pollScheduledReset fires DoScheduledReset once ecu_reset_timer has
// elapsed. A real ECU reset power-cycles the device; this library does
// not simulate that reboot, so notReadyToReceive stays set and every
// subsequent request keeps being dropped until the host re-initializes
// a fresh Server.
func (s *Server) pollScheduledReset(nowMs int64) {
	if s.ecuResetScheduled == 0 || nowMs < s.ecuResetDeadline {
		return
	}
	resetType := s.ecuResetScheduled
	s.ecuResetScheduled = 0

	s.emit(event.Event{
		Kind:     event.KindDoScheduledReset,
		EcuReset: &event.EcuResetArgs{ResetType: resetType},
	})
}

// pollRCRRP re-enters the pending handler once p2_timer elapses,
// per spec.md §4.3.1's RequestCorrectlyReceived-ResponsePending rule.
func (s *Server) pollRCRRP(nowMs int64) {
	if !s.rcrrp.pending || nowMs < s.rcrrp.deadline {
		return
	}
	resp, ok := s.reenterRCRRP()
	if !ok {
		return
	}
	s.send(resp, s.rcrrp.reqTAType, s.rcrrp.replySA, s.rcrrp.replyTA)
}

// pollS3 reverts to the default session when a non-default session has
// been idle past s3_timer, per the session-reset-law invariant.
func (s *Server) pollS3(nowMs int64) {
	if !s.s3Armed || nowMs < s.s3Deadline {
		return
	}
	s.emit(event.Event{Kind: event.KindSessionTimeout})
	s.sessionType = SessionDefault
	s.securityLevel = 0
	s.disarmS3()
}

// pollTransport drains at most one assembled SDU and runs it through
// the dispatcher, sending any resulting response.
func (s *Server) pollTransport(nowMs int64) {
	s.tp.Poll(nowMs)
	n, sdu, err := s.tp.Recv(s.reqBuf)
	if err != nil || n == 0 {
		return
	}
	sdu.Data = s.reqBuf[:n]

	resp, ok := s.Dispatch(sdu)
	if !ok {
		return
	}
	s.send(resp, sdu.TAType, sdu.TA, sdu.SA)
}

func (s *Server) send(data []byte, taType uds.AddressType, sa, ta uint32) {
	_, err := s.tp.Send(uds.SDU{MType: uds.MTypeDiag, SA: sa, TA: ta, TAType: taType, Data: data})
	if err != nil {
		s.logger.Warn("failed to send response", "err", err)
	}
}
