package server

import "github.com/nordlicht/goudsstack/pkg/event"

// handleEcuReset implements SID 0x11, ECUReset.
func (s *Server) handleEcuReset(req []byte, w *event.Writer) event.NRC {
	if len(req) < 2 {
		return event.NRCIncorrectMessageLengthOrInvalidFormat
	}
	resetType := req[1] & 0x7F
	if resetType < 1 || resetType > 5 {
		return event.NRCSubFunctionNotSupported
	}

	nrc := s.emit(event.Event{
		Kind:     event.KindEcuReset,
		EcuReset: &event.EcuResetArgs{ResetType: resetType},
	})
	if nrc != event.NRCPositiveResponse {
		return nrc
	}

	s.notReadyToReceive = true
	s.ecuResetScheduled = resetType
	s.ecuResetDeadline = s.clock.NowMs() + s.cfg.PowerDownTimeMs

	w.AppendByte(resetType)
	return event.NRCPositiveResponse
}
