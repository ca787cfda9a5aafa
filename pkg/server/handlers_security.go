package server

import "github.com/nordlicht/goudsstack/pkg/event"

// handleSecurityAccess implements SID 0x27. Odd subfunctions request a
// seed; even subfunctions deliver a key. Both halves share one level
// number derived from the subfunction byte.
func (s *Server) handleSecurityAccess(req []byte, w *event.Writer) event.NRC {
	if len(req) < 2 {
		return event.NRCIncorrectMessageLengthOrInvalidFormat
	}
	sub := req[1]
	if sub == 0 || sub == 0x7F {
		return event.NRCIncorrectMessageLengthOrInvalidFormat
	}

	now := s.clock.NowMs()
	if now < s.secAccessBootDeadline {
		return event.NRCRequiredTimeDelayNotExpired
	}
	if now < s.secAccessFailDeadline {
		return event.NRCExceedNumberOfAttempts
	}

	if sub%2 == 1 {
		return s.handleRequestSeed(sub, w)
	}
	return s.handleValidateKey(req, sub, w, now)
}

func (s *Server) handleRequestSeed(sub uint8, w *event.Writer) event.NRC {
	level := (sub + 1) / 2
	w.AppendByte(sub)

	if s.securityLevel == level {
		w.AppendUint16(0)
		return event.NRCPositiveResponse
	}

	return s.emit(event.Event{
		Kind: event.KindSecAccessRequestSeed,
		SecAccessRequestSeed: &event.SecAccessRequestSeedArgs{
			Level:  level,
			Writer: w,
		},
	})
}

func (s *Server) handleValidateKey(req []byte, sub uint8, w *event.Writer, now int64) event.NRC {
	if len(req) < 3 {
		return event.NRCIncorrectMessageLengthOrInvalidFormat
	}
	level := sub / 2
	w.AppendByte(sub)

	nrc := s.emit(event.Event{
		Kind: event.KindSecAccessValidateKey,
		SecAccessValidateKey: &event.SecAccessValidateKeyArgs{
			Level: level,
			Key:   req[2:],
		},
	})
	if nrc != event.NRCPositiveResponse {
		s.secAccessFailDeadline = now + s.cfg.SecAccessAuthFailMs
		return nrc
	}
	s.securityLevel = level
	return event.NRCPositiveResponse
}
