package server

import (
	"github.com/nordlicht/goudsstack/pkg/event"
)

// handleDiagSessCtrl implements SID 0x10, DiagnosticSessionControl.
func (s *Server) handleDiagSessCtrl(req []byte, w *event.Writer) event.NRC {
	if len(req) < 2 {
		return event.NRCIncorrectMessageLengthOrInvalidFormat
	}
	sessType := req[1] & 0x7F

	args := &event.DiagSessCtrlArgs{
		SessionType: sessType,
		P2Ms:        uint16(s.cfg.P2Ms),
		P2StarMs:    uint16(s.cfg.P2StarMs / 10),
	}
	nrc := s.emit(event.Event{Kind: event.KindDiagSessCtrl, DiagSessCtrl: args})
	if nrc != event.NRCPositiveResponse {
		return nrc
	}

	wasDefault := s.sessionType == SessionDefault
	s.sessionType = sessType
	switch {
	case sessType != SessionDefault:
		s.armS3()
	case !wasDefault && sessType == SessionDefault:
		s.disarmS3()
		s.securityLevel = 0
		s.emit(event.Event{Kind: event.KindAuthTimeout})
	}

	w.AppendByte(sessType)
	w.AppendUint16(args.P2Ms)
	w.AppendUint16(args.P2StarMs)
	return event.NRCPositiveResponse
}

// handleTesterPresent implements SID 0x3E. It never reaches the user
// callback: its only effect is refreshing the S3 session timer.
func (s *Server) handleTesterPresent(req []byte, w *event.Writer) event.NRC {
	if len(req) < 2 {
		return event.NRCIncorrectMessageLengthOrInvalidFormat
	}
	if req[1] != 0x00 && req[1] != 0x80 {
		return event.NRCSubFunctionNotSupported
	}
	if s.s3Armed {
		s.armS3()
	}
	w.AppendByte(0x00)
	return event.NRCPositiveResponse
}

func (s *Server) armS3() {
	s.s3Armed = true
	s.s3Deadline = s.clock.NowMs() + s.cfg.S3Ms
}

func (s *Server) disarmS3() {
	s.s3Armed = false
}
