package server

import "github.com/nordlicht/goudsstack/pkg/event"

// ReqBaseLen0x85 and ReqBaseLen0x87 are kept as two distinct constants
// even though both currently equal 2: the source this stack is modeled
// on shared one constant between ControlDTCSetting and LinkControl,
// which meant a change meant for one silently affected the other.
const (
	ReqBaseLen0x85 = 2
	ReqBaseLen0x87 = 2
)

// handleClearDiagnosticInfo implements SID 0x14.
func (s *Server) handleClearDiagnosticInfo(req []byte, w *event.Writer) event.NRC {
	if len(req) < 4 {
		return event.NRCIncorrectMessageLengthOrInvalidFormat
	}
	group := uint32(req[1])<<16 | uint32(req[2])<<8 | uint32(req[3])
	return s.emit(event.Event{
		Kind:                event.KindClearDiagnosticInfo,
		ClearDiagnosticInfo: &event.ClearDiagnosticInfoArgs{GroupOfDTC: group},
	})
}

// handleReadDTCInformation implements SID 0x19.
func (s *Server) handleReadDTCInformation(req []byte, w *event.Writer) event.NRC {
	if len(req) < 2 {
		return event.NRCIncorrectMessageLengthOrInvalidFormat
	}
	sub := req[1]
	var statusMask uint8
	if len(req) >= 3 {
		statusMask = req[2]
	}
	w.AppendByte(sub)
	return s.emit(event.Event{
		Kind: event.KindReadDTCInformation,
		ReadDTCInformation: &event.ReadDTCInformationArgs{
			SubFunction: sub,
			DTCStatus:   statusMask,
			Writer:      w,
		},
	})
}

// handleCommCtrl implements SID 0x28, CommunicationControl.
func (s *Server) handleCommCtrl(req []byte, w *event.Writer) event.NRC {
	if len(req) < 3 {
		return event.NRCIncorrectMessageLengthOrInvalidFormat
	}
	controlType := req[1] & 0x7F
	commType := req[2]
	w.AppendByte(controlType)
	return s.emit(event.Event{
		Kind:    event.KindCommCtrl,
		CommCtrl: &event.CommCtrlArgs{ControlType: controlType, CommType: commType},
	})
}

// handleAuth implements SID 0x29, Authentication (ISO 14229-1:2020).
func (s *Server) handleAuth(req []byte, w *event.Writer) event.NRC {
	if len(req) < 2 {
		return event.NRCIncorrectMessageLengthOrInvalidFormat
	}
	sub := req[1]
	w.AppendByte(sub)
	return s.emit(event.Event{
		Kind: event.KindAuth,
		Auth: &event.AuthArgs{SubFunction: sub, Data: req[2:], Writer: w},
	})
}

// handleControlDTCSetting implements SID 0x85.
func (s *Server) handleControlDTCSetting(req []byte, w *event.Writer) event.NRC {
	if len(req) < ReqBaseLen0x85 {
		return event.NRCIncorrectMessageLengthOrInvalidFormat
	}
	settingType := req[1] & 0x7F
	w.AppendByte(settingType)
	return s.emit(event.Event{
		Kind:              event.KindControlDTCSetting,
		ControlDTCSetting: &event.ControlDTCSettingArgs{SettingType: settingType},
	})
}

// handleLinkControl implements SID 0x87.
func (s *Server) handleLinkControl(req []byte, w *event.Writer) event.NRC {
	if len(req) < ReqBaseLen0x87 {
		return event.NRCIncorrectMessageLengthOrInvalidFormat
	}
	sub := req[1] & 0x7F
	w.AppendByte(sub)
	return s.emit(event.Event{
		Kind:        event.KindLinkControl,
		LinkControl: &event.LinkControlArgs{SubFunction: sub, LinkRecord: req[2:]},
	})
}
