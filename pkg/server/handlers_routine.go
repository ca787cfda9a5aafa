package server

import "github.com/nordlicht/goudsstack/pkg/event"

// handleRoutineCtrl implements SID 0x31, RoutineControl.
func (s *Server) handleRoutineCtrl(req []byte, w *event.Writer) event.NRC {
	if len(req) < 4 {
		return event.NRCIncorrectMessageLengthOrInvalidFormat
	}
	sub := req[1]
	if sub < 1 || sub > 3 {
		return event.NRCRequestOutOfRange
	}
	routineID := uint16(req[2])<<8 | uint16(req[3])

	w.AppendByte(sub)
	w.AppendUint16(routineID)
	return s.emit(event.Event{
		Kind: event.KindRoutineCtrl,
		RoutineCtrl: &event.RoutineCtrlArgs{
			SubFunction: sub,
			RoutineID:   routineID,
			OptionData:  req[4:],
			Writer:      w,
		},
	})
}
