package server

import (
	uds "github.com/nordlicht/goudsstack"
	"github.com/nordlicht/goudsstack/pkg/event"
)

// handlerFunc is the shape every per-SID handler implements: parse req,
// emit an event to the user callback, write the positive response body
// (everything after the echoed SID+0x40 byte, which the dispatcher
// already wrote) through w, and return the NRC to report.
type handlerFunc func(s *Server, req []byte, w *event.Writer) event.NRC

// handlerTable maps SID to its built-in handler. SIDs absent from this
// table are routed to the user's Custom event (spec.md §4.3.1 step 2).
var handlerTable = map[uint8]handlerFunc{
	0x10: (*Server).handleDiagSessCtrl,
	0x11: (*Server).handleEcuReset,
	0x14: (*Server).handleClearDiagnosticInfo,
	0x19: (*Server).handleReadDTCInformation,
	0x22: (*Server).handleReadDataByIdent,
	0x23: (*Server).handleReadMemByAddr,
	0x27: (*Server).handleSecurityAccess,
	0x28: (*Server).handleCommCtrl,
	0x29: (*Server).handleAuth,
	0x2C: (*Server).handleDynamicDefineDataId,
	0x2E: (*Server).handleWriteDataByIdent,
	0x2F: (*Server).handleIOControl,
	0x31: (*Server).handleRoutineCtrl,
	0x34: (*Server).handleRequestDownload,
	0x35: (*Server).handleRequestUpload,
	0x36: (*Server).handleTransferData,
	0x37: (*Server).handleRequestTransferExit,
	0x38: (*Server).handleRequestFileTransfer,
	0x3D: (*Server).handleWriteMemByAddr,
	0x3E: (*Server).handleTesterPresent,
	0x85: (*Server).handleControlDTCSetting,
	0x87: (*Server).handleLinkControl,
}

// suppressEligible lists the SIDs for which the subfunction byte's 0x80
// bit may suppress an otherwise-positive response (spec.md §4.3.1 step 4).
var suppressEligible = map[uint8]bool{
	0x10: true, 0x11: true, 0x27: true, 0x28: true,
	0x31: true, 0x3E: true, 0x85: true, 0x87: true,
}

// funcSuppressedNRCs lists the NRCs that are never sent in reply to a
// functionally-addressed request (UDS-1:2013 §7.5.5).
var funcSuppressedNRCs = map[event.NRC]bool{
	event.NRCServiceNotSupported:                      true,
	event.NRCSubFunctionNotSupported:                  true,
	event.NRCSubFunctionNotSupportedInActiveSession:   true,
	event.NRCServiceNotSupportedInActiveSession:       true,
	event.NRCRequestOutOfRange:                        true,
}

// Dispatch runs one received SDU through the service table and returns
// the response bytes to send, or ok=false if no response should be
// emitted (dropped, suppressed, or functionally-suppressed negative).
func (s *Server) Dispatch(sdu uds.SDU) (resp []byte, ok bool) {
	req := sdu.Data
	ta := sdu.TAType
	if len(req) == 0 || s.notReadyToReceive {
		return nil, false
	}
	s.lastReqTAType = ta
	s.lastReqSA = sdu.TA
	s.lastReqTA = sdu.SA

	sid := req[0]
	handler, known := handlerTable[sid]
	if !known {
		return s.dispatchCustom(req, ta)
	}

	suppressBit := suppressEligible[sid] && len(req) >= 2 && req[1]&0x80 != 0

	s.respBuf.Reset()
	s.respBuf.WriteByte(sid + 0x40)
	w := event.NewWriter(s.respBuf, s.cfg.RespBufSize)
	nrc := handler(s, req, w)

	if nrc == event.NRCRequestCorrectlyReceivedResponsePending {
		s.armRCRRP(sid, req, ta)
		return s.negativeResponse(sid, nrc), true
	}
	s.rcrrp.pending = false

	return s.finishResponse(sid, ta, suppressBit, nrc)
}

// dispatchCustom routes an SID with no built-in handler to the user's
// Custom event; an NRC 0x11 is implied if the user does not override it
// by returning a different NRC.
func (s *Server) dispatchCustom(req []byte, ta uds.AddressType) ([]byte, bool) {
	sid := req[0]
	s.respBuf.Reset()
	s.respBuf.WriteByte(sid + 0x40)
	w := event.NewWriter(s.respBuf, s.cfg.RespBufSize)

	nrc := s.emit(event.Event{
		Kind:   event.KindCustom,
		Custom: &event.CustomArgs{SID: sid, Data: req[1:], Writer: w},
	})
	if nrc == event.NRCPositiveResponse && w.Len() == 1 {
		nrc = event.NRCServiceNotSupported
	}
	return s.finishResponse(sid, ta, false, nrc)
}

// finishResponse applies the suppress-positive-response and
// functional-negative-suppression rules and returns the final bytes.
func (s *Server) finishResponse(sid uint8, ta uds.AddressType, suppressBit bool, nrc event.NRC) ([]byte, bool) {
	if nrc == event.NRCPositiveResponse {
		if suppressBit {
			return nil, false
		}
		out := make([]byte, s.respBuf.Len())
		copy(out, s.respBuf.Bytes())
		return out, true
	}

	if ta == uds.AddressFunctional && funcSuppressedNRCs[nrc] {
		return nil, false
	}
	return s.negativeResponse(sid, nrc), true
}

func (s *Server) negativeResponse(sid uint8, nrc event.NRC) []byte {
	return []byte{0x7F, sid, byte(nrc)}
}

// armRCRRP snapshots the request so the pending handler can be replayed
// on the next p2_timer expiry with the original arguments, per spec.md's
// note that the receive buffer must not be reused after emitting 0x78.
func (s *Server) armRCRRP(sid uint8, req []byte, ta uds.AddressType) {
	reqCopy := make([]byte, len(req))
	copy(reqCopy, req)
	s.rcrrp = rcrrpState{
		pending:   true,
		deadline:  s.clock.NowMs() + int64(float64(s.cfg.P2StarMs)*0.3),
		sid:       sid,
		req:       reqCopy,
		replySA:   s.lastReqSA,
		replyTA:   s.lastReqTA,
		reqTAType: ta,
	}
}

// reenterRCRRP re-invokes the pending handler, used from Poll when
// p2_timer has elapsed. Returns the response to emit, if any.
func (s *Server) reenterRCRRP() ([]byte, bool) {
	sid := s.rcrrp.sid
	req := s.rcrrp.req
	ta := s.rcrrp.reqTAType
	handler := handlerTable[sid]

	s.respBuf.Reset()
	s.respBuf.WriteByte(sid + 0x40)
	w := event.NewWriter(s.respBuf, s.cfg.RespBufSize)
	nrc := handler(s, req, w)

	if nrc == event.NRCRequestCorrectlyReceivedResponsePending {
		s.armRCRRP(sid, req, ta)
		return s.negativeResponse(sid, nrc), true
	}
	s.rcrrp.pending = false
	return s.finishResponse(sid, ta, false, nrc)
}
