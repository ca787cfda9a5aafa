package server

import "github.com/nordlicht/goudsstack/pkg/event"

// decodeALFID splits an addressAndLengthFormatIdentifier byte into the
// number of bytes used to encode the size field (high nibble) and the
// address field (low nibble), per ISO 14229-1 Table B.1.
func decodeALFID(b byte) (sizeBytes, addrBytes int) {
	return int(b >> 4), int(b & 0x0F)
}

// handleReadDataByIdent implements SID 0x22, ReadDataByIdentifier. The
// request is a concatenation of one or more 16-bit DIDs; each gets its
// own event so the callback can copy its value independently.
func (s *Server) handleReadDataByIdent(req []byte, w *event.Writer) event.NRC {
	if len(req) < 3 || (len(req)-1)%2 != 0 {
		return event.NRCIncorrectMessageLengthOrInvalidFormat
	}
	for i := 1; i < len(req); i += 2 {
		did := uint16(req[i])<<8 | uint16(req[i+1])
		if nrc := w.AppendUint16(did); nrc != event.NRCPositiveResponse {
			return nrc
		}
		before := w.Len()
		nrc := s.emit(event.Event{
			Kind:            event.KindReadDataByIdent,
			ReadDataByIdent: &event.ReadDataByIdentArgs{DID: did, Writer: w},
		})
		if nrc != event.NRCPositiveResponse {
			return nrc
		}
		if w.Len() == before {
			return event.NRCGeneralReject
		}
	}
	return event.NRCPositiveResponse
}

// handleWriteDataByIdent implements SID 0x2E, WriteDataByIdentifier.
func (s *Server) handleWriteDataByIdent(req []byte, w *event.Writer) event.NRC {
	if len(req) < 4 {
		return event.NRCIncorrectMessageLengthOrInvalidFormat
	}
	did := uint16(req[1])<<8 | uint16(req[2])
	nrc := s.emit(event.Event{
		Kind:             event.KindWriteDataByIdent,
		WriteDataByIdent: &event.WriteDataByIdentArgs{DID: did, Data: req[3:]},
	})
	if nrc != event.NRCPositiveResponse {
		return nrc
	}
	w.AppendUint16(did)
	return event.NRCPositiveResponse
}

// handleReadMemByAddr implements SID 0x23, ReadMemoryByAddress.
func (s *Server) handleReadMemByAddr(req []byte, w *event.Writer) event.NRC {
	if len(req) < 2 {
		return event.NRCIncorrectMessageLengthOrInvalidFormat
	}
	sizeBytes, addrBytes := decodeALFID(req[1])
	if addrBytes < 1 || addrBytes > 4 || sizeBytes < 1 || sizeBytes > 4 {
		return event.NRCRequestOutOfRange
	}
	if len(req) < 2+addrBytes+sizeBytes {
		return event.NRCIncorrectMessageLengthOrInvalidFormat
	}

	off := 2
	var address uint32
	for i := 0; i < addrBytes; i++ {
		address = address<<8 | uint32(req[off+i])
	}
	off += addrBytes
	var size uint32
	for i := 0; i < sizeBytes; i++ {
		size = size<<8 | uint32(req[off+i])
	}

	return s.emit(event.Event{
		Kind:          event.KindReadMemByAddr,
		ReadMemByAddr: &event.ReadMemByAddrArgs{Address: address, Size: size, Writer: w},
	})
}

// handleWriteMemByAddr implements SID 0x3D, WriteMemoryByAddress.
func (s *Server) handleWriteMemByAddr(req []byte, w *event.Writer) event.NRC {
	if len(req) < 2 {
		return event.NRCIncorrectMessageLengthOrInvalidFormat
	}
	sizeBytes, addrBytes := decodeALFID(req[1])
	if addrBytes < 1 || addrBytes > 4 || sizeBytes < 1 || sizeBytes > 4 {
		return event.NRCRequestOutOfRange
	}
	need := 2 + addrBytes + sizeBytes
	if len(req) <= need {
		return event.NRCIncorrectMessageLengthOrInvalidFormat
	}

	off := 2
	var address uint32
	for i := 0; i < addrBytes; i++ {
		address = address<<8 | uint32(req[off+i])
	}
	off += addrBytes
	var size uint32
	for i := 0; i < sizeBytes; i++ {
		size = size<<8 | uint32(req[off+i])
	}
	data := req[off+sizeBytes:]

	nrc := s.emit(event.Event{
		Kind:         event.KindWriteMemByAddr,
		WriteMemByAddr: &event.WriteMemByAddrArgs{Address: address, Size: size, Data: data},
	})
	if nrc != event.NRCPositiveResponse {
		return nrc
	}

	w.AppendByte(req[1])
	for i := addrBytes - 1; i >= 0; i-- {
		w.AppendByte(byte(address >> uint(8*i)))
	}
	for i := sizeBytes - 1; i >= 0; i-- {
		w.AppendByte(byte(size >> uint(8*i)))
	}
	return event.NRCPositiveResponse
}

// handleDynamicDefineDataId implements SID 0x2C,
// DynamicallyDefineDataIdentifier.
func (s *Server) handleDynamicDefineDataId(req []byte, w *event.Writer) event.NRC {
	if len(req) < 2 {
		return event.NRCIncorrectMessageLengthOrInvalidFormat
	}
	sub := req[1]
	var did uint16
	if sub != 0x03 {
		if len(req) < 4 {
			return event.NRCIncorrectMessageLengthOrInvalidFormat
		}
		did = uint16(req[2])<<8 | uint16(req[3])
	}
	nrc := s.emit(event.Event{
		Kind: event.KindDynamicDefineDataId,
		DynamicDefineDataId: &event.DynamicDefineDataIdArgs{
			SubFunction: sub,
			DID:         did,
		},
	})
	if nrc != event.NRCPositiveResponse {
		return nrc
	}
	w.AppendByte(sub)
	return event.NRCPositiveResponse
}

// handleIOControl implements SID 0x2F, InputOutputControlByIdentifier.
func (s *Server) handleIOControl(req []byte, w *event.Writer) event.NRC {
	if len(req) < 4 {
		return event.NRCIncorrectMessageLengthOrInvalidFormat
	}
	did := uint16(req[1])<<8 | uint16(req[2])
	w.AppendUint16(did)
	return s.emit(event.Event{
		Kind: event.KindIOControl,
		IOControl: &event.IOControlArgs{
			DID:                 did,
			ControlOptionRecord: req[3:],
			Writer:              w,
		},
	})
}
