package server

import "github.com/nordlicht/goudsstack/pkg/event"

// xferLengthFormatID is the lengthFormatIdentifier byte this server
// always advertises: high nibble = byte width of the following
// maxNumberOfBlockLength field, fixed at 2 bytes.
const xferLengthFormatID = 2 << 4

// handleRequestDownload implements SID 0x34.
func (s *Server) handleRequestDownload(req []byte, w *event.Writer) event.NRC {
	return s.handleRequestTransfer(req, w, false)
}

// handleRequestUpload implements SID 0x35.
func (s *Server) handleRequestUpload(req []byte, w *event.Writer) event.NRC {
	return s.handleRequestTransfer(req, w, true)
}

func (s *Server) handleRequestTransfer(req []byte, w *event.Writer, upload bool) event.NRC {
	if s.xfer.active {
		return event.NRCConditionsNotCorrect
	}
	if len(req) < 3 {
		return event.NRCIncorrectMessageLengthOrInvalidFormat
	}

	dataFormatID := req[1]
	sizeBytes, addrBytes := decodeALFID(req[2])
	if addrBytes < 1 || addrBytes > 4 || sizeBytes < 1 || sizeBytes > 4 {
		return event.NRCRequestOutOfRange
	}
	if len(req) < 3+addrBytes+sizeBytes {
		return event.NRCIncorrectMessageLengthOrInvalidFormat
	}

	off := 3
	var address uint32
	for i := 0; i < addrBytes; i++ {
		address = address<<8 | uint32(req[off+i])
	}
	off += addrBytes
	var size uint32
	for i := 0; i < sizeBytes; i++ {
		size = size<<8 | uint32(req[off+i])
	}

	maxBlockLength := uint16(s.cfg.XferDataMaxBlockLen)
	var nrc event.NRC
	if upload {
		args := &event.RequestUploadArgs{
			DataFormatIdentifier: dataFormatID,
			Address:              address,
			Size:                 size,
			MaxBlockLength:       maxBlockLength,
		}
		nrc = s.emit(event.Event{Kind: event.KindRequestUpload, RequestUpload: args})
		maxBlockLength = args.MaxBlockLength
	} else {
		args := &event.RequestDownloadArgs{
			DataFormatIdentifier: dataFormatID,
			Address:              address,
			Size:                 size,
			MaxBlockLength:       maxBlockLength,
		}
		nrc = s.emit(event.Event{Kind: event.KindRequestDownload, RequestDownload: args})
		maxBlockLength = args.MaxBlockLength
	}
	if nrc != event.NRCPositiveResponse {
		return nrc
	}
	if maxBlockLength < 3 {
		return event.NRCGeneralReject
	}

	s.xfer = transferState{
		active:          true,
		totalBytes:      size,
		blockLength:     maxBlockLength,
		blockSeqCounter: 1,
	}

	w.AppendByte(xferLengthFormatID)
	w.AppendUint16(maxBlockLength)
	return event.NRCPositiveResponse
}

// handleTransferData implements SID 0x36. A request-correctly-received
// response-pending return leaves the block sequence counter untouched,
// since the dispatcher replays this handler unmodified on each p2_timer
// expiry until it settles.
func (s *Server) handleTransferData(req []byte, w *event.Writer) event.NRC {
	if len(req) < 2 {
		return event.NRCIncorrectMessageLengthOrInvalidFormat
	}
	if !s.xfer.active {
		return event.NRCUploadDownloadNotAccepted
	}

	seq := req[1]
	if seq != s.xfer.blockSeqCounter {
		return event.NRCWrongBlockSequenceCounter
	}
	data := req[2:]
	if s.xfer.byteCounter+uint32(len(data)) > s.xfer.totalBytes {
		return event.NRCTransferDataSuspended
	}

	w.AppendByte(seq)
	nrc := s.emit(event.Event{
		Kind: event.KindTransferData,
		TransferData: &event.TransferDataArgs{
			BlockSequenceCounter: seq,
			Data:                 data,
			Writer:               w,
		},
	})
	if nrc != event.NRCPositiveResponse {
		return nrc
	}

	s.xfer.byteCounter += uint32(len(data))
	s.xfer.blockSeqCounter++
	return event.NRCPositiveResponse
}

// handleRequestTransferExit implements SID 0x37.
func (s *Server) handleRequestTransferExit(req []byte, w *event.Writer) event.NRC {
	if !s.xfer.active {
		return event.NRCUploadDownloadNotAccepted
	}
	nrc := s.emit(event.Event{
		Kind: event.KindRequestTransferExit,
		RequestTransferExit: &event.RequestTransferExitArgs{
			Data:   req[1:],
			Writer: w,
		},
	})
	if nrc != event.NRCPositiveResponse {
		return nrc
	}
	s.xfer = transferState{}
	return event.NRCPositiveResponse
}

// File operation modes for SID 0x38, RequestFileTransfer.
const (
	modeAddFile     = 1
	modeDeleteFile  = 2
	modeReplaceFile = 3
	modeReadFile    = 4
	modeReadDir     = 5
	modeResumeFile  = 6
)

// fileXferLengthFormatID is the lengthFormatIdentifier byte this server
// advertises for a 0x38 response: unlike 0x34/0x35 it is the raw byte
// width of maxNumberOfBlockLength, not that width shifted into the high
// nibble.
const fileXferLengthFormatID = 2

// handleRequestFileTransfer implements SID 0x38. Field presence varies
// with the mode of operation: dataFormatIdentifier and the file size
// fields are absent from the request, and lengthFormatIdentifier/
// maxNumberOfBlockLength absent from the response, for DeleteFile and
// ReadDir (those modes start no data transfer).
func (s *Server) handleRequestFileTransfer(req []byte, w *event.Writer) event.NRC {
	if s.xfer.active {
		return event.NRCConditionsNotCorrect
	}
	if len(req) < 4 {
		return event.NRCIncorrectMessageLengthOrInvalidFormat
	}
	mode := req[1]
	if mode < modeAddFile || mode > modeResumeFile {
		return event.NRCRequestOutOfRange
	}
	pathLen := int(req[2])<<8 | int(req[3])
	off := 4 + pathLen
	if off > len(req) {
		return event.NRCIncorrectMessageLengthOrInvalidFormat
	}
	filePath := req[4:off]

	hasDataFormat := mode != modeDeleteFile && mode != modeReadDir
	hasFileSize := mode != modeDeleteFile && mode != modeReadFile && mode != modeReadDir
	// The response's lengthFormatIdentifier/maxNumberOfBlockLength are
	// present for exactly the same modes as the request's
	// dataFormatIdentifier, per the modes that start a data transfer.
	hasBlockInfo := hasDataFormat

	var dataFormatID uint8
	if hasDataFormat {
		if off >= len(req) {
			return event.NRCIncorrectMessageLengthOrInvalidFormat
		}
		dataFormatID = req[off]
		off++
	}

	var sizeUncompressed, sizeCompressed uint32
	if hasFileSize {
		if off >= len(req) {
			return event.NRCIncorrectMessageLengthOrInvalidFormat
		}
		sizeLen := int(req[off])
		off++
		if sizeLen < 1 || sizeLen > 4 {
			return event.NRCRequestOutOfRange
		}
		if off+2*sizeLen > len(req) {
			return event.NRCIncorrectMessageLengthOrInvalidFormat
		}
		for i := 0; i < sizeLen; i++ {
			sizeUncompressed = sizeUncompressed<<8 | uint32(req[off+i])
		}
		off += sizeLen
		for i := 0; i < sizeLen; i++ {
			sizeCompressed = sizeCompressed<<8 | uint32(req[off+i])
		}
		off += sizeLen
	}

	maxBlockLength := uint16(s.cfg.XferDataMaxBlockLen)
	args := &event.RequestFileTransferArgs{
		ModeOfOperation:      mode,
		FilePath:             filePath,
		DataFormatIdentifier: dataFormatID,
		FileSizeUncompressed: sizeUncompressed,
		FileSizeCompressed:   sizeCompressed,
		MaxBlockLength:       maxBlockLength,
		Writer:               w,
	}
	nrc := s.emit(event.Event{Kind: event.KindRequestFileTransfer, RequestFileTransfer: args})
	if nrc != event.NRCPositiveResponse {
		return nrc
	}
	maxBlockLength = args.MaxBlockLength
	if hasBlockInfo && maxBlockLength < 3 {
		return event.NRCGeneralReject
	}

	if hasBlockInfo {
		s.xfer = transferState{
			active:          true,
			totalBytes:      sizeCompressed,
			blockLength:     maxBlockLength,
			blockSeqCounter: 1,
		}
	}

	w.AppendByte(mode)
	if hasBlockInfo {
		w.AppendByte(fileXferLengthFormatID)
		w.AppendUint16(maxBlockLength)
	}
	return event.NRCPositiveResponse
}
