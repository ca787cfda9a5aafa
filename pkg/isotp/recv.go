package isotp

import uds "github.com/nordlicht/goudsstack"

// handleSF delivers a Single Frame immediately, aborting (overwriting)
// any reassembly already in progress — a lone SF always wins since it
// carries a complete message on its own.
func (l *Link) handleSF(f uds.Frame) []uds.Frame {
	length := int(f.Data[0] & 0x0F)
	if length == 0 || length > len(l.rxBuf) || length > singleFramePayload {
		return nil
	}
	copy(l.rxBuf, f.Data[1:1+length])
	l.rxTotalLen = length
	l.rxOffset = length
	l.rxState = rxComplete
	l.rxErr = nil
	return nil
}

// handleFF starts (or restarts — "last request wins") reassembly and
// replies with a Flow Control frame: CTS if the declared length fits the
// receive buffer, OVFLW otherwise.
func (l *Link) handleFF(f uds.Frame, nowMs int64) []uds.Frame {
	totalLen := ffLength(f.Data)
	if totalLen > len(l.rxBuf) {
		l.rxState = rxError
		l.rxErr = ErrOverflow
		l.stats.Aborts++
		return []uds.Frame{encodeFC(l.txID, FlowStatusOvflw, 0, 0, l.cfg.Pad, l.cfg.PadByte)}
	}

	l.rxTotalLen = totalLen
	n := copy(l.rxBuf, f.Data[2:2+ffFirstPayload])
	l.rxOffset = n
	l.rxSeqExpected = 1
	l.rxBsCount = l.cfg.BlockSize
	l.rxState = rxInProgress
	l.rxErr = nil
	l.rxTimerCr = nowMs + l.cfg.timeoutMs()

	stMinByte := EncodeSTMin(l.cfg.STMinUs)
	return []uds.Frame{encodeFC(l.txID, FlowStatusCTS, l.cfg.BlockSize, stMinByte, l.cfg.Pad, l.cfg.PadByte)}
}

// handleCF appends a Consecutive Frame's payload, validating its
// sequence number. A gap or repeat enters ERROR and stops responding,
// per spec.md's sequence-monotonicity invariant.
func (l *Link) handleCF(f uds.Frame, nowMs int64) []uds.Frame {
	if l.rxState != rxInProgress {
		return nil
	}
	seq := f.Data[0] & 0x0F
	if seq != l.rxSeqExpected {
		l.rxState = rxError
		l.rxErr = ErrBadFrame
		l.stats.Aborts++
		return nil
	}

	remaining := l.rxTotalLen - l.rxOffset
	n := cfPayload
	if n > remaining {
		n = remaining
	}
	copy(l.rxBuf[l.rxOffset:], f.Data[1:1+n])
	l.rxOffset += n
	l.rxSeqExpected = (l.rxSeqExpected + 1) % 16
	l.rxTimerCr = nowMs + l.cfg.timeoutMs()

	if l.rxOffset >= l.rxTotalLen {
		l.rxState = rxComplete
		return nil
	}

	if l.rxBsCount > 0 {
		l.rxBsCount--
	}
	if l.cfg.BlockSize != 0 && l.rxBsCount == 0 {
		l.rxBsCount = l.cfg.BlockSize
		stMinByte := EncodeSTMin(l.cfg.STMinUs)
		return []uds.Frame{encodeFC(l.txID, FlowStatusCTS, l.cfg.BlockSize, stMinByte, l.cfg.Pad, l.cfg.PadByte)}
	}
	return nil
}
