package isotp

import uds "github.com/nordlicht/goudsstack"

// handleFC feeds a received Flow Control frame into the send-side
// state machine. It is a no-op if we are not currently awaiting one.
func (l *Link) handleFC(f uds.Frame, nowMs int64) []uds.Frame {
	if l.txState != txAwaitFC {
		return nil
	}
	status := f.Data[0] & 0x0F
	switch status {
	case FlowStatusCTS:
		blockSize := f.Data[1]
		l.txBlockUnlimited = blockSize == 0
		l.txBlockRemaining = blockSize
		l.txPeerSTMinUs = DecodeSTMin(f.Data[2])
		l.txWFTCount = 0
		l.txState = txSendingCF
		l.txTimerSt = nowMs
		return l.pollSendCF(nowMs)
	case FlowStatusWait:
		l.txWFTCount++
		l.stats.FlowControlWait++
		if l.txWFTCount > l.cfg.MaxWFT {
			l.txState = txError
			l.txErr = ErrWFTExceeded
			l.stats.Aborts++
			return nil
		}
		l.txTimerBs = nowMs + l.cfg.timeoutMs()
		return nil
	case FlowStatusOvflw:
		l.txState = txError
		l.txErr = ErrOverflow
		l.stats.Aborts++
		return nil
	default:
		l.txState = txError
		l.txErr = ErrBadFrame
		l.stats.Aborts++
		return nil
	}
}

// pollSendCF emits as many consecutive frames as the current block
// budget and elapsed separation time allow. The peer's separation time is
// truncated to whole milliseconds, so with a peer stmin under 1ms this
// drains a whole block in one call; otherwise it sends one CF and waits
// for a later Poll once the separation time has elapsed.
func (l *Link) pollSendCF(nowMs int64) []uds.Frame {
	var out []uds.Frame
	for l.txOffset < len(l.txBuf) {
		if !l.txBlockUnlimited && l.txBlockRemaining == 0 {
			l.txState = txAwaitFC
			l.txTimerBs = nowMs + l.cfg.timeoutMs()
			return out
		}
		if nowMs < l.txTimerSt {
			return out
		}
		end := l.txOffset + cfPayload
		if end > len(l.txBuf) {
			end = len(l.txBuf)
		}
		out = append(out, encodeCF(l.txID, l.txSeq, l.txBuf[l.txOffset:end], l.cfg.Pad, l.cfg.PadByte))
		l.stats.FramesSent++
		l.txOffset = end
		l.txSeq = (l.txSeq + 1) % 16
		if !l.txBlockUnlimited {
			l.txBlockRemaining--
		}
		stMinMs := int64(l.txPeerSTMinUs / 1000)
		l.txTimerSt = nowMs + stMinMs
	}
	l.txState = txDone
	return out
}
