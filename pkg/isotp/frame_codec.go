package isotp

import uds "github.com/nordlicht/goudsstack"

// encodeSF builds a Single Frame. data must fit within singleFramePayload.
func encodeSF(arbID uint32, data []byte, pad bool, padByte byte) uds.Frame {
	f := uds.NewFrame(arbID, uint8(len(data)+1))
	f.Data[0] = pciSF<<4 | uint8(len(data))
	copy(f.Data[1:], data)
	if pad {
		padFrame(&f, len(data)+1, padByte)
	}
	return f
}

// encodeFF builds a First Frame announcing totalLen and carrying the
// first ffFirstPayload bytes of data.
func encodeFF(arbID uint32, totalLen int, data []byte) uds.Frame {
	f := uds.NewFrame(arbID, 8)
	f.Data[0] = pciFF<<4 | uint8(totalLen>>8&0x0F)
	f.Data[1] = uint8(totalLen & 0xFF)
	copy(f.Data[2:], data)
	return f
}

// encodeCF builds a Consecutive Frame for sequence number seq (1..15,
// wrapping to 0) carrying up to cfPayload bytes.
func encodeCF(arbID uint32, seq uint8, data []byte, pad bool, padByte byte) uds.Frame {
	f := uds.NewFrame(arbID, uint8(len(data)+1))
	f.Data[0] = pciCF<<4 | (seq & 0x0F)
	copy(f.Data[1:], data)
	if pad {
		padFrame(&f, len(data)+1, padByte)
	}
	return f
}

// encodeFC builds a Flow Control frame.
func encodeFC(arbID uint32, status uint8, blockSize uint8, stMinByte byte, pad bool, padByte byte) uds.Frame {
	f := uds.NewFrame(arbID, 3)
	f.Data[0] = pciFC<<4 | (status & 0x0F)
	f.Data[1] = blockSize
	f.Data[2] = stMinByte
	if pad {
		padFrame(&f, 3, padByte)
	}
	return f
}

func padFrame(f *uds.Frame, used int, padByte byte) {
	for i := used; i < 8; i++ {
		f.Data[i] = padByte
	}
	f.DLC = 8
}

func pciType(b byte) uint8 { return b >> 4 }

// ffLength extracts the 12-bit total length from a First Frame's first
// two bytes.
func ffLength(data [8]byte) int {
	return int(data[0]&0x0F)<<8 | int(data[1])
}
