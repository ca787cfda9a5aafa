package client

import uds "github.com/nordlicht/goudsstack"

// DiagSessCtrl requests a session change (0x10).
func (c *Client) DiagSessCtrl(ta uint32, taType uds.AddressType, sessionType uint8, opts Option) error {
	return c.Send(ta, taType, opts, []byte{0x10, sessionType})
}

// ECUReset requests a reset (0x11).
func (c *Client) ECUReset(ta uint32, taType uds.AddressType, resetType uint8, opts Option) error {
	return c.Send(ta, taType, opts, []byte{0x11, resetType})
}

// ReadDataByIdentifier reads one or more data identifiers in a single
// request (0x22).
func (c *Client) ReadDataByIdentifier(ta uint32, taType uds.AddressType, dids []uint16, opts Option) error {
	if len(dids) == 0 {
		return ErrInvalidArg
	}
	req := make([]byte, 1, 1+2*len(dids))
	req[0] = 0x22
	for _, did := range dids {
		req = append(req, byte(did>>8), byte(did))
	}
	return c.Send(ta, taType, opts, req)
}

// WriteDataByIdentifier writes a single data identifier (0x2E).
func (c *Client) WriteDataByIdentifier(ta uint32, taType uds.AddressType, did uint16, data []byte, opts Option) error {
	req := make([]byte, 0, 3+len(data))
	req = append(req, 0x2E, byte(did>>8), byte(did))
	req = append(req, data...)
	return c.Send(ta, taType, opts, req)
}

// SecurityAccessRequestSeed requests a seed for level (the odd
// sub-function half of 0x27).
func (c *Client) SecurityAccessRequestSeed(ta uint32, taType uds.AddressType, level uint8, opts Option) error {
	return c.Send(ta, taType, opts, []byte{0x27, 2*level - 1})
}

// SecurityAccessSendKey sends a computed key for level (the even
// sub-function half of 0x27).
func (c *Client) SecurityAccessSendKey(ta uint32, taType uds.AddressType, level uint8, key []byte, opts Option) error {
	req := make([]byte, 0, 2+len(key))
	req = append(req, 0x27, 2*level)
	req = append(req, key...)
	return c.Send(ta, taType, opts, req)
}

// RoutineControl starts, stops or polls the results of routineID (0x31).
func (c *Client) RoutineControl(ta uint32, taType uds.AddressType, sub uint8, routineID uint16, optionData []byte, opts Option) error {
	req := make([]byte, 0, 4+len(optionData))
	req = append(req, 0x31, sub, byte(routineID>>8), byte(routineID))
	req = append(req, optionData...)
	return c.Send(ta, taType, opts, req)
}

// RequestDownload requests a download transfer (0x34). addrBytes and
// sizeBytes each pick how many bytes address and size are encoded in
// (1..15, forming the addressAndLengthFormatIdentifier's two nibbles).
func (c *Client) RequestDownload(ta uint32, taType uds.AddressType, dataFormatID uint8, address, size uint32, addrBytes, sizeBytes int, opts Option) error {
	return c.send34or35(0x34, ta, taType, dataFormatID, address, size, addrBytes, sizeBytes, opts)
}

// RequestUpload requests an upload transfer (0x35).
func (c *Client) RequestUpload(ta uint32, taType uds.AddressType, dataFormatID uint8, address, size uint32, addrBytes, sizeBytes int, opts Option) error {
	return c.send34or35(0x35, ta, taType, dataFormatID, address, size, addrBytes, sizeBytes, opts)
}

func (c *Client) send34or35(sid uint8, ta uint32, taType uds.AddressType, dataFormatID uint8, address, size uint32, addrBytes, sizeBytes int, opts Option) error {
	if addrBytes < 1 || addrBytes > 4 || sizeBytes < 1 || sizeBytes > 4 {
		return ErrInvalidArg
	}
	req := []byte{sid, dataFormatID, byte(sizeBytes<<4 | addrBytes)}
	for i := addrBytes - 1; i >= 0; i-- {
		req = append(req, byte(address>>uint(8*i)))
	}
	for i := sizeBytes - 1; i >= 0; i-- {
		req = append(req, byte(size>>uint(8*i)))
	}
	return c.Send(ta, taType, opts, req)
}

// TransferData sends one transfer block (0x36).
func (c *Client) TransferData(ta uint32, taType uds.AddressType, blockSeq uint8, data []byte, opts Option) error {
	req := make([]byte, 0, 2+len(data))
	req = append(req, 0x36, blockSeq)
	req = append(req, data...)
	return c.Send(ta, taType, opts, req)
}

// RequestTransferExit ends the active transfer (0x37).
func (c *Client) RequestTransferExit(ta uint32, taType uds.AddressType, data []byte, opts Option) error {
	req := make([]byte, 0, 1+len(data))
	req = append(req, 0x37)
	req = append(req, data...)
	return c.Send(ta, taType, opts, req)
}

// TesterPresent sends the keep-alive request (0x3E).
func (c *Client) TesterPresent(ta uint32, taType uds.AddressType, opts Option) error {
	return c.Send(ta, taType, opts, []byte{0x3E, 0x00})
}
