package uds

import "errors"

// Sentinel errors returned by the root-level Transport/SDU plumbing.
// Package-specific errors (NRCs, ISO-TP aborts, client error kinds) live
// closer to where they are produced: pkg/event, pkg/isotp, pkg/client.
var (
	ErrIllegalArgument = errors.New("error in function arguments")
	ErrBufferTooSmall  = errors.New("destination buffer too small to hold SDU")
	ErrOversizeFunc    = errors.New("functional SDU does not fit in a single link frame")
	ErrOversizeSDU     = errors.New("SDU data exceeds the ISO-TP maximum length")
	ErrNotConnected    = errors.New("transport has no underlying link attached")
	ErrTxBusy          = errors.New("send rejected, a transmission is already in progress")
)
