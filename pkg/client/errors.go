package client

// Err is a client-side error tag: it reports failure to obtain a usable
// response at all (transport failure, timeout, malformed or mismatched
// response), distinct from a protocol NRC carried inside a negative
// response from the peer.
type Err uint8

const (
	ErrNone Err = iota
	ErrTransport
	ErrTimeout
	ErrBufferSize
	ErrInvalidArg
	ErrBusy
	ErrSIDMismatch
	ErrSubFunctionMismatch
	ErrDIDMismatch
	ErrRespTooShort
)

var errDescriptions = map[Err]string{
	ErrNone:                "no error",
	ErrTransport:           "transport error",
	ErrTimeout:             "response timeout",
	ErrBufferSize:          "buffer too small",
	ErrInvalidArg:          "invalid argument",
	ErrBusy:                "client busy, a request is already outstanding",
	ErrSIDMismatch:         "response SID does not match request",
	ErrSubFunctionMismatch: "response subfunction does not match request",
	ErrDIDMismatch:         "response data identifier does not match request",
	ErrRespTooShort:        "response shorter than the minimum valid length",
}

func (e Err) Error() string {
	if d, ok := errDescriptions[e]; ok {
		return d
	}
	return "unknown client error"
}
