// Package event defines the tagged-variant Event vocabulary exchanged
// between the server/client core and user callbacks (spec.md §6), plus
// the Writer continuation handlers use to produce response bytes.
package event

import "fmt"

// NRC is a UDS-1:2013 Negative Response Code, the third byte of a
// 0x7F negative response. The zero value means "positive response".
type NRC uint8

const (
	NRCPositiveResponse                         NRC = 0x00
	NRCGeneralReject                             NRC = 0x10
	NRCServiceNotSupported                       NRC = 0x11
	NRCSubFunctionNotSupported                   NRC = 0x12
	NRCIncorrectMessageLengthOrInvalidFormat     NRC = 0x13
	NRCResponseTooLong                           NRC = 0x14
	NRCBusyRepeatRequest                         NRC = 0x21
	NRCConditionsNotCorrect                      NRC = 0x22
	NRCRequestSequenceError                      NRC = 0x24
	NRCRequestOutOfRange                         NRC = 0x31
	NRCSecurityAccessDenied                      NRC = 0x33
	NRCInvalidKey                                NRC = 0x35
	NRCExceedNumberOfAttempts                    NRC = 0x36
	NRCRequiredTimeDelayNotExpired               NRC = 0x37
	NRCUploadDownloadNotAccepted                 NRC = 0x70
	NRCTransferDataSuspended                     NRC = 0x71
	NRCGeneralProgrammingFailure                 NRC = 0x72
	NRCWrongBlockSequenceCounter                 NRC = 0x73
	NRCRequestCorrectlyReceivedResponsePending    NRC = 0x78
	NRCSubFunctionNotSupportedInActiveSession    NRC = 0x7E
	NRCServiceNotSupportedInActiveSession        NRC = 0x7F
	NRCVoltageTooHigh                            NRC = 0x93
	NRCVoltageTooLow                             NRC = 0x92
)

var nrcDescriptions = map[NRC]string{
	NRCPositiveResponse:                       "positive response",
	NRCGeneralReject:                          "general reject",
	NRCServiceNotSupported:                     "service not supported",
	NRCSubFunctionNotSupported:                 "sub-function not supported",
	NRCIncorrectMessageLengthOrInvalidFormat:   "incorrect message length or invalid format",
	NRCResponseTooLong:                         "response too long",
	NRCBusyRepeatRequest:                       "busy, repeat request",
	NRCConditionsNotCorrect:                    "conditions not correct",
	NRCRequestSequenceError:                    "request sequence error",
	NRCRequestOutOfRange:                       "request out of range",
	NRCSecurityAccessDenied:                    "security access denied",
	NRCInvalidKey:                              "invalid key",
	NRCExceedNumberOfAttempts:                  "exceeded number of attempts",
	NRCRequiredTimeDelayNotExpired:             "required time delay not expired",
	NRCUploadDownloadNotAccepted:               "upload/download not accepted",
	NRCTransferDataSuspended:                   "transfer data suspended",
	NRCGeneralProgrammingFailure:               "general programming failure",
	NRCWrongBlockSequenceCounter:               "wrong block sequence counter",
	NRCRequestCorrectlyReceivedResponsePending: "request correctly received, response pending",
	NRCSubFunctionNotSupportedInActiveSession:  "sub-function not supported in active session",
	NRCServiceNotSupportedInActiveSession:      "service not supported in active session",
	NRCVoltageTooLow:                           "voltage too low",
	NRCVoltageTooHigh:                          "voltage too high",
}

func (n NRC) Description() string {
	if d, ok := nrcDescriptions[n]; ok {
		return d
	}
	return "unknown negative response code"
}

func (n NRC) Error() string {
	return fmt.Sprintf("NRC x%02X: %s", uint8(n), n.Description())
}

func (n NRC) IsPositive() bool { return n == NRCPositiveResponse }

// IsValid reports whether n is in the legal NRC byte range used by
// ISO 14229-1 (0x10..0x94), or is NRCPositiveResponse. Bytes outside that
// range, including the vehicle-manufacturer-specific 0xF0..0xFE, are not
// accepted. The dispatcher clamps any handler return value outside this range to
// NRCGeneralReject.
func (n NRC) IsValid() bool {
	if n == NRCPositiveResponse {
		return true
	}
	return n >= 0x10 && n <= 0x94
}

// Clamp returns n if it is a legal NRC, else NRCGeneralReject.
func Clamp(n NRC) NRC {
	if n.IsValid() {
		return n
	}
	return NRCGeneralReject
}
