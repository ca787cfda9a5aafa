package event

// Kind tags which field of an Event is populated. Only one argument
// struct pointer is non-nil for any given Kind; the rest are left zero.
type Kind uint8

const (
	KindNone Kind = iota

	// Server-side events, one per UDS-1 service the core dispatches to
	// a user callback plus a handful of scheduling events the poll loop
	// raises on its own (SessionTimeout, AuthTimeout, DoScheduledReset).
	KindDiagSessCtrl
	KindEcuReset
	KindClearDiagnosticInfo
	KindReadDTCInformation
	KindReadDataByIdent
	KindReadMemByAddr
	KindCommCtrl
	KindSecAccessRequestSeed
	KindSecAccessValidateKey
	KindAuth
	KindDynamicDefineDataId
	KindWriteDataByIdent
	KindIOControl
	KindRoutineCtrl
	KindRequestDownload
	KindRequestUpload
	KindTransferData
	KindRequestTransferExit
	KindRequestFileTransfer
	KindWriteMemByAddr
	KindControlDTCSetting
	KindLinkControl
	KindCustom
	KindSessionTimeout
	KindAuthTimeout
	KindDoScheduledReset

	// Client-side events.
	KindIdle
	KindSendComplete
	KindResponseReceived
	KindPoll

	// Common to both sides.
	KindErr
)

// DiagSessCtrlArgs carries DiagnosticSessionControl (0x10) request data.
// P2Ms and P2StarMs are pre-filled with the server's configured defaults
// before the event is emitted; the callback may overwrite either to
// advertise session-specific timing in the positive response. Both are
// copied to the wire unchanged: P2Ms is in milliseconds, but P2StarMs is
// in 10 ms units (the configured P2* divided by 10).
type DiagSessCtrlArgs struct {
	SessionType uint8
	P2Ms        uint16
	P2StarMs    uint16
}

// EcuResetArgs carries ECUReset (0x11) request data.
type EcuResetArgs struct {
	ResetType uint8
}

// ClearDiagnosticInfoArgs carries ClearDiagnosticInformation (0x14) request data.
type ClearDiagnosticInfoArgs struct {
	GroupOfDTC uint32
}

// ReadDTCInformationArgs carries ReadDTCInformation (0x19) request data.
type ReadDTCInformationArgs struct {
	SubFunction uint8
	DTCStatus   uint8
	Writer      *Writer
}

// ReadDataByIdentArgs carries ReadDataByIdentifier (0x22) request data.
type ReadDataByIdentArgs struct {
	DID    uint16
	Writer *Writer
}

// ReadMemByAddrArgs carries ReadMemoryByAddress (0x23) request data.
type ReadMemByAddrArgs struct {
	Address uint32
	Size    uint32
	Writer  *Writer
}

// CommCtrlArgs carries CommunicationControl (0x28) request data.
type CommCtrlArgs struct {
	ControlType uint8
	CommType    uint8
}

// SecAccessRequestSeedArgs carries the odd sub-function half of
// SecurityAccess (0x27): requestSeed.
type SecAccessRequestSeedArgs struct {
	Level  uint8
	Writer *Writer
}

// SecAccessValidateKeyArgs carries the even sub-function half of
// SecurityAccess (0x27): sendKey.
type SecAccessValidateKeyArgs struct {
	Level uint8
	Key   []byte
}

// AuthArgs carries Authentication (0x29) request data.
type AuthArgs struct {
	SubFunction uint8
	Data        []byte
	Writer      *Writer
}

// DynamicDefineDataIdArgs carries DynamicallyDefineDataIdentifier (0x2C) request data.
type DynamicDefineDataIdArgs struct {
	SubFunction uint8
	DID         uint16
}

// WriteDataByIdentArgs carries WriteDataByIdentifier (0x2E) request data.
type WriteDataByIdentArgs struct {
	DID  uint16
	Data []byte
}

// IOControlArgs carries InputOutputControlByIdentifier (0x2F) request data.
type IOControlArgs struct {
	DID                 uint16
	ControlOptionRecord  []byte
	Writer               *Writer
}

// RoutineCtrlArgs carries RoutineControl (0x31) request data.
type RoutineCtrlArgs struct {
	SubFunction uint8
	RoutineID   uint16
	OptionData  []byte
	Writer      *Writer
}

// RequestDownloadArgs carries RequestDownload (0x34) request data.
// MaxBlockLength is pre-filled with the server's configured default and
// may be overwritten by the callback; the server rejects a final value
// below 3 with NRCGeneralReject.
type RequestDownloadArgs struct {
	DataFormatIdentifier uint8
	Address              uint32
	Size                 uint32
	MaxBlockLength       uint16
}

// RequestUploadArgs carries RequestUpload (0x35) request data.
// MaxBlockLength has the same pre-fill/override contract as in
// RequestDownloadArgs.
type RequestUploadArgs struct {
	DataFormatIdentifier uint8
	Address              uint32
	Size                 uint32
	MaxBlockLength       uint16
}

// TransferDataArgs carries TransferData (0x36) request data.
type TransferDataArgs struct {
	BlockSequenceCounter uint8
	Data                 []byte
	Writer               *Writer
}

// RequestTransferExitArgs carries RequestTransferExit (0x37) request data.
type RequestTransferExitArgs struct {
	Data   []byte
	Writer *Writer
}

// RequestFileTransferArgs carries RequestFileTransfer (0x38) request
// data. DataFormatIdentifier is only present on the wire for modes other
// than DeleteFile and ReadDir; FileSizeUncompressed and
// FileSizeCompressed are additionally absent for ReadFile. Absent fields
// read as zero.
// MaxBlockLength is pre-filled with the server's configured default and
// may be overwritten by the callback, with the same contract as
// RequestDownloadArgs.
type RequestFileTransferArgs struct {
	ModeOfOperation      uint8
	FilePath             []byte
	DataFormatIdentifier uint8
	FileSizeUncompressed uint32
	FileSizeCompressed   uint32
	MaxBlockLength       uint16
	Writer               *Writer
}

// WriteMemByAddrArgs carries WriteMemoryByAddress (0x3D) request data.
type WriteMemByAddrArgs struct {
	Address uint32
	Size    uint32
	Data    []byte
}

// ControlDTCSettingArgs carries ControlDTCSetting (0x85) request data.
type ControlDTCSettingArgs struct {
	SettingType uint8
}

// LinkControlArgs carries LinkControl (0x87) request data.
type LinkControlArgs struct {
	SubFunction uint8
	LinkRecord  []byte
}

// CustomArgs carries a request whose SID has no built-in handler, for
// manufacturer-specific services registered through Registry.
type CustomArgs struct {
	SID    uint8
	Data   []byte
	Writer *Writer
}

// ErrArgs reports a client-side failure: NRC carries a peer's negative
// response code when OptNegRespIsErr is set, Err carries a client.Err
// (transport failure, timeout, mismatched response) otherwise.
type ErrArgs struct {
	NRC NRC
	Err error
}

// ResponseReceivedArgs carries a positive or negative response the
// client matched against its outstanding request.
type ResponseReceivedArgs struct {
	SID      uint8
	Positive bool
	NRC      NRC
	Data     []byte
}

// Event is the single value passed to user callbacks from both the
// server poll loop and the client state machine. At most one argument
// field is non-nil, selected by Kind (events such as SessionTimeout,
// AuthTimeout and SendComplete carry none); everything else carries zero
// values. Modeled on the teacher's object-dictionary Streamer pattern
// of handing a borrowed Writer to the callback rather than exposing the
// backing buffer directly.
type Event struct {
	Kind Kind

	DiagSessCtrl         *DiagSessCtrlArgs
	EcuReset             *EcuResetArgs
	ClearDiagnosticInfo  *ClearDiagnosticInfoArgs
	ReadDTCInformation   *ReadDTCInformationArgs
	ReadDataByIdent      *ReadDataByIdentArgs
	ReadMemByAddr        *ReadMemByAddrArgs
	CommCtrl             *CommCtrlArgs
	SecAccessRequestSeed *SecAccessRequestSeedArgs
	SecAccessValidateKey *SecAccessValidateKeyArgs
	Auth                 *AuthArgs
	DynamicDefineDataId  *DynamicDefineDataIdArgs
	WriteDataByIdent     *WriteDataByIdentArgs
	IOControl            *IOControlArgs
	RoutineCtrl          *RoutineCtrlArgs
	RequestDownload      *RequestDownloadArgs
	RequestUpload        *RequestUploadArgs
	TransferData         *TransferDataArgs
	RequestTransferExit  *RequestTransferExitArgs
	RequestFileTransfer  *RequestFileTransferArgs
	WriteMemByAddr       *WriteMemByAddrArgs
	ControlDTCSetting    *ControlDTCSettingArgs
	LinkControl          *LinkControlArgs
	Custom               *CustomArgs

	ResponseReceived *ResponseReceivedArgs
	Err              *ErrArgs
}

// Handler is the callback signature for both server and client events.
// It returns the NRC to report for request-shaped events; client-side
// events (Idle, SendComplete, ResponseReceived, Poll) ignore the
// return value and should return NRCPositiveResponse.
type Handler func(Event) NRC
