package uds

// MaxSDULength is the ISO 15765-2 maximum Service Data Unit length
// carried by the First-Frame 12-bit length field.
const MaxSDULength = 4095

// MessageType categorizes an SDU. DIAG is the only category this stack
// parses; others are reserved so a Transport can extend addressing
// schemes without the core needing to understand them.
type MessageType uint8

const (
	MTypeDiag MessageType = iota
)

// AddressType distinguishes a 1:1 diagnostic dialog from a 1:n
// functional request broadcast to every ECU listening on an address.
type AddressType uint8

const (
	AddressPhysical AddressType = iota
	AddressFunctional
)

// SDU is the unit exchanged across the Transport boundary: one complete,
// already-segmented-or-reassembled UDS message.
type SDU struct {
	MType  MessageType
	SA, TA uint32
	TAType AddressType
	Data   []byte
}

// Validate enforces the invariants from the data model: length bound,
// and functional SDUs must additionally fit within a single link frame's
// payload (callers pass the link's single-frame capacity, e.g. 7 bytes
// on classic CAN with a 1-byte PCI).
func (s SDU) Validate(singleFramePayload int) error {
	if len(s.Data) > MaxSDULength {
		return ErrOversizeSDU
	}
	if s.TAType == AddressFunctional && len(s.Data) > singleFramePayload {
		return ErrOversizeFunc
	}
	return nil
}
