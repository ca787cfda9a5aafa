package isotp

// EncodeSTMin converts a separation time in microseconds to the single
// byte carried in an FC frame, per ISO 15765-2 Table 15: 0x00-0x7F is
// 0-127ms, 0xF1-0xF9 is 100-900us in 100us steps. Values that don't fall
// on those grids are rounded down to the nearest representable value,
// except 1-99us, which encodes as 100us (0xF1), and anything above
// 127ms, which encodes as 127ms (0x7F).
func EncodeSTMin(us uint32) byte {
	switch {
	case us == 0:
		return 0x00
	case us < 1000:
		step := us / 100
		if step < 1 {
			step = 1
		}
		if step > 9 {
			step = 9
		}
		return 0xF0 + byte(step)
	default:
		ms := us / 1000
		if ms > 0x7F {
			ms = 0x7F
		}
		return byte(ms)
	}
}

// DecodeSTMin converts a byte from an FC frame back into microseconds of
// separation time. Values outside the two defined ranges are reserved
// and decode to 0, per spec.md's instruction to treat reserved values as
// 0 rather than reject the frame.
func DecodeSTMin(b byte) uint32 {
	switch {
	case b <= 0x7F:
		return uint32(b) * 1000
	case b >= 0xF1 && b <= 0xF9:
		return uint32(b-0xF0) * 100
	default:
		return 0
	}
}
