package sicp

import (
	"fmt"
	"strings"
)

// SICP wire protocol constants.
const (
	// ledFrameSize is the total length of LED SET/GET frames.
	ledFrameSize = 0x09

	// powerFrameSize is the total length of power frames.
	powerFrameSize = 0x06

	// controlByte addresses the panel's own controller.
	controlByte = 0x01

	// groupByte is the broadcast group (always zero for these panels).
	groupByte = 0x00

	// CmdSet writes the LED accent state.
	CmdSet = 0xF3

	// CmdGet queries the LED accent state.
	CmdGet = 0xF4

	// CmdPower sets or queries panel power.
	CmdPower = 0x18

	// Power payload sentinels. 0x00 requests the current state; the
	// reply (and the set payload) use 0x02 for on and 0x01 for off.
	powerPayloadOn    = 0x02
	powerPayloadOff   = 0x01
	powerPayloadQuery = 0x00

	// minLedReplyLen is the shortest parseable LED reply (through the
	// blue byte; a trailing checksum may or may not be present).
	minLedReplyLen = 8

	// minPowerReplyLen is the shortest parseable power reply.
	minPowerReplyLen = 5
)

// Frame is one SICP command or reply on the wire: length-prefixed and
// checksum-terminated. Frames are immutable once built.
//
// Invariant: frame[0] == len(frame) and frame[len-1] == XOR(frame[:len-1]).
type Frame []byte

// Checksum XOR-folds all input bytes. It is appended when building frames
// and may be used to validate received ones.
func Checksum(data []byte) byte {
	var value byte
	for _, b := range data {
		value ^= b
	}
	return value
}

// Valid reports whether the frame satisfies the length and checksum
// invariants. Built frames always do; received frames may not.
func (f Frame) Valid() bool {
	if len(f) < 2 || int(f[0]) != len(f) {
		return false
	}
	return f[len(f)-1] == Checksum(f[:len(f)-1])
}

// Command returns the command byte, or zero for impossibly short frames.
func (f Frame) Command() byte {
	if len(f) < 4 {
		return 0
	}
	return f[3]
}

// String renders the frame as space-separated hex, matching panel
// documentation (e.g. "09 01 00 F3 01 FF 00 00 05").
func (f Frame) String() string {
	var sb strings.Builder
	for i, b := range f {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", b)
	}
	return sb.String()
}

// BuildSetFrame builds the 9-byte LED SET frame.
//
// When on is false the colour components are forced to zero regardless of
// the caller's input; the panel treats a zeroed payload as "accent off".
// Colour components outside 0-255 return ErrColorOutOfRange.
func BuildSetFrame(on bool, red, green, blue int) (Frame, error) {
	if !on {
		red, green, blue = 0, 0, 0
	}
	for _, v := range []int{red, green, blue} {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("%w: got %d", ErrColorOutOfRange, v)
		}
	}

	onFlag := byte(0x00)
	if on {
		onFlag = 0x01
	}

	f := Frame{
		ledFrameSize,
		controlByte,
		groupByte,
		CmdSet,
		onFlag,
		byte(red),
		byte(green),
		byte(blue),
	}
	return append(f, Checksum(f)), nil
}

// BuildGetFrame builds the fixed 9-byte LED state query frame.
func BuildGetFrame() Frame {
	f := Frame{
		ledFrameSize,
		controlByte,
		groupByte,
		CmdGet,
		0x00,
		0x00,
		0x00,
		0x00,
	}
	return append(f, Checksum(f))
}

// BuildPowerFrame builds the 6-byte power command frame.
func BuildPowerFrame(on bool) Frame {
	payload := byte(powerPayloadOff)
	if on {
		payload = powerPayloadOn
	}
	f := Frame{
		powerFrameSize,
		0x00,
		0x00,
		CmdPower,
		payload,
	}
	return append(f, Checksum(f))
}

// BuildPowerQueryFrame builds the 6-byte power status query frame.
//
// Power queries are best-effort: some firmware echoes the last power
// command instead of the true state, so callers must treat the reply as a
// hint rather than ground truth.
func BuildPowerQueryFrame() Frame {
	f := Frame{
		powerFrameSize,
		0x00,
		0x00,
		CmdPower,
		powerPayloadQuery,
	}
	return append(f, Checksum(f))
}

// ParseLedReply parses an LED SET acknowledgement or GET reply.
//
// The reply layout mirrors the request:
//
//	[0]: frame length
//	[1]: control byte
//	[2]: group byte
//	[3]: command echo (0xF3 or 0xF4)
//	[4]: LED on/off flag
//	[5..7]: red, green, blue
//	[8]: checksum (may be absent on truncated but otherwise usable replies)
//
// Any non-zero flag byte counts as set; some firmware uses values other
// than 0x01. The LED counts as on only when the flag is set AND at least
// one colour channel is non-zero; some firmware sets the flag while
// zeroing the colour, which would otherwise report a lit strip that is
// dark.
func ParseLedReply(data []byte) (LedStatus, error) {
	if len(data) < minLedReplyLen {
		return LedStatus{}, &ProtocolError{
			Reason: fmt.Sprintf("LED reply too short: %d bytes (% X)", len(data), data),
		}
	}
	if data[3] != CmdSet && data[3] != CmdGet {
		return LedStatus{}, &ProtocolError{
			Reason: fmt.Sprintf("unexpected command echo in LED reply: 0x%02X", data[3]),
		}
	}

	onFlag := data[4] != 0x00
	red, green, blue := data[5], data[6], data[7]
	return LedStatus{
		On:    onFlag && (red > 0 || green > 0 || blue > 0),
		Red:   red,
		Green: green,
		Blue:  blue,
	}, nil
}

// ParsePowerReply parses a power command acknowledgement or query reply.
//
// The payload byte must be one of the two known sentinels (0x02 on,
// 0x01 off); anything else is a protocol error rather than a guess.
func ParsePowerReply(data []byte) (PowerStatus, error) {
	if len(data) < minPowerReplyLen {
		return PowerStatus{}, &ProtocolError{
			Reason: fmt.Sprintf("power reply too short: %d bytes (% X)", len(data), data),
		}
	}
	switch data[4] {
	case powerPayloadOn:
		on := true
		return PowerStatus{On: &on}, nil
	case powerPayloadOff:
		on := false
		return PowerStatus{On: &on}, nil
	default:
		return PowerStatus{}, &ProtocolError{
			Reason: fmt.Sprintf("unexpected power payload byte: 0x%02X", data[4]),
		}
	}
}

// ParseHexColor parses "RRGGBB" or "#RRGGBB" into components.
func ParseHexColor(color string) (red, green, blue int, err error) {
	normalized := strings.TrimPrefix(strings.TrimSpace(color), "#")
	if len(normalized) != 6 {
		return 0, 0, 0, fmt.Errorf("sicp: expected hex format RRGGBB, got %q", color)
	}
	var r, g, b int
	if _, err := fmt.Sscanf(normalized, "%02x%02x%02x", &r, &g, &b); err != nil {
		return 0, 0, 0, fmt.Errorf("sicp: expected hex format RRGGBB, got %q", color)
	}
	return r, g, b, nil
}
