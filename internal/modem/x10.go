package modem

import (
	"fmt"
	"strings"
)

const codeSendX10 = 0x63

// X10 frame flags: a frame either addresses a unit or carries a command
// for the units last addressed on its house code.
const (
	x10FlagUnit    = 0x00
	x10FlagCommand = 0x80
)

// X10 function codes.
const (
	X10AllUnitsOff  byte = 0x0
	X10AllLightsOn  byte = 0x1
	X10On           byte = 0x2
	X10Off          byte = 0x3
	X10Dim          byte = 0x4
	X10Bright       byte = 0x5
	X10AllLightsOff byte = 0x6
)

// x10Codes maps house codes A..P, and unit codes 1..16, to their wire
// nibble. Both use the same table.
var x10Codes = [16]byte{0x6, 0xE, 0x2, 0xA, 0x1, 0x9, 0x5, 0xD, 0x7, 0xF, 0x3, 0xB, 0x0, 0x8, 0x4, 0xC}

func x10Index(code byte) int {
	for i, c := range x10Codes {
		if c == code {
			return i
		}
	}
	return -1
}

// X10Message is one X10 frame sent or received through the modem.
type X10Message struct {
	Raw  byte
	Flag byte
}

// X10Unit builds the frame addressing unit 1..16 on house a..p.
func X10Unit(house string, unit int) (X10Message, error) {
	h, err := houseNibble(house)
	if err != nil {
		return X10Message{}, err
	}
	if unit < 1 || unit > len(x10Codes) {
		return X10Message{}, fmt.Errorf("%w: x10 unit code %d", ErrInvalidMessage, unit)
	}
	return X10Message{Raw: h<<4 | x10Codes[unit-1], Flag: x10FlagUnit}, nil
}

// X10Command builds the frame sending function cmd to house.
func X10Command(house string, cmd byte) (X10Message, error) {
	h, err := houseNibble(house)
	if err != nil {
		return X10Message{}, err
	}
	if cmd > 0xF {
		return X10Message{}, fmt.Errorf("%w: x10 command %#x", ErrInvalidMessage, cmd)
	}
	return X10Message{Raw: h<<4 | cmd, Flag: x10FlagCommand}, nil
}

func houseNibble(house string) (byte, error) {
	house = strings.ToLower(house)
	if len(house) != 1 || house[0] < 'a' || house[0] > 'p' {
		return 0, fmt.Errorf("%w: x10 house code %q", ErrInvalidMessage, house)
	}
	return x10Codes[house[0]-'a'], nil
}

// House returns the lowercase house code, or "" for a corrupt frame.
func (m X10Message) House() string {
	i := x10Index(m.Raw >> 4)
	if i < 0 {
		return ""
	}
	return string(rune('a' + i))
}

// IsCommand reports whether m carries a function rather than a unit.
func (m X10Message) IsCommand() bool { return m.Flag == x10FlagCommand }

// Unit returns the unit code 1..16 of a unit frame.
func (m X10Message) Unit() int { return x10Index(m.Raw&0x0F) + 1 }

// Command returns the function code of a command frame.
func (m X10Message) Command() byte { return m.Raw & 0x0F }

// Encode returns the modem send frame for m.
func (m X10Message) Encode() []byte {
	return []byte{startByte, codeSendX10, m.Raw, m.Flag}
}

func (m X10Message) String() string {
	if m.IsCommand() {
		return fmt.Sprintf("x10 %s cmd=%X", m.House(), m.Command())
	}
	return fmt.Sprintf("x10 %s%d", m.House(), m.Unit())
}

// decodeX10 parses a received 0x52 frame.
func decodeX10(frame []byte) (X10Message, error) {
	if len(frame) != frameLengths[codeX10Received] || frame[1] != codeX10Received {
		return X10Message{}, fmt.Errorf("%w: % X", ErrInvalidMessage, frame)
	}
	return X10Message{Raw: frame[2], Flag: frame[3]}, nil
}
