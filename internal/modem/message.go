package modem

import (
	"fmt"

	"github.com/nerrad567/insteon-bridge/internal/device"
)

// Modem frame codes.
const (
	startByte = 0x02

	codeStandardReceived = 0x50
	codeExtendedReceived = 0x51
	codeX10Received      = 0x52
	codeSendStandard     = 0x62
)

// Command bytes used by the bridge.
const (
	Cmd1IDRequest       = 0x10
	Cmd1StatusRequest   = 0x19
	Cmd1AssignToGroup   = 0x01
	Cmd1DeleteFromGroup = 0x02
	Cmd1On              = 0x11
	Cmd1FastOn          = 0x12
	Cmd1Off             = 0x13
	Cmd1FastOff         = 0x14

	// Cmd2FanStatus asks a FanLinc for the fan level instead of the light.
	Cmd2FanStatus = 0x03
)

// Message flag types, bits 7-5 of the flags byte.
const (
	flagTypeMask      = 0xE0
	flagAckDirect     = 0x20
	flagNakDirect     = 0xA0
	flagBroadcast     = 0x80
	flagAllLinkBcast  = 0xC0
	flagExtended      = 0x10
	directMaxHopsFlag = 0x0F
)

// sendEchoExtendedLength is the echo length of an extended send.
const sendEchoExtendedLength = 23

// frameLengths is the full length, start byte included, of every frame
// the modem can emit.
var frameLengths = map[byte]int{
	codeStandardReceived: 11,
	codeExtendedReceived: 25,
	codeX10Received:      4,
	0x53:                 10,
	0x54:                 3,
	0x55:                 2,
	0x56:                 7,
	0x57:                 10,
	0x58:                 3,
	0x60:                 9,
	codeSendStandard:     9,
	codeSendX10:          5,
	0x64:                 5,
	0x65:                 3,
	0x66:                 6,
	0x67:                 3,
	0x68:                 4,
	0x69:                 3,
	0x6A:                 3,
	0x6B:                 4,
	0x6C:                 3,
	0x6D:                 3,
	0x6E:                 3,
	0x6F:                 12,
	0x70:                 4,
	0x71:                 5,
	0x72:                 3,
	0x73:                 6,
}

// Message is an Insteon message. Data is sent only when Flags marks the
// message extended.
type Message struct {
	From  [3]byte
	To    [3]byte
	Flags byte
	Cmd1  byte
	Cmd2  byte
	Data  [14]byte
}

// StatusRequest builds a direct status request to addr.
func StatusRequest(to [3]byte) Message {
	return Message{To: to, Flags: directMaxHopsFlag, Cmd1: Cmd1StatusRequest}
}

// IDRequest builds a direct ID request; the device answers with an ID
// broadcast.
func IDRequest(to [3]byte) Message {
	return Message{To: to, Flags: directMaxHopsFlag, Cmd1: Cmd1IDRequest}
}

// LevelCommand builds a direct command turning the load of to on at
// level, or off when level is 0.
func LevelCommand(to [3]byte, level byte) Message {
	if level == 0 {
		return Message{To: to, Flags: directMaxHopsFlag, Cmd1: Cmd1Off}
	}
	return Message{To: to, Flags: directMaxHopsFlag, Cmd1: Cmd1On, Cmd2: level}
}

// FanCommand builds the extended command setting the fan of a FanLinc
// to level, or off when level is 0.
func FanCommand(to [3]byte, level byte) Message {
	m := LevelCommand(to, level)
	m.Flags |= flagExtended
	m.Data[0] = 0x02
	m.Data[13] = checksum(m.Cmd1, m.Cmd2, m.Data)
	return m
}

// FanStatusRequest asks a FanLinc for its fan level.
func FanStatusRequest(to [3]byte) Message {
	m := StatusRequest(to)
	m.Cmd2 = Cmd2FanStatus
	return m
}

// checksum is the two's complement of the command and first 13 data bytes.
func checksum(cmd1, cmd2 byte, data [14]byte) byte {
	sum := cmd1 + cmd2
	for _, b := range data[:13] {
		sum += b
	}
	return -sum
}

// IsExtended reports whether m carries user data.
func (m Message) IsExtended() bool { return m.Flags&flagExtended != 0 }

// FromAddress returns the sender address.
func (m Message) FromAddress() device.Address { return device.AddressFromBytes(m.From) }

// IsIDBroadcast reports whether m is a set-button or ID broadcast. The
// to-address then carries category, subcategory and firmware.
func (m Message) IsIDBroadcast() bool {
	return m.Flags&flagTypeMask == flagBroadcast &&
		(m.Cmd1 == Cmd1AssignToGroup || m.Cmd1 == Cmd1DeleteFromGroup)
}

// Identity returns the category, subcategory and firmware of an ID broadcast.
func (m Message) Identity() (cat, subcat, firmware int) {
	return int(m.To[0]), int(m.To[1]), int(m.To[2])
}

// IsGroupBroadcast reports whether m is an all-link on/off broadcast.
func (m Message) IsGroupBroadcast() bool {
	if m.Flags&flagTypeMask != flagAllLinkBcast {
		return false
	}
	switch m.Cmd1 {
	case Cmd1On, Cmd1FastOn, Cmd1Off, Cmd1FastOff:
		return true
	}
	return false
}

// Group returns the all-link group of a group broadcast.
func (m Message) Group() int { return int(m.To[2]) }

// On reports whether a group broadcast turns the group on.
func (m Message) On() bool { return m.Cmd1 == Cmd1On || m.Cmd1 == Cmd1FastOn }

// IsDirectAck reports whether m acknowledges a direct message.
func (m Message) IsDirectAck() bool { return m.Flags&flagTypeMask == flagAckDirect }

// IsNak reports whether m rejects a direct message.
func (m Message) IsNak() bool { return m.Flags&flagTypeMask == flagNakDirect }

func (m Message) String() string {
	return fmt.Sprintf("%s->%02X.%02X.%02X flags=%02X cmd=%02X/%02X",
		m.FromAddress(), m.To[0], m.To[1], m.To[2], m.Flags, m.Cmd1, m.Cmd2)
}

// Encode returns the modem send frame for m.
func (m Message) Encode() []byte {
	frame := []byte{startByte, codeSendStandard, m.To[0], m.To[1], m.To[2], m.Flags, m.Cmd1, m.Cmd2}
	if m.IsExtended() {
		frame = append(frame, m.Data[:]...)
	}
	return frame
}

// decodeStandard parses a received 0x50 frame.
func decodeStandard(frame []byte) (Message, error) {
	if len(frame) != frameLengths[codeStandardReceived] || frame[0] != startByte || frame[1] != codeStandardReceived {
		return Message{}, fmt.Errorf("%w: % X", ErrInvalidMessage, frame)
	}
	return Message{
		From:  [3]byte{frame[2], frame[3], frame[4]},
		To:    [3]byte{frame[5], frame[6], frame[7]},
		Flags: frame[8],
		Cmd1:  frame[9],
		Cmd2:  frame[10],
	}, nil
}

// Decoder splits the modem byte stream into frames and yields the
// standard messages among them. Received X10 frames are held until X10
// is called; other frames are skipped.
type Decoder struct {
	buf     []byte
	x10     []X10Message
	skipped uint64
}

// Feed appends data and returns every complete standard message.
func (d *Decoder) Feed(data []byte) []Message {
	d.buf = append(d.buf, data...)

	var out []Message
	for len(d.buf) > 0 {
		if d.buf[0] != startByte {
			d.buf = d.buf[1:]
			d.skipped++
			continue
		}
		if len(d.buf) < 2 {
			break
		}

		length, ok := frameLengths[d.buf[1]]
		if !ok {
			// Unknown code: drop the start byte and resync.
			d.buf = d.buf[1:]
			d.skipped++
			continue
		}
		if d.buf[1] == codeSendStandard && len(d.buf) >= 6 && d.buf[5]&flagExtended != 0 {
			length = sendEchoExtendedLength
		}
		if len(d.buf) < length {
			break
		}

		frame := d.buf[:length]
		switch frame[1] {
		case codeStandardReceived:
			if msg, err := decodeStandard(frame); err == nil {
				out = append(out, msg)
			}
		case codeX10Received:
			if msg, err := decodeX10(frame); err == nil {
				d.x10 = append(d.x10, msg)
			}
		}
		d.buf = d.buf[length:]
	}

	// Keep the buffer from pinning a large backing array.
	if len(d.buf) == 0 {
		d.buf = nil
	}
	return out
}

// X10 returns and clears the X10 frames received so far.
func (d *Decoder) X10() []X10Message {
	out := d.x10
	d.x10 = nil
	return out
}

// Skipped returns how many stray bytes were discarded while resyncing.
func (d *Decoder) Skipped() uint64 { return d.skipped }
