// Package traci implements the subset of SUMO's TraCI control protocol the
// comparison runner needs: stepping the simulation, reading vehicle, lane and
// traffic light state, and adjusting phase durations.
//
// TraCI messages are big-endian. A message is a 4-byte total length followed
// by commands; each command is [len:u8][id:u8][content], or
// [0:u8][len:i32][id:u8][content] when it does not fit in a byte.
package traci

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Command identifiers.
const (
	cmdGetVersion     byte = 0x00
	cmdSimulationStep byte = 0x02
	cmdClose          byte = 0x7F

	cmdGetTrafficLightVariable byte = 0xa2
	cmdGetLaneVariable         byte = 0xa3
	cmdGetVehicleVariable      byte = 0xa4
	cmdGetSimulationVariable   byte = 0xab
	cmdSetTrafficLightVariable byte = 0xc2

	// responses to get commands carry the request id plus this offset
	responseOffset byte = 0x10
)

// Variable identifiers.
const (
	varIDList                byte = 0x00
	varLastStepVehicleNumber byte = 0x10
	varPhaseDuration         byte = 0x24
	varControlledLanes       byte = 0x26
	varCurrentPhase          byte = 0x28
	varArrivedNumber         byte = 0x79
	varWaitingTime           byte = 0x7a
)

// Value type tags.
const (
	typeInteger    byte = 0x09
	typeDouble     byte = 0x0B
	typeString     byte = 0x0C
	typeStringList byte = 0x0E
)

// Status codes carried in every command response.
const (
	StatusOK             byte = 0x00
	StatusNotImplemented byte = 0x01
	StatusError          byte = 0xFF
)

// ErrShortMessage is returned when a response ends before a value is complete.
var ErrShortMessage = errors.New("traci: truncated message")

// CommandError reports a non-OK status returned by the simulator.
type CommandError struct {
	Command byte
	Status  byte
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("traci: command 0x%02x failed with status 0x%02x: %s", e.Command, e.Status, e.Message)
}

// ProtocolError reports a response that does not match the request.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "traci: protocol error: " + e.Reason
}

// storage builds outgoing command content.
type storage struct {
	buf []byte
}

func (s *storage) writeByte(b byte) {
	s.buf = append(s.buf, b)
}

func (s *storage) writeInt(v int32) {
	s.buf = binary.BigEndian.AppendUint32(s.buf, uint32(v))
}

func (s *storage) writeDouble(v float64) {
	s.buf = binary.BigEndian.AppendUint64(s.buf, math.Float64bits(v))
}

func (s *storage) writeString(v string) {
	s.writeInt(int32(len(v)))
	s.buf = append(s.buf, v...)
}

func (s *storage) writeStringList(v []string) {
	s.writeInt(int32(len(v)))
	for _, str := range v {
		s.writeString(str)
	}
}

// writeCommand appends a framed command with the given id and content.
func (s *storage) writeCommand(id byte, content []byte) {
	if n := 1 + 1 + len(content); n <= 255 {
		s.writeByte(byte(n))
	} else {
		s.writeByte(0)
		s.writeInt(int32(1 + 4 + 1 + len(content)))
	}
	s.writeByte(id)
	s.buf = append(s.buf, content...)
}

// message wraps the accumulated commands in a length-prefixed message.
func (s *storage) message() []byte {
	out := make([]byte, 0, 4+len(s.buf))
	out = binary.BigEndian.AppendUint32(out, uint32(4+len(s.buf)))
	return append(out, s.buf...)
}

// reader decodes an incoming message body.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) remaining() int {
	return len(r.buf) - r.pos
}

func (r *reader) readByte() (byte, error) {
	if r.remaining() < 1 {
		return 0, ErrShortMessage
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) readInt() (int32, error) {
	if r.remaining() < 4 {
		return 0, ErrShortMessage
	}
	v := int32(binary.BigEndian.Uint32(r.buf[r.pos:]))
	r.pos += 4
	return v, nil
}

func (r *reader) readDouble() (float64, error) {
	if r.remaining() < 8 {
		return 0, ErrShortMessage
	}
	v := math.Float64frombits(binary.BigEndian.Uint64(r.buf[r.pos:]))
	r.pos += 8
	return v, nil
}

func (r *reader) readString() (string, error) {
	n, err := r.readInt()
	if err != nil {
		return "", err
	}
	if n < 0 || int(n) > r.remaining() {
		return "", ErrShortMessage
	}
	s := string(r.buf[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, nil
}

func (r *reader) readStringList() ([]string, error) {
	n, err := r.readInt()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, &ProtocolError{Reason: fmt.Sprintf("negative string list length %d", n)}
	}
	out := make([]string, 0, n)
	for i := int32(0); i < n; i++ {
		s, err := r.readString()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// readCommandHeader reads a command length and id, returning the number of
// content bytes that follow.
func (r *reader) readCommandHeader() (id byte, contentLen int, err error) {
	short, err := r.readByte()
	if err != nil {
		return 0, 0, err
	}
	headerLen := 2
	total := int(short)
	if short == 0 {
		long, err := r.readInt()
		if err != nil {
			return 0, 0, err
		}
		headerLen = 6
		total = int(long)
	}
	if id, err = r.readByte(); err != nil {
		return 0, 0, err
	}
	contentLen = total - headerLen
	if contentLen < 0 || contentLen > r.remaining() {
		return 0, 0, ErrShortMessage
	}
	return id, contentLen, nil
}

// readStatus consumes one status response and returns an error for a non-OK
// result.
func (r *reader) readStatus(command byte) error {
	id, _, err := r.readCommandHeader()
	if err != nil {
		return err
	}
	if id != command {
		return &ProtocolError{Reason: fmt.Sprintf("status for command 0x%02x, expected 0x%02x", id, command)}
	}
	result, err := r.readByte()
	if err != nil {
		return err
	}
	description, err := r.readString()
	if err != nil {
		return err
	}
	if result != StatusOK {
		return &CommandError{Command: command, Status: result, Message: description}
	}
	return nil
}

// expectType consumes a type tag and checks it.
func (r *reader) expectType(want byte) error {
	got, err := r.readByte()
	if err != nil {
		return err
	}
	if got != want {
		return &ProtocolError{Reason: fmt.Sprintf("value type 0x%02x, expected 0x%02x", got, want)}
	}
	return nil
}
