package shared

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"

	"github.com/Alextopher/basic-audio-unit/params"
)

type PacketType uint32

const (
	KA PacketType = iota // Keep Alive
	PING
	QUIT
	PARAM // [0-7] address [8-11] value
	NOTE  // [0] key [1] velocity [2] on
	CAPS  // [0-3] name [4-7] number of voices [8-31] identity
	UNKNOWN = 0xFFFFFFFF
)

const (
	// PayloadSize is the fixed size of every packet body.
	PayloadSize = 32
	// DatagramSize is the payload plus the 4 byte type header.
	DatagramSize = 4 + PayloadSize
)

var ErrPayloadSize = errors.New("invalid packet payload length")

type Packet interface {
	fmt.Stringer
	Type() PacketType
	Serialize() []byte
	DeSerialize(data []byte) error
}

func checkSize(name string, data []byte) error {
	if len(data) != PayloadSize {
		return fmt.Errorf("%s: %w %d byte", name, ErrPayloadSize, len(data))
	}
	return nil
}

// Keep Alive Packet (KA)
// [0-31] unused
type KA_Packet struct{}

func (*KA_Packet) Type() PacketType {
	return KA
}

func (*KA_Packet) Serialize() []byte {
	return make([]byte, PayloadSize)
}

func (*KA_Packet) DeSerialize(data []byte) error {
	return checkSize("KA_Packet", data)
}

func (*KA_Packet) String() string {
	return "KA"
}

// Ping Packet (PING)
// [0-31] bytes to be echoed back
type PING_Packet []byte

func RandomPing() PING_Packet {
	b := make([]byte, PayloadSize)
	_, err := rand.Read(b)
	if err != nil {
		panic(err)
	}

	return PING_Packet(b)
}

func (PING_Packet) Type() PacketType {
	return PING
}

func (p PING_Packet) Serialize() []byte {
	b := make([]byte, PayloadSize)
	copy(b, p)
	return b
}

func (p *PING_Packet) DeSerialize(data []byte) error {
	if err := checkSize("PING_Packet", data); err != nil {
		return err
	}

	*p = append(PING_Packet(nil), data...)
	return nil
}

func (p PING_Packet) String() string {
	return "PING(" + hex.EncodeToString(p) + ")"
}

// Quit Packet (QUIT)
// [0-31] unused
type QUIT_Packet struct{}

func (*QUIT_Packet) Type() PacketType {
	return QUIT
}

func (*QUIT_Packet) Serialize() []byte {
	return make([]byte, PayloadSize)
}

func (*QUIT_Packet) DeSerialize(data []byte) error {
	return checkSize("QUIT_Packet", data)
}

func (QUIT_Packet) String() string {
	return "QUIT"
}

// Parameter Packet (PARAM)
// [0-7] uint64 parameter address
// [8-11] float32 value
// [12-31] unused
type PARAM_Packet struct {
	Address params.Address
	Value   float32
}

func (*PARAM_Packet) Type() PacketType {
	return PARAM
}

func (p *PARAM_Packet) Serialize() []byte {
	buf := bytes.Buffer{}

	binary.Write(&buf, binary.BigEndian, uint64(p.Address))
	binary.Write(&buf, binary.BigEndian, math.Float32bits(p.Value))

	buf.Write(make([]byte, PayloadSize-buf.Len()))
	return buf.Bytes()
}

func (p *PARAM_Packet) DeSerialize(data []byte) error {
	if err := checkSize("PARAM_Packet", data); err != nil {
		return err
	}

	p.Address = params.Address(binary.BigEndian.Uint64(data[0:8]))
	p.Value = math.Float32frombits(binary.BigEndian.Uint32(data[8:12]))
	return nil
}

func (p *PARAM_Packet) String() string {
	return fmt.Sprintf("PARAM(%s, %f)", p.Address, p.Value)
}

// Note Packet (NOTE)
// [0] key
// [1] velocity
// [2] 1 for note on, 0 for note off
// [3-31] unused
type NOTE_Packet struct {
	Key      uint8
	Velocity uint8
	On       bool
}

func (*NOTE_Packet) Type() PacketType {
	return NOTE
}

func (p *NOTE_Packet) Serialize() []byte {
	b := make([]byte, PayloadSize)
	b[0] = p.Key
	b[1] = p.Velocity
	if p.On {
		b[2] = 1
	}
	return b
}

func (p *NOTE_Packet) DeSerialize(data []byte) error {
	if err := checkSize("NOTE_Packet", data); err != nil {
		return err
	}

	if data[0] > 127 || data[1] > 127 {
		return fmt.Errorf("NOTE_Packet: key %d velocity %d outside the MIDI range", data[0], data[1])
	}

	p.Key = data[0]
	p.Velocity = data[1]
	p.On = data[2] != 0
	return nil
}

func (p *NOTE_Packet) String() string {
	state := "off"
	if p.On {
		state = "on"
	}
	return fmt.Sprintf("NOTE(%d, %d, %s)", p.Key, p.Velocity, state)
}

// Caps Packet (CAPS)
// [0-3] name
// [4-7] uint32 number of voices
// [8-31] identity
type CAPS_Packet struct {
	Name      string
	NumVoices uint32
	Identity  [24]byte
}

func (*CAPS_Packet) Type() PacketType {
	return CAPS
}

func (p *CAPS_Packet) Serialize() []byte {
	buf := bytes.Buffer{}

	// the name is always 4 bytes on the wire
	var name [4]byte
	copy(name[:], p.Name)
	buf.Write(name[:])

	binary.Write(&buf, binary.LittleEndian, p.NumVoices)

	buf.Write(p.Identity[:])

	return buf.Bytes()
}

func (p *CAPS_Packet) DeSerialize(data []byte) error {
	if err := checkSize("CAPS_Packet", data); err != nil {
		return err
	}

	p.Name = string(bytes.TrimRight(data[0:4], "\x00"))
	p.NumVoices = binary.LittleEndian.Uint32(data[4:8])
	copy(p.Identity[:], data[8:])
	return nil
}

func (p *CAPS_Packet) String() string {
	return fmt.Sprintf("CAPS(%q, %d, %s)", p.Name, p.NumVoices, hex.EncodeToString(p.Identity[:]))
}

type UNKNOWN_Packet []byte

func (UNKNOWN_Packet) Type() PacketType {
	return UNKNOWN
}

func (p UNKNOWN_Packet) Serialize() []byte {
	b := make([]byte, PayloadSize)
	copy(b, p)
	return b
}

func (p *UNKNOWN_Packet) DeSerialize(data []byte) error {
	if err := checkSize("UNKNOWN_Packet", data); err != nil {
		return err
	}

	*p = append(UNKNOWN_Packet(nil), data...)
	return nil
}

func (p UNKNOWN_Packet) String() string {
	return "UNKNOWN(" + hex.EncodeToString(p) + ")"
}

// Encode prefixes the serialized packet with its type.
func Encode(p Packet) []byte {
	b := make([]byte, 4, DatagramSize)
	binary.LittleEndian.PutUint32(b, uint32(p.Type()))
	return append(b, p.Serialize()...)
}

// Decode parses one datagram. Unrecognized types decode to *UNKNOWN_Packet.
func Decode(datagram []byte) (Packet, error) {
	if len(datagram) != DatagramSize {
		return nil, fmt.Errorf("datagram: %w %d byte", ErrPayloadSize, len(datagram))
	}

	var p Packet
	switch PacketType(binary.LittleEndian.Uint32(datagram[0:4])) {
	case KA:
		p = &KA_Packet{}
	case PING:
		p = &PING_Packet{}
	case QUIT:
		p = &QUIT_Packet{}
	case PARAM:
		p = &PARAM_Packet{}
	case NOTE:
		p = &NOTE_Packet{}
	case CAPS:
		p = &CAPS_Packet{}
	default:
		p = &UNKNOWN_Packet{}
	}

	if err := p.DeSerialize(datagram[4:]); err != nil {
		return nil, err
	}
	return p, nil
}
