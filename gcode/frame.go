package gcode

import (
	"encoding/binary"
	"fmt"
	"math"
)

// First bitfield
const (
	bitN    = 1 << 0
	bitM    = 1 << 1
	bitG    = 1 << 2
	bitX    = 1 << 3
	bitY    = 1 << 4
	bitZ    = 1 << 5
	bitE    = 1 << 6
	bitMark = 1 << 7 // always set so a frame never looks like ASCII
	bitF    = 1 << 8
	bitT    = 1 << 9
	bitS    = 1 << 10
	bitP    = 1 << 11
	bitV2   = 1 << 12
	bitText = 1 << 15
)

// Second bitfield, present only in v2 frames
var v2Bits = map[Letter]uint16{
	'I': 1 << 0,
	'J': 1 << 1,
	'R': 1 << 2,
	'D': 1 << 3,
	'C': 1 << 4,
	'H': 1 << 5,
	'A': 1 << 6,
	'B': 1 << 7,
	'K': 1 << 8,
	'L': 1 << 9,
	'O': 1 << 10,
}

var v1Bits = map[Letter]uint16{
	'N': bitN, 'M': bitM, 'G': bitG,
	'X': bitX, 'Y': bitY, 'Z': bitZ, 'E': bitE,
	'F': bitF, 'T': bitT, 'S': bitS, 'P': bitP,
}

// v1 frames carry text in a fixed 16 byte field
const v1TextLen = 16

// Frame is the encoded form of one line plus its display string
type Frame struct {
	Binary []byte
	ASCII  string
}

// needsV2 reports whether the command cannot be expressed in a v1 frame
func (c *Command) needsV2() bool {
	for l := range v2Bits {
		if c.Has(l) {
			return true
		}
	}
	if c.Has('M') && c.Value('M') > math.MaxUint8 {
		return true
	}
	if c.Has('G') && c.Value('G') > math.MaxUint8 {
		return true
	}
	return len(c.text) > v1TextLen
}

// Binary encodes the command into a checksummed frame
func (c *Command) Binary() ([]byte, error) {
	v2 := c.needsV2()

	mask := uint16(bitMark)
	var mask2 uint16
	for l, bit := range v1Bits {
		if c.Has(l) {
			mask |= bit
		}
	}
	if v2 {
		mask |= bitV2
		for l, bit := range v2Bits {
			if c.Has(l) {
				mask2 |= bit
			}
		}
	}
	if c.text != "" {
		mask |= bitText
	}

	buf := make([]byte, 0, 64)
	buf = binary.LittleEndian.AppendUint16(buf, mask)
	if v2 {
		buf = binary.LittleEndian.AppendUint16(buf, mask2)
		if c.text != "" {
			if len(c.text) > math.MaxUint8 {
				return nil, fmt.Errorf("%w: text longer than 255 bytes", ErrValueOutOfRange)
			}
			buf = append(buf, byte(len(c.text)))
		}
	}

	var err error
	for _, l := range fieldOrder {
		if !c.Has(l) {
			continue
		}
		buf, err = c.appendField(buf, l, v2)
		if err != nil {
			return nil, err
		}
	}

	if c.text != "" {
		if v2 {
			buf = append(buf, c.text...)
		} else {
			text := make([]byte, v1TextLen)
			copy(text, c.text)
			buf = append(buf, text...)
		}
	}

	sum1, sum2 := fletcher16(buf)
	return append(buf, sum1, sum2), nil
}

func (c *Command) appendField(buf []byte, l Letter, v2 bool) ([]byte, error) {
	v := c.Value(l)
	switch l {
	case 'N':
		n, err := unsigned(l, v, math.MaxUint16)
		if err != nil {
			return nil, err
		}
		return binary.LittleEndian.AppendUint16(buf, uint16(n)), nil
	case 'M', 'G':
		if v2 {
			n, err := unsigned(l, v, math.MaxUint16)
			if err != nil {
				return nil, err
			}
			return binary.LittleEndian.AppendUint16(buf, uint16(n)), nil
		}
		n, err := unsigned(l, v, math.MaxUint8)
		if err != nil {
			return nil, err
		}
		return append(buf, byte(n)), nil
	case 'T':
		n, err := unsigned(l, v, math.MaxUint8)
		if err != nil {
			return nil, err
		}
		return append(buf, byte(n)), nil
	case 'S', 'P':
		if v < math.MinInt32 || v > math.MaxInt32 {
			return nil, fmt.Errorf("%w: %c%v", ErrValueOutOfRange, l, v)
		}
		return binary.LittleEndian.AppendUint32(buf, uint32(int32(v))), nil
	default:
		return binary.LittleEndian.AppendUint32(buf, math.Float32bits(float32(v))), nil
	}
}

func unsigned(l Letter, v float64, max uint64) (uint64, error) {
	if v < 0 || v > float64(max) {
		return 0, fmt.Errorf("%w: %c%v", ErrValueOutOfRange, l, v)
	}
	if v != math.Trunc(v) {
		return 0, fmt.Errorf("%w: %c%v is not a whole number", ErrInvalidValue, l, v)
	}
	return uint64(v), nil
}

// fletcher16 is the checksum trailing every frame, both sums modulo 255
func fletcher16(data []byte) (byte, byte) {
	var sum1, sum2 uint16
	for _, b := range data {
		sum1 = (sum1 + uint16(b)) % 255
		sum2 = (sum2 + sum1) % 255
	}
	return byte(sum1), byte(sum2)
}

// Encoder turns host lines into frames
type Encoder struct{}

// Encode parses line and returns its frame
func (Encoder) Encode(line string) (Frame, error) {
	cmd, err := Parse(line)
	if err != nil {
		return Frame{}, err
	}
	data, err := cmd.Binary()
	if err != nil {
		return Frame{}, err
	}
	return Frame{Binary: data, ASCII: cmd.ASCII()}, nil
}
