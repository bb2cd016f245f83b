package gcode

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBinaryM115(t *testing.T) {
	cmd, err := Parse("M115")
	require.NoError(t, err)

	data, err := cmd.Binary()
	require.NoError(t, err)
	require.Equal(t, []byte{0x82, 0x00, 0x73, 0xF5, 0xFA}, data)
}

func TestBinaryMove(t *testing.T) {
	cmd, err := Parse("G1 X1.0000 F1946")
	require.NoError(t, err)

	data, err := cmd.Binary()
	require.NoError(t, err)
	require.Len(t, data, 2+1+4+4+2)

	mask := binary.LittleEndian.Uint16(data)
	require.Equal(t, uint16(bitMark|bitG|bitX|bitF), mask)
	require.Equal(t, byte(1), data[2])
	require.Equal(t, float32(1.0), math.Float32frombits(binary.LittleEndian.Uint32(data[3:])))
	require.Equal(t, float32(1946), math.Float32frombits(binary.LittleEndian.Uint32(data[7:])))

	sum1, sum2 := fletcher16(data[:len(data)-2])
	require.Equal(t, []byte{sum1, sum2}, data[len(data)-2:])
}

func TestBinaryIntegerFields(t *testing.T) {
	cmd, err := Parse("N513 M109 S-20 P7 T1")
	require.NoError(t, err)

	data, err := cmd.Binary()
	require.NoError(t, err)

	require.Equal(t, uint16(bitMark|bitN|bitM|bitT|bitS|bitP), binary.LittleEndian.Uint16(data))
	require.Equal(t, uint16(513), binary.LittleEndian.Uint16(data[2:]))
	require.Equal(t, byte(109), data[4])
	require.Equal(t, byte(1), data[5])
	require.Equal(t, int32(-20), int32(binary.LittleEndian.Uint32(data[6:])))
	require.Equal(t, int32(7), int32(binary.LittleEndian.Uint32(data[10:])))
}

func TestBinaryV1Text(t *testing.T) {
	cmd, err := Parse("M117 hello")
	require.NoError(t, err)

	data, err := cmd.Binary()
	require.NoError(t, err)

	mask := binary.LittleEndian.Uint16(data)
	require.Zero(t, mask&bitV2)
	require.NotZero(t, mask&bitText)
	require.Len(t, data, 2+1+v1TextLen+2)
	require.Equal(t, "hello", string(data[3:8]))
	require.Equal(t, make([]byte, v1TextLen-5), data[8:3+v1TextLen])
}

func TestBinaryV2(t *testing.T) {
	cmd, err := Parse("G2 X10 Y10 I5 J0")
	require.NoError(t, err)

	data, err := cmd.Binary()
	require.NoError(t, err)

	mask := binary.LittleEndian.Uint16(data)
	require.NotZero(t, mask&bitV2)
	require.Equal(t, uint16(1<<0|1<<1), binary.LittleEndian.Uint16(data[2:]))
	// G is 16 bits wide in v2 frames
	require.Equal(t, uint16(2), binary.LittleEndian.Uint16(data[4:]))
	require.Len(t, data, 4+2+4*4+2)
}

func TestBinaryV2LongText(t *testing.T) {
	cmd, err := Parse("M117 a message that is too long for v1")
	require.NoError(t, err)

	data, err := cmd.Binary()
	require.NoError(t, err)

	mask := binary.LittleEndian.Uint16(data)
	require.NotZero(t, mask&bitV2)
	require.Equal(t, byte(len("a message that is too long for v1")), data[4])
}

func TestBinaryOutOfRange(t *testing.T) {
	for _, line := range []string{"N70000 M105", "T300", "G1 X1 S3000000000", "M-1"} {
		cmd, err := Parse(line)
		require.NoError(t, err, line)
		_, err = cmd.Binary()
		require.ErrorIs(t, err, ErrValueOutOfRange, line)
	}
}

func TestUnsignedRejectsFractions(t *testing.T) {
	n, err := unsigned('G', 28, math.MaxUint8)
	require.NoError(t, err)
	require.Equal(t, uint64(28), n)

	_, err = unsigned('G', 1.7, math.MaxUint8)
	require.ErrorIs(t, err, ErrInvalidValue)
}

func TestFletcher16(t *testing.T) {
	sum1, sum2 := fletcher16([]byte("abcde"))
	require.Equal(t, uint16(0xC8F0), uint16(sum2)<<8|uint16(sum1))
}

func TestEncoder(t *testing.T) {
	frame, err := Encoder{}.Encode("M115\n")
	require.NoError(t, err)
	require.Equal(t, "M115", frame.ASCII)
	require.Equal(t, []byte{0x82, 0x00, 0x73, 0xF5, 0xFA}, frame.Binary)

	_, err = Encoder{}.Encode("   ")
	require.ErrorIs(t, err, ErrEmptyCommand)
}
