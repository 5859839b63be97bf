package link

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksum(t *testing.T) {
	assert.Equal(t, ChecksumSeed, Checksum(nil), "empty input yields the seed")
	assert.Equal(t, byte(0xFF^0xEF^0xFA), Checksum([]byte{0xEF, 0xFA}))
	assert.Equal(t, byte(0xFE), Checksum([]byte{0xEF, 0xFA, 0x10, 0x05, 0x02, 0x01, 0x02}))
	assert.NotEqual(t, byte(0x00), Checksum(make([]byte, MaxFrameSize-1)), "all-zero data must not checksum to zero")
}

func TestAddress_IsValid(t *testing.T) {
	assert.False(t, Address(0x00).IsValid())
	assert.True(t, Address(0x01).IsValid())
	assert.True(t, Address(0x7F).IsValid())
	assert.False(t, Address(0x80).IsValid())
	assert.False(t, Address(0xFF).IsValid())
	assert.Equal(t, "0x1A", Address(0x1A).String())
}

func TestFrame_Pack(t *testing.T) {
	f, err := NewFrame(0x10, 0x05, []byte{0x01, 0x02})
	require.NoError(t, err)

	assert.Equal(t, 8, f.Size())
	assert.Equal(t, []byte{0xEF, 0xFA, 0x10, 0x05, 0x02, 0x01, 0x02, 0xFE}, f.Pack())
	assert.False(t, f.IsBroadcast())
	assert.Equal(t, "dst=0x10 src=0x05 len=2 data=[01:02]", f.String())
}

func TestFrame_PackEmpty(t *testing.T) {
	f, err := NewFrame(BroadcastAddress, BroadcastAddress, nil)
	require.NoError(t, err)

	assert.True(t, f.IsBroadcast())
	assert.Equal(t, []byte{0xEF, 0xFA, 0x01, 0x01, 0x00, 0xEA}, f.Pack())
}

func TestFrame_PackPanicsOnOversizedPayload(t *testing.T) {
	f := &Frame{Dest: 0x10, Src: 0x05, Payload: make([]byte, MaxPayloadSize+1)}
	assert.Panics(t, func() { f.Pack() })
}

func TestNewFrame_Validation(t *testing.T) {
	_, err := NewFrame(0x10, 0x05, make([]byte, MaxPayloadSize+1))
	require.ErrorIs(t, err, ErrLengthOutOfRange)

	_, err = NewFrame(0x00, 0x05, nil)
	require.ErrorIs(t, err, ErrAddressOutOfRange)

	_, err = NewFrame(0x10, 0x80, nil)
	require.ErrorIs(t, err, ErrAddressOutOfRange)

	payload := []byte{0xAA}
	f, err := NewFrame(0x10, 0x05, payload)
	require.NoError(t, err)
	payload[0] = 0x00
	assert.Equal(t, byte(0xAA), f.Payload[0], "NewFrame must copy the payload")
}

func TestParseFrame_RoundTrip(t *testing.T) {
	for n := 0; n <= MaxPayloadSize; n++ {
		payload := make([]byte, n)
		for i := range payload {
			payload[i] = byte(i*7 + n)
		}

		f, err := NewFrame(0x22, 0x33, payload)
		require.NoError(t, err)

		got, err := ParseFrame(f.Pack())
		require.NoError(t, err, "length %d", n)
		assert.Equal(t, f.Dest, got.Dest)
		assert.Equal(t, f.Src, got.Src)
		assert.Equal(t, payload, got.Payload, "length %d", n)
	}
}

func TestParseFrame_Errors(t *testing.T) {
	valid := []byte{0xEF, 0xFA, 0x10, 0x05, 0x02, 0x01, 0x02, 0xFE}

	corrupt := func(i int, v byte) []byte {
		out := append([]byte(nil), valid...)
		out[i] = v
		return out
	}

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrFrameSize},
		{"truncated", valid[:7], ErrFrameSize},
		{"trailing bytes", append(append([]byte(nil), valid...), 0x00), ErrFrameSize},
		{"bad start 1", corrupt(0, 0xEE), ErrMissingStartMarker},
		{"bad start 2", corrupt(1, 0xFB), ErrMissingStartMarker},
		{"length too long", corrupt(4, 21), ErrPayloadTooLong},
		{"bad checksum", corrupt(7, 0x00), ErrChecksumMismatch},
		{"bad payload", corrupt(5, 0x11), ErrChecksumMismatch},
		{"bad destination", corrupt(2, 0x11), ErrChecksumMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ParseFrame(tt.data)
			require.ErrorIs(t, err, tt.want)
			assert.Nil(t, f)
		})
	}
}

// Any single flipped bit in a well-formed frame must be rejected.
func TestParseFrame_SingleBitFlip(t *testing.T) {
	valid := mustPack(t, 0x10, 0x05, 0x01, 0x02, 0x03, 0x04)

	for i := range valid {
		for bit := 0; bit < 8; bit++ {
			data := append([]byte(nil), valid...)
			data[i] ^= 1 << bit

			_, err := ParseFrame(data)
			assert.Error(t, err, "byte %d bit %d", i, bit)
		}
	}
}

// XOR parity misses two flips in the same bit position. This documents the
// limitation rather than guarding against it.
func TestParseFrame_DoubleBitFlipSameColumn(t *testing.T) {
	data := mustPack(t, 0x10, 0x05, 0x01, 0x02)
	data[5] ^= 0x04
	data[6] ^= 0x04

	f, err := ParseFrame(data)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x05, 0x06}, f.Payload)
}

func BenchmarkChecksum(b *testing.B) {
	data := make([]byte, MaxFrameSize-1)
	for i := range data {
		data[i] = byte(i)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Checksum(data)
	}
}
