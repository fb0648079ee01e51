package engine

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestComputeAcceptKey_RFC6455Vector uses the example key/accept pair from
// RFC 6455 section 1.3.
func TestComputeAcceptKey_RFC6455Vector(t *testing.T) {
	got := computeAcceptKey("dGhlIHNhbXBsZSBub25jZQ==")
	assert.Equal(t, "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=", got)
}

// writeMaskedClientFrame encodes a short (<126 byte) masked client->server
// frame, mirroring what a real WebSocket client puts on the wire.
func writeMaskedClientFrame(buf *bytes.Buffer, opcode byte, payload []byte) {
	mask := maskingKeyForTests()
	length := len(payload)
	buf.Write([]byte{0x80 | opcode, 0x80 | byte(length)})
	buf.Write(mask[:])
	masked := make([]byte, length)
	for i, b := range payload {
		masked[i] = b ^ mask[i%4]
	}
	buf.Write(masked)
}

func TestWSFrame_ReadMaskedClientFrame(t *testing.T) {
	var buf bytes.Buffer
	writeMaskedClientFrame(&buf, wsOpText, []byte("hello"))

	frame, err := ReadWSFrame(bufio.NewReader(&buf))
	require.NoError(t, err)
	assert.True(t, frame.Fin)
	assert.Equal(t, byte(wsOpText), frame.Opcode)
	assert.Equal(t, "hello", string(frame.Payload))
}

func TestWSFrame_WriteServerFrameIsUnmasked(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteWSFrame(&buf, wsOpText, []byte("hi")))

	encoded := buf.Bytes()
	require.GreaterOrEqual(t, len(encoded), 2)
	assert.Equal(t, byte(0x80|wsOpText), encoded[0])
	assert.Equal(t, byte(0x00|2), encoded[1], "server frames must not set the mask bit")
	assert.Equal(t, "hi", string(encoded[2:]))
}

func TestWSFrame_ExtendedLength16(t *testing.T) {
	payload := bytes.Repeat([]byte{'a'}, 200)
	var buf bytes.Buffer
	require.NoError(t, WriteWSFrame(&buf, wsOpBinary, payload))

	encoded := buf.Bytes()
	assert.Equal(t, byte(126), encoded[1])

	// round-trip through a masked client-style reencode to confirm the
	// extended-length branch decodes correctly too.
	var clientBuf bytes.Buffer
	writeMaskedClientFrame16(&clientBuf, wsOpBinary, payload)
	frame, err := ReadWSFrame(bufio.NewReader(&clientBuf))
	require.NoError(t, err)
	assert.Equal(t, payload, frame.Payload)
}

func writeMaskedClientFrame16(buf *bytes.Buffer, opcode byte, payload []byte) {
	mask := maskingKeyForTests()
	length := len(payload)
	buf.WriteByte(0x80 | opcode)
	buf.WriteByte(0x80 | 126)
	buf.WriteByte(byte(length >> 8))
	buf.WriteByte(byte(length))
	buf.Write(mask[:])
	masked := make([]byte, length)
	for i, b := range payload {
		masked[i] = b ^ mask[i%4]
	}
	buf.Write(masked)
}
