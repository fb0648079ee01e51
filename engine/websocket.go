// WebSocket upgrade and framing (RFC 6455), hand-rolled against the raw
// connection since the server side of the handshake and frame codec is a
// few hundred lines and pulling in a server-side dependency for it would
// cost more than it saves. The test suite drives this code with
// github.com/gorilla/websocket as a client end to end
// (websocket_integration_test.go) alongside frame-level unit tests
// (websocket_test.go).
package engine

import (
	"bufio"
	"crypto/sha1"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"io"
	"math/rand"
	"strings"

	"github.com/google/uuid"
)

const websocketMagicGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// computeAcceptKey implements the formula:
// Sec-WebSocket-Accept = base64(SHA1(clientKey || magicGUID)).
func computeAcceptKey(clientKey string) string {
	h := sha1.New()
	io.WriteString(h, clientKey)
	io.WriteString(h, websocketMagicGUID)
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// UpgradeWebSocket writes the 101 Switching Protocols response described
// in the and marks rc as a WebSocket Request Context. It must be
// called from the HTTP pipeline while req.IsUpgrade is true.
func (rc *RequestContext) UpgradeWebSocket(req *HTTPRequest) (clientID string, err error) {
	if !req.IsUpgrade {
		return "", NewError(KindProtocolParse, "websocket.Upgrade", errors.New("request did not request an upgrade"))
	}
	accept := computeAcceptKey(req.WebSocketKey)
	clientID = uuid.NewString()

	var b strings.Builder
	b.WriteString("HTTP/1.1 101 Switching Protocols\r\n")
	b.WriteString("Upgrade: websocket\r\n")
	b.WriteString("Connection: Upgrade\r\n")
	b.WriteString("Sec-WebSocket-Accept: " + accept + "\r\n")
	b.WriteString("X-Pode-ClientId: " + clientID + "\r\n")
	b.WriteString("\r\n")
	if _, err := io.WriteString(rc.Socket, b.String()); err != nil {
		return "", NewError(KindProtocolParse, "websocket.Upgrade", err)
	}

	rc.Type = TypeWebSocket
	rc.Set("websocket.clientId", clientID)
	if rc.Endpoint != nil && rc.Endpoint.listener != nil {
		rc.Endpoint.listener.registerOpenSocket(clientID, rc)
	}
	return clientID, nil
}

// WebSocket frame opcodes (RFC 6455 §5.2).
const (
	wsOpContinuation = 0x0
	wsOpText         = 0x1
	wsOpBinary       = 0x2
	wsOpClose        = 0x8
	wsOpPing         = 0x9
	wsOpPong         = 0xA
)

// WSFrame is one decoded WebSocket frame.
type WSFrame struct {
	Fin     bool
	Opcode  byte
	Payload []byte
}

// ReadWSFrame reads and unmasks one client->server frame. Per RFC 6455,
// frames from a client to a server are always masked.
func ReadWSFrame(r *bufio.Reader) (*WSFrame, error) {
	head := make([]byte, 2)
	if _, err := io.ReadFull(r, head); err != nil {
		return nil, err
	}
	fin := head[0]&0x80 != 0
	opcode := head[0] & 0x0F
	masked := head[1]&0x80 != 0
	length := uint64(head[1] & 0x7F)

	switch length {
	case 126:
		ext := make([]byte, 2)
		if _, err := io.ReadFull(r, ext); err != nil {
			return nil, err
		}
		length = uint64(binary.BigEndian.Uint16(ext))
	case 127:
		ext := make([]byte, 8)
		if _, err := io.ReadFull(r, ext); err != nil {
			return nil, err
		}
		length = binary.BigEndian.Uint64(ext)
	}

	var maskKey [4]byte
	if masked {
		if _, err := io.ReadFull(r, maskKey[:]); err != nil {
			return nil, err
		}
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	if masked {
		for i := range payload {
			payload[i] ^= maskKey[i%4]
		}
	}
	return &WSFrame{Fin: fin, Opcode: opcode, Payload: payload}, nil
}

// WriteWSFrame writes one server->client frame. Per RFC 6455, frames from
// a server to a client are never masked.
func WriteWSFrame(w io.Writer, opcode byte, payload []byte) error {
	var head []byte
	length := len(payload)
	switch {
	case length < 126:
		head = []byte{0x80 | opcode, byte(length)}
	case length <= 0xFFFF:
		head = make([]byte, 4)
		head[0] = 0x80 | opcode
		head[1] = 126
		binary.BigEndian.PutUint16(head[2:], uint16(length))
	default:
		head = make([]byte, 10)
		head[0] = 0x80 | opcode
		head[1] = 127
		binary.BigEndian.PutUint64(head[2:], uint64(length))
	}
	if _, err := w.Write(head); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return err
		}
	}
	return nil
}

// WriteWSText is a convenience wrapper for sending a text frame.
func WriteWSText(w io.Writer, text string) error { return WriteWSFrame(w, wsOpText, []byte(text)) }

// maskingKeyForTests exists so internal tests can construct client frames
// without pulling in a random source at package scope.
func maskingKeyForTests() [4]byte {
	var k [4]byte
	for i := range k {
		k[i] = byte(rand.Intn(256))
	}
	return k
}
