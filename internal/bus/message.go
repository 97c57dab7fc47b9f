// Package bus implements the client side of the message bus the service
// receives queries on. Messages are typed envelopes carried in
// length-prefixed frames, encoded as JSON or MessagePack; each frame names
// its own encoding so peers can switch formats after the handshake.
package bus

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Format selects the frame payload encoding.
type Format byte

const (
	FormatJSON Format = iota
	FormatMsgpack
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatMsgpack:
		return "msgpack"
	}
	return fmt.Sprintf("format(%d)", byte(f))
}

// ParseFormat maps a config string onto a Format, defaulting to msgpack.
func ParseFormat(s string) Format {
	if s == "json" {
		return FormatJSON
	}
	return FormatMsgpack
}

// Message is the bus envelope. Content carries the type-specific payload as
// a free-form object.
type Message struct {
	Type      string         `json:"type" msgpack:"type"`
	Src       string         `json:"src,omitempty" msgpack:"src,omitempty"`
	Dest      string         `json:"dest,omitempty" msgpack:"dest,omitempty"`
	OnlyFirst bool           `json:"only_first,omitempty" msgpack:"only_first,omitempty"`
	Content   map[string]any `json:"content,omitempty" msgpack:"content,omitempty"`
}

// Frame layout: one format byte, a big-endian uint32 payload length, then the
// payload.
const maxFrameSize = 16 << 20

func writeFrame(w io.Writer, format Format, msg Message) error {
	var payload []byte
	var err error
	switch format {
	case FormatMsgpack:
		payload, err = msgpack.Marshal(msg)
	default:
		payload, err = json.Marshal(msg)
	}
	if err != nil {
		return fmt.Errorf("encoding %s frame: %w", format, err)
	}

	header := make([]byte, 5)
	header[0] = byte(format)
	binary.BigEndian.PutUint32(header[1:], uint32(len(payload)))

	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}

func readFrame(r io.Reader) (Message, error) {
	header := make([]byte, 5)
	if _, err := io.ReadFull(r, header); err != nil {
		return Message{}, err
	}

	format := Format(header[0])
	length := binary.BigEndian.Uint32(header[1:])
	if length > maxFrameSize {
		return Message{}, fmt.Errorf("frame of %d bytes exceeds limit", length)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Message{}, err
	}

	var msg Message
	switch format {
	case FormatMsgpack:
		if err := msgpack.Unmarshal(payload, &msg); err != nil {
			return Message{}, fmt.Errorf("decoding msgpack frame: %w", err)
		}
	case FormatJSON:
		if err := json.Unmarshal(payload, &msg); err != nil {
			return Message{}, fmt.Errorf("decoding json frame: %w", err)
		}
	default:
		return Message{}, fmt.Errorf("unknown frame format %d", header[0])
	}
	return msg, nil
}

// numberField reads a numeric content field across the integer and float
// types the two frame encodings produce.
func numberField(content map[string]any, key string) (float64, bool) {
	v, ok := content[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func stringField(content map[string]any, key string) (string, bool) {
	s, ok := content[key].(string)
	return s, ok
}

func boolField(content map[string]any, key string) bool {
	b, _ := content[key].(bool)
	return b
}
