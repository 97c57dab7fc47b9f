package bus

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	msg := Message{
		Type:      "query",
		Src:       "webserver",
		Dest:      "webscraper",
		OnlyFirst: true,
		Content: map[string]any{
			"terms":      []any{"chick peas"},
			"request-id": float64(7),
		},
	}

	for _, format := range []Format{FormatJSON, FormatMsgpack} {
		t.Run(format.String(), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, writeFrame(&buf, format, msg))

			got, err := readFrame(&buf)
			require.NoError(t, err)
			assert.Equal(t, msg.Type, got.Type)
			assert.Equal(t, msg.Src, got.Src)
			assert.Equal(t, msg.Dest, got.Dest)
			assert.Equal(t, msg.OnlyFirst, got.OnlyFirst)

			id, ok := numberField(got.Content, "request-id")
			require.True(t, ok)
			assert.Equal(t, float64(7), id)
		})
	}
}

func TestReadFrameRejectsOversized(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{byte(FormatJSON), 0xFF, 0xFF, 0xFF, 0xFF})

	_, err := readFrame(&buf)
	assert.Error(t, err)
}

func TestReadFrameRejectsUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{99, 0, 0, 0, 2})
	buf.WriteString("{}")

	_, err := readFrame(&buf)
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	assert.Equal(t, FormatJSON, ParseFormat("json"))
	assert.Equal(t, FormatMsgpack, ParseFormat("msgpack"))
	assert.Equal(t, FormatMsgpack, ParseFormat(""), "msgpack is the default")
}

func TestNumberField(t *testing.T) {
	content := map[string]any{
		"float":   float64(3),
		"int":     int64(4),
		"uint":    uint16(5),
		"string":  "6",
		"missing": nil,
	}

	n, ok := numberField(content, "float")
	assert.True(t, ok)
	assert.Equal(t, float64(3), n)

	n, ok = numberField(content, "int")
	assert.True(t, ok)
	assert.Equal(t, float64(4), n)

	n, ok = numberField(content, "uint")
	assert.True(t, ok)
	assert.Equal(t, float64(5), n)

	_, ok = numberField(content, "string")
	assert.False(t, ok)

	_, ok = numberField(content, "absent")
	assert.False(t, ok)
}
