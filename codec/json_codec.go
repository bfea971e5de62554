package codec

import (
	"bytes"
	"encoding/json"
	"errors"
)

// ErrEmptyDocument is returned when a frame decodes to JSON null.
var ErrEmptyDocument = errors.New("codec: empty JSON document")

// JSONCodec produces compact, single-line JSON.
// HTML escaping is off so payloads reach the server byte-for-byte as the caller built them.
type JSONCodec struct{}

func (c *JSONCodec) Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	// Encoder always terminates with '\n'; framing is the protocol layer's job
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func (c *JSONCodec) Decode(data []byte, v any) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return ErrEmptyDocument
	}
	return json.Unmarshal(data, v)
}

func (c *JSONCodec) Type() CodecType {
	return CodecTypeJSON
}
