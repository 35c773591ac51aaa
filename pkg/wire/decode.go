package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Decode sniffs recordData's shape and dispatches to DecodeXML or
// DecodeJSON. Peers are free to send either encoding; the server tells
// them apart the same way any tag-sniffing decoder does, by looking at
// the first non-whitespace byte. A JSON object travels as a bare object
// in the envelope; an XML document travels as a JSON string holding the
// markup text, so a leading quote is unwrapped one level before
// sniffing again.
func Decode(recordData []byte) (Payload, error) {
	trimmed := bytes.TrimSpace(recordData)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '"' {
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err != nil {
			return nil, fmt.Errorf("wire: decoding quoted recordData: %w", err)
		}
		return Decode([]byte(inner))
	}
	if trimmed[0] == '<' {
		return DecodeXML(trimmed)
	}
	return DecodeJSON(trimmed)
}
