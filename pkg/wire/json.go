package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DecodeJSON decodes recordData when it arrives as a JSON object rather
// than XML. It preserves key order the way json.Decoder.Token does,
// and applies the same <new>/<old> split as DecodeXML when the object
// carries "new" and/or "old" sub-objects instead of flat scalar fields.
func DecodeJSON(data []byte) (Payload, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decoding json payload: %w", err)
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return nil, fmt.Errorf("decoding json payload: expected object, got %v", tok)
	}
	return decodeJSONObjectBody(dec, "")
}

// decodeJSONObjectBody reads key/value pairs until the matching '}',
// recursing one level into "new"/"old" sub-objects and prefixing their
// keys. prefix is applied to every scalar field read at this level.
func decodeJSONObjectBody(dec *json.Decoder, prefix string) (Payload, error) {
	var out Payload
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := keyTok.(string)

		valTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		if d, ok := valTok.(json.Delim); ok {
			switch d {
			case '{':
				var sub Payload
				switch {
				case key == "new" && prefix == "":
					sub, err = decodeJSONObjectBody(dec, "")
				case key == "old" && prefix == "":
					sub, err = decodeJSONObjectBody(dec, OldPrefix)
				default:
					sub, err = decodeJSONObjectBody(dec, prefix)
				}
				if err != nil {
					return nil, err
				}
				out = append(out, sub...)
				continue
			case '[':
				if err := skipJSONArray(dec); err != nil {
					return nil, err
				}
				continue
			}
		}
		out = append(out, Field{Key: prefix + key, Value: scalarToString(valTok)})
	}
	// consume the closing '}' / ']'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return out, nil
}

func skipJSONArray(dec *json.Decoder) error {
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '[', '{':
				depth++
			case ']', '}':
				depth--
			}
		}
	}
	return nil
}

func scalarToString(tok json.Token) string {
	switch v := tok.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		if v {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", v)
	}
}
