package wire

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
)

// DecodeXML implements a minimal XML grammar with no wrapper root: the
// document is a sequence of sibling elements at the top level. A plain
// <tag>value</tag> pair flattens directly into a Payload field. A
// <new>...</new> or <old>...</old> sibling instead introduces a
// subtree one level down: its children flatten the same way, with the
// <old> subtree's keys prefixed old_, matching the pre-image
// convention used by UPDATE's WHERE predicate. <new> and <old> are
// themselves plain siblings, not nested inside one another or inside
// any further wrapper.
func DecodeXML(data []byte) (Payload, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var out Payload
	depth := 0
	var curTag string
	var curText bytes.Buffer
	var subtreePrefix string

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decoding xml payload: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			name := t.Name.Local
			switch depth {
			case 1:
				if name == "new" || name == "old" {
					subtreePrefix = ""
					if name == "old" {
						subtreePrefix = OldPrefix
					}
					continue
				}
				curTag = name
				curText.Reset()
			case 2:
				curTag = name
				curText.Reset()
			}
		case xml.CharData:
			curText.Write(t)
		case xml.EndElement:
			name := t.Name.Local
			switch depth {
			case 1:
				if name != "new" && name != "old" {
					out = append(out, Field{Key: name, Value: curText.String()})
					curTag = ""
				}
			case 2:
				if name == curTag {
					out = append(out, Field{Key: subtreePrefix + name, Value: curText.String()})
					curTag = ""
				}
			}
			depth--
		}
	}
	return out, nil
}
