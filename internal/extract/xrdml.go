package extract

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// extractXRDML collects element text from a PANalytical XRDML document,
// keyed by element name, subject to the scalar bounds.
func extractXRDML(path string) (Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open xrdml: %w", err)
	}
	defer f.Close()

	dec := xml.NewDecoder(f)
	meta := Mapping{}

	var current string
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse xrdml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			current = t.Name.Local
		case xml.CharData:
			if current == "" {
				continue
			}
			text := strings.TrimSpace(string(t))
			if text == "" {
				continue
			}
			if v, ok := normalizeScalar(text); ok {
				meta[current] = v
			}
		case xml.EndElement:
			current = ""
		}
	}

	if len(meta) == 0 {
		return nil, fmt.Errorf("no metadata elements in %s", path)
	}
	return meta, nil
}
