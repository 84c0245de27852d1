package intunewin

import (
	"encoding/xml"
	"fmt"
)

const (
	xmlSchemaNamespace         = "http://www.w3.org/2001/XMLSchema"
	xmlSchemaInstanceNamespace = "http://www.w3.org/2001/XMLSchema-instance"
	toolVersion                = "1.8.5.0"
)

// descriptor is the Detection.xml document.
type descriptor struct {
	XMLName     xml.Name `xml:"ApplicationInfo"`
	XSD         string   `xml:"xmlns:xsd,attr"`
	XSI         string   `xml:"xmlns:xsi,attr"`
	ToolVersion string   `xml:"ToolVersion,attr"`
	*Metadata
}

// MarshalDescriptor renders metadata as a Detection.xml document.
func MarshalDescriptor(m *Metadata) ([]byte, error) {
	doc := descriptor{
		XSD:         xmlSchemaNamespace,
		XSI:         xmlSchemaInstanceNamespace,
		ToolVersion: toolVersion,
		Metadata:    m,
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal descriptor: %w", err)
	}

	return append([]byte(xml.Header), body...), nil
}

// ParseDescriptor reads a Detection.xml document.
func ParseDescriptor(data []byte) (*Metadata, error) {
	doc := descriptor{Metadata: new(Metadata)}

	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: parse descriptor: %w", ErrMalformed, err)
	}

	if doc.FileName == "" {
		return nil, fmt.Errorf("%w: descriptor has no FileName", ErrMalformed)
	}

	return doc.Metadata, nil
}
