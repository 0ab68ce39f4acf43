package store

import (
	"bytes"
	"encoding/json"
)

// Encode renders doc as indented JSON (two spaces) without HTML escaping, which is the
// on-disk format of every document.
func Encode(doc Document) ([]byte, error) {
	if doc == nil {
		doc = Document{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, Errorf(RetCEncode, "encode document: %v", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Decode parses raw as a JSON object. Empty input decodes to an empty document.
// Anything that is not a JSON object is a RetCDecode error.
func Decode(raw []byte) (Document, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return Document{}, nil
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, Errorf(RetCDecode, "decode document: %v", err)
	}
	if doc == nil {
		// the literal null
		return nil, NewError(RetCDecode, "decode document: not a JSON object")
	}
	return doc, nil
}
