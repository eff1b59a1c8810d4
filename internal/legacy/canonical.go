package legacy

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Encode produces the deterministic compact encoding of a document: struct
// fields in declaration order, map keys sorted, no HTML escaping.
func Encode(d *Document) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(d); err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Pretty produces an indented encoding, used for diffs.
func Pretty(d *Document) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(d); err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return buf.Bytes(), nil
}

// Revision hashes the document content without its updatedAt stamp, so two
// datasets with identical content share a revision. Returns "sha256:<hex>".
func Revision(d *Document) (string, error) {
	stripped := *d
	stripped.UpdatedAt = ""
	data, err := Encode(&stripped)
	if err != nil {
		return "", err
	}
	hash := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(hash[:]), nil
}

// Clone returns a deep copy of d.
func Clone(d *Document) (*Document, error) {
	data, err := Encode(d)
	if err != nil {
		return nil, err
	}
	out, err := Decode(data)
	if err != nil {
		return nil, err
	}
	out.Invalid = make(map[Collection]int, len(d.Invalid))
	for k, v := range d.Invalid {
		out.Invalid[k] = v
	}
	return out, nil
}
