package correlation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"unicode/utf8"
)

// Payload keys recognised in commands and responses.
const (
	keyID   = "id"
	keyTo   = "_to"
	keyFrom = "_from"
)

// ErrMalformedPayload is returned when a payload is not a single valid
// UTF-8 JSON document.
var ErrMalformedPayload = errors.New("correlation: malformed payload")

// Fields are the correlation keys found in a payload. A nil pointer means the
// key was absent or did not hold an unsigned integer.
type Fields struct {
	ID   *uint64
	To   *uint64
	From *uint64
}

// ParseFields decodes payload and extracts the id, _to and _from keys.
//
// Any valid JSON document is accepted; non-object documents simply carry no
// fields. A key counts only when its value is a non-negative integer literal
// that fits in 64 bits. Floats, negative numbers, strings and other types are
// treated as absent.
func ParseFields(payload []byte) (Fields, error) {
	doc, err := decode(payload)
	if err != nil {
		return Fields{}, err
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return Fields{}, nil
	}

	return Fields{
		ID:   unsigned(obj[keyID]),
		To:   unsigned(obj[keyTo]),
		From: unsigned(obj[keyFrom]),
	}, nil
}

// ParseID decodes payload and returns its id key, if present.
func ParseID(payload []byte) (id uint64, ok bool, err error) {
	f, err := ParseFields(payload)
	if err != nil {
		return 0, false, err
	}
	if f.ID == nil {
		return 0, false, nil
	}
	return *f.ID, true, nil
}

// decode parses exactly one JSON value, keeping numbers as json.Number.
// encoding/json replaces invalid UTF-8 inside strings, so it is rejected up
// front.
func decode(payload []byte) (any, error) {
	if !utf8.Valid(payload) {
		return nil, fmt.Errorf("%w: invalid UTF-8", ErrMalformedPayload)
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	// Trailing data after the document is malformed too.
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after document", ErrMalformedPayload)
	}

	return doc, nil
}

func unsigned(v any) *uint64 {
	n, ok := v.(json.Number)
	if !ok {
		return nil
	}
	u, err := strconv.ParseUint(n.String(), 10, 64)
	if err != nil {
		return nil
	}
	return &u
}
