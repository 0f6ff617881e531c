// Package document turns raw document files into document values and classifies
// them as single documents or bulk batches ready to be sent to a document store.
//
// Document values are plain Go values: nil, bool, json.Number, string, []any and map[string]any.
package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Syntax is the notation a document is written in.
type Syntax int

const (
	// SyntaxJSON is strict JSON.
	SyntaxJSON Syntax = iota
	// SyntaxNativeLiteral is a data-only literal notation, a superset of JSON accepting
	// single quoted strings, trailing commas, True/False/None and # comments.
	SyntaxNativeLiteral
)

var (
	// ErrMalformed is returned when a document does not follow the grammar of its syntax.
	ErrMalformed = errors.New("malformed document")
	// ErrNotAPureLiteral is returned when a native literal document contains anything else than data:
	// names, calls, operators or other expressions.
	ErrNotAPureLiteral = errors.New("not a pure data literal")
	// ErrUnknownSyntax is returned when the syntax is not supported.
	ErrUnknownSyntax = errors.New("unknown document syntax")
)

// String implements fmt.Stringer.
func (s Syntax) String() string {
	switch s {
	case SyntaxJSON:
		return "json"
	case SyntaxNativeLiteral:
		return "literal"
	default:
		return fmt.Sprintf("Syntax(%d)", int(s))
	}
}

// SyntaxForFile returns the syntax of a document file based on its extension.
// ok is false if the file is not a document file.
func SyntaxForFile(path string) (s Syntax, ok bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".py":
		return SyntaxNativeLiteral, true
	case ".json", ".js":
		return SyntaxJSON, true
	default:
		return 0, false
	}
}

// Parse decodes data written in the given syntax into a document value.
// Nothing in data is ever evaluated.
func Parse(data []byte, syntax Syntax) (any, error) {
	text, err := decodeText(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch syntax {
	case SyntaxJSON:
		return parseJSON(text)
	case SyntaxNativeLiteral:
		return parseLiteral(text)
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownSyntax, syntax)
	}
}

// decodeText returns data as UTF-8, dropping a UTF-8 byte order mark or converting UTF-16 if one is present.
func decodeText(data []byte) ([]byte, error) {
	text, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
	if err != nil {
		return nil, fmt.Errorf("could not decode text: %v", err)
	}
	return text, nil
}

func parseJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty document", ErrMalformed)
	} else if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: unexpected data after the top-level value at offset %d", ErrMalformed, dec.InputOffset())
	}

	return v, nil
}
