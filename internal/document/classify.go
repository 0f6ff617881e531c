package document

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ubuntu/docsync/internal/constants"
)

// Kind is the kind of a classified document.
type Kind string

const (
	// KindSingle is a single document, created if absent.
	KindSingle Kind = "single"
	// KindBulk is a batch of documents, upserted together.
	KindBulk Kind = "bulk"
)

var (
	// ErrMissingIdentifier is returned when a single document has no usable _id.
	ErrMissingIdentifier = errors.New("document has no identifier")
	// ErrInvalidBulkElement is returned when an element of a bulk batch is not a map.
	ErrInvalidBulkElement = errors.New("bulk element is not a document")
	// ErrUnsupportedShape is returned when a document value is neither a map nor a list.
	ErrUnsupportedShape = errors.New("document must be a map or a list of maps")
)

// InvalidBulkElementError reports the first element of a bulk batch which is not a map.
type InvalidBulkElementError struct {
	Index int
	Type  string
}

func (e *InvalidBulkElementError) Error() string {
	return fmt.Sprintf("%v: element %d is a %s", ErrInvalidBulkElement, e.Index, e.Type)
}

// Is makes errors.Is match ErrInvalidBulkElement.
func (e *InvalidBulkElementError) Is(target error) bool {
	return target == ErrInvalidBulkElement
}

// Classified is a document ready to be dispatched: either a Single or a Bulk, or a pointer to one of them.
type Classified interface {
	Kind() Kind
	SourceName() string

	value() Classified
}

// Value returns doc as a Single or a Bulk value, dereferencing pointers.
func Value(doc Classified) Classified {
	return doc.value()
}

// Single is a document addressed by its own identifier.
type Single struct {
	Source string
	ID     string
	Body   map[string]any
}

// Kind implements Classified.
func (Single) Kind() Kind { return KindSingle }

// SourceName implements Classified.
func (d Single) SourceName() string { return d.Source }

func (d Single) value() Classified { return d }

// Bulk is an ordered batch of documents.
type Bulk struct {
	Source string
	Items  []map[string]any
}

// Kind implements Classified.
func (Bulk) Kind() Kind { return KindBulk }

// SourceName implements Classified.
func (d Bulk) SourceName() string { return d.Source }

// IDs returns the identifiers carried by the batch items, in item order.
// Items without an identifier are skipped as the store names them.
func (d Bulk) IDs() []string {
	var ids []string
	for _, item := range d.Items {
		if id, ok := item[constants.IDField].(string); ok && id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func (d Bulk) value() Classified { return d }

// Classify decides whether v is a single document or a bulk batch.
func Classify(v any, source string) (Classified, error) {
	switch v := v.(type) {
	case map[string]any:
		id, err := identifier(v)
		if err != nil {
			return nil, err
		}
		return Single{Source: source, ID: id, Body: v}, nil

	case []any:
		items := make([]map[string]any, 0, len(v))
		for i, e := range v {
			item, ok := e.(map[string]any)
			if !ok {
				return nil, &InvalidBulkElementError{Index: i, Type: typeName(e)}
			}
			items = append(items, item)
		}
		return Bulk{Source: source, Items: items}, nil

	default:
		return nil, fmt.Errorf("%w, got %s", ErrUnsupportedShape, typeName(v))
	}
}

func identifier(body map[string]any) (string, error) {
	raw, ok := body[constants.IDField]
	if !ok {
		return "", fmt.Errorf("%w: %q is missing", ErrMissingIdentifier, constants.IDField)
	}
	id, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: %q must be a string, got %s", ErrMissingIdentifier, constants.IDField, typeName(raw))
	}
	if id == "" {
		return "", fmt.Errorf("%w: %q is empty", ErrMissingIdentifier, constants.IDField)
	}
	return id, nil
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case json.Number, float64, int, int64:
		return "number"
	case string:
		return "string"
	case []any:
		return "list"
	case map[string]any:
		return "map"
	default:
		return fmt.Sprintf("%T", v)
	}
}
