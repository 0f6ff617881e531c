package document_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ubuntu/docsync/internal/document"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		value any

		want      document.Classified
		wantIndex int
		wantErr   error
	}{
		"Map with identifier is a single document": {
			value: map[string]any{"_id": "123", "title": "hello"},
			want:  document.Single{Source: "src", ID: "123", Body: map[string]any{"_id": "123", "title": "hello"}},
		},
		"Design document identifier is kept as is": {
			value: map[string]any{"_id": "_design/app"},
			want:  document.Single{Source: "src", ID: "_design/app", Body: map[string]any{"_id": "_design/app"}},
		},
		"List of maps is a bulk batch in order": {
			value: []any{map[string]any{"_id": "b"}, map[string]any{"title": "no id"}, map[string]any{"_id": "a"}},
			want: document.Bulk{Source: "src", Items: []map[string]any{
				{"_id": "b"}, {"title": "no id"}, {"_id": "a"},
			}},
		},
		"Empty list is an empty bulk batch": {
			value: []any{},
			want:  document.Bulk{Source: "src", Items: []map[string]any{}},
		},

		"Error on map without identifier":      {value: map[string]any{"title": "goodbye"}, wantErr: document.ErrMissingIdentifier},
		"Error on map with empty identifier":   {value: map[string]any{"_id": ""}, wantErr: document.ErrMissingIdentifier},
		"Error on map with numeric identifier": {value: map[string]any{"_id": json.Number("1")}, wantErr: document.ErrMissingIdentifier},
		"Error on map with null identifier":    {value: map[string]any{"_id": nil}, wantErr: document.ErrMissingIdentifier},
		"Error on list with a non map element": {value: []any{map[string]any{"_id": "1"}, "oops"}, wantIndex: 1, wantErr: document.ErrInvalidBulkElement},
		"Error on list with a nested list":     {value: []any{[]any{}}, wantIndex: 0, wantErr: document.ErrInvalidBulkElement},
		"Error on string document":             {value: "hello", wantErr: document.ErrUnsupportedShape},
		"Error on number document":             {value: json.Number("42"), wantErr: document.ErrUnsupportedShape},
		"Error on boolean document":            {value: true, wantErr: document.ErrUnsupportedShape},
		"Error on null document":               {value: nil, wantErr: document.ErrUnsupportedShape},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := document.Classify(tc.value, "src")
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				require.Nil(t, got, "Classify should not return a document on error")

				if tc.wantErr == document.ErrInvalidBulkElement {
					var bulkErr *document.InvalidBulkElementError
					require.ErrorAs(t, err, &bulkErr)
					require.Equal(t, tc.wantIndex, bulkErr.Index, "Classify should report the first invalid element")
				}
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
			require.Equal(t, "src", got.SourceName())
		})
	}
}

func TestClassifyParsedDocuments(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		data   string
		syntax document.Syntax

		wantKind document.Kind
		wantIDs  []string
		wantErr  error
	}{
		"Single JSON document": {data: `{"_id": "101", "desc": "and a description"}`, syntax: document.SyntaxJSON, wantKind: document.KindSingle, wantIDs: []string{"101"}},
		"Bulk literal batch":   {data: `[{'_id': '1'}, {'_id': '2', 'n': 1,},]`, syntax: document.SyntaxNativeLiteral, wantKind: document.KindBulk, wantIDs: []string{"1", "2"}},

		"Error on literal without identifier": {data: `{'title': "goodbye"}`, syntax: document.SyntaxNativeLiteral, wantErr: document.ErrMissingIdentifier},
		"Error on invalid bulk element":       {data: `[{"_id": "1"}, "oops"]`, syntax: document.SyntaxJSON, wantErr: document.ErrInvalidBulkElement},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			v, err := document.Parse([]byte(tc.data), tc.syntax)
			require.NoError(t, err, "Setup: Parse should not fail")

			got, err := document.Classify(v, name)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.wantKind, got.Kind())

			switch d := got.(type) {
			case document.Single:
				require.Equal(t, tc.wantIDs, []string{d.ID})
			case document.Bulk:
				require.Equal(t, tc.wantIDs, d.IDs())
			default:
				t.Fatalf("unexpected classified type %T", got)
			}
		})
	}
}

func TestBulkIDsSkipsMissingIdentifiers(t *testing.T) {
	t.Parallel()

	b := document.Bulk{Items: []map[string]any{{"_id": "a"}, {}, {"_id": 3}, {"_id": ""}, {"_id": "b"}}}
	require.Equal(t, []string{"a", "b"}, b.IDs())
	require.Nil(t, document.Bulk{}.IDs(), "IDs of an empty batch should be nil")
}

func TestValue(t *testing.T) {
	t.Parallel()

	single := document.Single{Source: "a.json", ID: "a", Body: map[string]any{"_id": "a"}}
	bulk := document.Bulk{Source: "b.json", Items: []map[string]any{{"_id": "b"}}}

	tests := map[string]struct {
		doc document.Classified

		want document.Classified
	}{
		"Single value":       {doc: single, want: single},
		"Pointer to single":  {doc: &single, want: single},
		"Bulk value":         {doc: bulk, want: bulk},
		"Pointer to a batch": {doc: &bulk, want: bulk},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tc.want, document.Value(tc.doc))
			require.Equal(t, tc.want.Kind(), tc.doc.Kind())
		})
	}
}
