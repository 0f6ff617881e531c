// Package dispatch sends classified documents to a document store and reports the outcome.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ubuntu/docsync/internal/constants"
	"github.com/ubuntu/docsync/internal/couchdb"
	"github.com/ubuntu/docsync/internal/document"
)

// Stage is the step of the pipeline an outcome was produced at.
type Stage string

const (
	// StageRead is reading the input unit.
	StageRead Stage = "read"
	// StageParse is decoding the input unit into a document value.
	StageParse Stage = "parse"
	// StageClassify is deciding between a single document and a bulk batch.
	StageClassify Stage = "classify"
	// StageDispatch is sending the document to the store.
	StageDispatch Stage = "dispatch"
)

// Outcome is the result of processing one input unit.
type Outcome struct {
	Source  string
	Kind    document.Kind
	Stage   Stage
	Success bool
	// StatusCode is nil when the store never answered.
	StatusCode *int
	Message    string
	Duration   time.Duration
}

// Transport is the boundary to the document store.
type Transport interface {
	Put(ctx context.Context, path string, payload []byte) (couchdb.Response, error)
	Post(ctx context.Context, path string, payload []byte) (couchdb.Response, error)
}

// Dispatch sends doc to database through t. It makes a single attempt, and never returns an error:
// any failure is reported in the returned Outcome.
func Dispatch(ctx context.Context, doc document.Classified, t Transport, database string) Outcome {
	start := time.Now()
	o := Outcome{
		Source: doc.SourceName(),
		Kind:   doc.Kind(),
		Stage:  StageDispatch,
	}

	method, path := Describe(doc, database)
	payload, err := Payload(doc)
	if err != nil {
		o.Message = fmt.Sprintf("could not serialize document: %v", err)
		return o
	}

	var resp couchdb.Response
	switch method {
	case http.MethodPut:
		resp, err = t.Put(ctx, path, payload)
	default:
		resp, err = t.Post(ctx, path, payload)
	}
	o.Duration = time.Since(start)
	if err != nil {
		o.Message = err.Error()
		return o
	}

	status := resp.StatusCode
	o.StatusCode = &status
	if !resp.OK() {
		o.Message = storeMessage(resp)
		return o
	}

	o.Success = true
	switch d := document.Value(doc).(type) {
	case document.Single:
		o.Message = singleResult(d, resp.Body)
	case document.Bulk:
		o.Message = bulkResult(d, resp.Body)
	}
	return o
}

// Describe returns the HTTP method and escaped path doc is sent with.
func Describe(doc document.Classified, database string) (method, path string) {
	switch d := document.Value(doc).(type) {
	case document.Single:
		return http.MethodPut, DocumentPath(database, d.ID)
	case document.Bulk:
		return http.MethodPost, BulkPath(database)
	default:
		panic(fmt.Sprintf("unexpected classified document type %T", doc))
	}
}

// Payload returns the JSON body doc is sent with.
func Payload(doc document.Classified) ([]byte, error) {
	var v any
	switch d := document.Value(doc).(type) {
	case document.Single:
		v = d.Body
	case document.Bulk:
		v = map[string]any{constants.BulkDocsField: d.Items}
	default:
		panic(fmt.Sprintf("unexpected classified document type %T", doc))
	}

	// Keep characters such as < and & as is: the store receives the document verbatim.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// DocumentPath returns the escaped path of the document id in database.
// Design and local documents keep the slash after their prefix.
func DocumentPath(database, id string) string {
	for _, prefix := range []string{"_design/", "_local/"} {
		if rest, ok := strings.CutPrefix(id, prefix); ok && rest != "" {
			return "/" + url.PathEscape(database) + "/" + prefix + url.PathEscape(rest)
		}
	}
	return "/" + url.PathEscape(database) + "/" + url.PathEscape(id)
}

// BulkPath returns the escaped path of the bulk endpoint of database.
func BulkPath(database string) string {
	return "/" + url.PathEscape(database) + "/" + constants.BulkDocsEndpoint
}
