package dispatch

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ubuntu/docsync/internal/couchdb"
	"github.com/ubuntu/docsync/internal/document"
)

// storeError is the error document of a CouchDB compatible store.
type storeError struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

func (e storeError) String() string {
	if e.Reason == "" {
		return e.Error
	}
	return e.Error + ": " + e.Reason
}

// itemResult is the per document answer of a bulk request.
type itemResult struct {
	ID  string `json:"id"`
	Rev string `json:"rev"`
	storeError
}

// storeMessage renders the body of a rejected request.
func storeMessage(resp couchdb.Response) string {
	var e storeError
	if err := json.Unmarshal(resp.Body, &e); err == nil && e.Error != "" {
		return e.String()
	}
	if msg := strings.TrimSpace(string(resp.Body)); msg != "" {
		return msg
	}
	if msg := http.StatusText(resp.StatusCode); msg != "" {
		return strings.ToLower(msg)
	}
	return fmt.Sprintf("status %d", resp.StatusCode)
}

func singleResult(d document.Single, body []byte) string {
	var r itemResult
	if err := json.Unmarshal(body, &r); err != nil || r.Rev == "" {
		return fmt.Sprintf("created %s", d.ID)
	}
	return fmt.Sprintf("created %s at revision %s", d.ID, r.Rev)
}

// bulkResult summarizes the per document results of a successful bulk request.
// Rejected documents are named, but do not fail the batch.
func bulkResult(d document.Bulk, body []byte) string {
	var results []itemResult
	if err := json.Unmarshal(body, &results); err != nil {
		return fmt.Sprintf("wrote batch of %d documents", len(d.Items))
	}

	var rejected []string
	for _, r := range results {
		if r.Error == "" {
			continue
		}
		id := r.ID
		if id == "" {
			id = "<unnamed>"
		}
		rejected = append(rejected, fmt.Sprintf("%s (%s)", id, r.storeError))
	}

	if len(rejected) == 0 {
		return fmt.Sprintf("wrote %d documents", len(results))
	}
	return fmt.Sprintf("wrote %d of %d documents, %d rejected: %s",
		len(results)-len(rejected), len(results), len(rejected), strings.Join(rejected, ", "))
}
