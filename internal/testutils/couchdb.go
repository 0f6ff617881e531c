package testutils

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
)

// StoreRequest is a request received by a FakeStore.
type StoreRequest struct {
	Method    string
	Path      string
	Body      []byte
	RequestID string
}

// FakeStore is an in memory document store speaking the subset of the CouchDB HTTP API docsync uses:
// create-if-absent PUT of single documents, upserting bulk POST, and the welcome document.
type FakeStore struct {
	srv *httptest.Server

	mu       sync.Mutex
	dbs      map[string]map[string]map[string]any
	revs     map[string]int
	requests []StoreRequest
	rejected map[string]bool
	status   int
}

// NewFakeStore starts a FakeStore serving the given databases. It is stopped on test cleanup.
func NewFakeStore(t *testing.T, databases ...string) *FakeStore {
	t.Helper()

	s := &FakeStore{
		dbs:      make(map[string]map[string]map[string]any),
		revs:     make(map[string]int),
		rejected: make(map[string]bool),
	}
	for _, db := range databases {
		s.dbs[db] = make(map[string]map[string]any)
	}

	s.srv = httptest.NewServer(http.HandlerFunc(s.serveHTTP))
	t.Cleanup(s.srv.Close)
	return s
}

// Host returns the host the store listens on.
func (s *FakeStore) Host() string {
	host, _ := s.hostPort()
	return host
}

// Port returns the port the store listens on.
func (s *FakeStore) Port() int {
	_, port := s.hostPort()
	return port
}

func (s *FakeStore) hostPort() (string, int) {
	u, err := url.Parse(s.srv.URL)
	if err != nil {
		panic(fmt.Sprintf("invalid test server URL %q: %v", s.srv.URL, err))
	}
	host, port, err := net.SplitHostPort(u.Host)
	if err != nil {
		panic(fmt.Sprintf("invalid test server address %q: %v", u.Host, err))
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		panic(fmt.Sprintf("invalid test server port %q: %v", port, err))
	}
	return host, p
}

// Close stops the store, making it unreachable.
func (s *FakeStore) Close() {
	s.srv.Close()
}

// Requests returns the requests received so far, in order.
func (s *FakeStore) Requests() []StoreRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]StoreRequest(nil), s.requests...)
}

// Doc returns the stored document id of database db.
func (s *FakeStore) Doc(db, id string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.dbs[db][id]
	return d, ok
}

// Docs returns all documents of database db by identifier.
func (s *FakeStore) Docs(db string) map[string]map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs := make(map[string]map[string]any, len(s.dbs[db]))
	for id, d := range s.dbs[db] {
		docs[id] = d
	}
	return docs
}

// Reject makes the store refuse every document whose identifier is in ids, as a validation function would.
func (s *FakeStore) Reject(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.rejected[id] = true
	}
}

// FailWith makes the store answer every following request with status. 0 restores normal operation.
func (s *FakeStore) FailWith(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

func (s *FakeStore) serveHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, storeError("bad_request", err.Error()))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, StoreRequest{
		Method:    r.Method,
		Path:      r.URL.EscapedPath(),
		Body:      body,
		RequestID: r.Header.Get("X-Request-Id"),
	})

	if s.status != 0 {
		writeJSON(w, s.status, storeError("unavailable", "the store is failing on purpose"))
		return
	}

	segments, err := pathSegments(r.URL.EscapedPath())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, storeError("bad_request", err.Error()))
		return
	}

	switch {
	case r.Method == http.MethodGet && len(segments) == 0:
		writeJSON(w, http.StatusOK, map[string]any{"couchdb": "Welcome", "version": "fake"})
	case r.Method == http.MethodPut && len(segments) == 1:
		s.createDB(w, segments[0])
	case r.Method == http.MethodPost && len(segments) == 2 && segments[1] == "_bulk_docs":
		s.bulkDocs(w, segments[0], body)
	case r.Method == http.MethodPut && len(segments) >= 2:
		s.putDoc(w, segments[0], strings.Join(segments[1:], "/"), body)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, storeError("method_not_allowed", "Only GET, PUT and POST are allowed"))
	}
}

func (s *FakeStore) createDB(w http.ResponseWriter, db string) {
	if _, ok := s.dbs[db]; ok {
		writeJSON(w, http.StatusPreconditionFailed, storeError("file_exists", "The database could not be created, the file already exists."))
		return
	}
	s.dbs[db] = make(map[string]map[string]any)
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true})
}

func (s *FakeStore) putDoc(w http.ResponseWriter, db, id string, body []byte) {
	docs, ok := s.dbs[db]
	if !ok {
		writeJSON(w, http.StatusNotFound, storeError("not_found", "Database does not exist."))
		return
	}

	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		writeJSON(w, http.StatusBadRequest, storeError("bad_request", "Document must be a JSON object"))
		return
	}
	if _, exists := docs[id]; exists {
		writeJSON(w, http.StatusConflict, storeError("conflict", "Document update conflict."))
		return
	}
	if s.rejected[id] {
		writeJSON(w, http.StatusForbidden, storeError("forbidden", "rejected by validation"))
		return
	}

	rev := s.store(db, id, doc)
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "id": id, "rev": rev})
}

func (s *FakeStore) bulkDocs(w http.ResponseWriter, db string, body []byte) {
	if _, ok := s.dbs[db]; !ok {
		writeJSON(w, http.StatusNotFound, storeError("not_found", "Database does not exist."))
		return
	}

	var req struct {
		Docs []map[string]any `json:"docs"`
	}
	if err := json.Unmarshal(body, &req); err != nil || req.Docs == nil {
		writeJSON(w, http.StatusBadRequest, storeError("bad_request", "POST body must include `docs` parameter."))
		return
	}

	results := make([]map[string]any, 0, len(req.Docs))
	for _, doc := range req.Docs {
		id, _ := doc["_id"].(string)
		if id == "" {
			id = uuid.NewString()
		}
		if s.rejected[id] {
			results = append(results, map[string]any{"id": id, "error": "forbidden", "reason": "rejected by validation"})
			continue
		}
		rev := s.store(db, id, doc)
		results = append(results, map[string]any{"ok": true, "id": id, "rev": rev})
	}
	writeJSON(w, http.StatusCreated, results)
}

// store saves doc and returns its new revision. The caller must hold the lock.
func (s *FakeStore) store(db, id string, doc map[string]any) string {
	key := db + "/" + id
	s.revs[key]++
	rev := fmt.Sprintf("%d-%s", s.revs[key], strings.ReplaceAll(uuid.NewString(), "-", ""))

	stored := make(map[string]any, len(doc)+2)
	for k, v := range doc {
		stored[k] = v
	}
	stored["_id"] = id
	stored["_rev"] = rev
	s.dbs[db][id] = stored
	return rev
}

func pathSegments(escaped string) ([]string, error) {
	var segments []string
	for _, seg := range strings.Split(strings.Trim(escaped, "/"), "/") {
		if seg == "" {
			continue
		}
		s, err := url.PathUnescape(seg)
		if err != nil {
			return nil, err
		}
		segments = append(segments, s)
	}
	return segments, nil
}

func storeError(e, reason string) map[string]any {
	return map[string]any{"error": e, "reason": reason}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
