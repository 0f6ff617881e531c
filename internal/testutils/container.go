package testutils

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"runtime"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// couchDBImage is the last CouchDB release accepting unauthenticated writes.
const couchDBImage = "couchdb:2.3.1"

// CouchDBContainer is a CouchDB server running in a container for testing purposes.
type CouchDBContainer struct {
	Container testcontainers.Container

	Host string
	Port int
}

// StartCouchDBContainer starts a CouchDB container with the given databases created.
// The container is terminated on test cleanup. The test is skipped when no container provider is available.
func StartCouchDBContainer(t *testing.T, databases ...string) *CouchDBContainer {
	t.Helper()

	if runtime.GOOS != "linux" {
		t.Skip("Skipping CouchDB container test on non-Linux OS")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	req := testcontainers.ContainerRequest{
		Image:        couchDBImage,
		ExposedPorts: []string{"5984/tcp"},
		WaitingFor:   wait.ForListeningPort("5984/tcp"),
	}
	ctx := t.Context()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "Setup: failed to start CouchDB container")

	host, err := container.Host(ctx)
	require.NoError(t, err, "Setup: failed to get container host")
	port, err := container.MappedPort(ctx, "5984/tcp")
	require.NoError(t, err, "Setup: failed to get mapped port")
	p, err := strconv.Atoi(port.Port())
	require.NoError(t, err, "Setup: invalid mapped port %q", port.Port())

	c := &CouchDBContainer{
		Container: container,
		Host:      host,
		Port:      p,
	}
	require.NoError(t, c.IsReady(t, 2*time.Second, 30), "Setup: CouchDB did not become ready")

	for _, db := range databases {
		c.CreateDatabase(t, db)
	}
	return c
}

func (c CouchDBContainer) url(path string) string {
	return "http://" + net.JoinHostPort(c.Host, strconv.Itoa(c.Port)) + path
}

// IsReady checks if CouchDB answers on its root endpoint.
// It will attempt to reach it multiple times, each attempt being timeout long at most.
func (c CouchDBContainer) IsReady(t *testing.T, timeout time.Duration, attempts int) (err error) {
	t.Helper()

	for i := range attempts {
		err = c.ping(t.Context(), timeout)
		if err == nil {
			return nil
		}
		t.Logf("Attempt %d: CouchDB is not ready: %v", i+1, err)
		time.Sleep(time.Second)
	}
	return fmt.Errorf("CouchDB did not become ready after %d attempts: %v", attempts, err)
}

func (c CouchDBContainer) ping(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/"), nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}
	return nil
}

// CreateDatabase creates the database db.
func (c CouchDBContainer) CreateDatabase(t *testing.T, db string) {
	t.Helper()

	req, err := http.NewRequestWithContext(t.Context(), http.MethodPut, c.url("/"+url.PathEscape(db)), nil)
	require.NoError(t, err, "Setup: failed to create request")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err, "Setup: failed to create database %q", db)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode, "Setup: unexpected status creating database %q", db)
}

// GetDocument fetches the document id of database db. ok is false if it does not exist.
func (c CouchDBContainer) GetDocument(t *testing.T, db, id string) (doc []byte, ok bool) {
	t.Helper()

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, c.url("/"+url.PathEscape(db)+"/"+url.PathEscape(id)), nil)
	require.NoError(t, err, "failed to create request")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err, "failed to get document %q", id)
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, false
	}
	require.Equal(t, http.StatusOK, resp.StatusCode, "unexpected status getting document %q", id)

	doc, err = io.ReadAll(resp.Body)
	require.NoError(t, err, "failed to read document %q", id)
	return doc, true
}
