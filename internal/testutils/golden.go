package testutils

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// UpdateGoldenEnv is the environment variable which, when set, regenerates golden files from the test results.
const UpdateGoldenEnv = "TESTS_UPDATE_GOLDEN"

// GoldenPath returns the golden file path of the current test, under testdata/golden.
func GoldenPath(t *testing.T) string {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), ":", "_")
	return filepath.Join("testdata", "golden", filepath.FromSlash(name))
}

// LoadWithUpdateFromGolden returns the content of the golden file of the current test.
// If TESTS_UPDATE_GOLDEN is set, the golden file is first replaced by data.
func LoadWithUpdateFromGolden(t *testing.T, data string) string {
	t.Helper()

	path := GoldenPath(t)

	if os.Getenv(UpdateGoldenEnv) != "" {
		t.Logf("Updating golden file %s", path)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0750), "Cannot create golden directory")
		require.NoError(t, os.WriteFile(path, []byte(data), 0600), "Cannot write golden file")
	}

	want, err := os.ReadFile(path)
	require.NoError(t, err, "Cannot load golden file %s", path)

	// Normalize content between Windows and Linux.
	return string(bytes.ReplaceAll(want, []byte("\r\n"), []byte("\n")))
}

// LoadWithUpdateFromGoldenYAML serializes got to YAML, updates the golden file with it when requested,
// and returns the golden content deserialized into the same type.
func LoadWithUpdateFromGoldenYAML[E any](t *testing.T, got E) E {
	t.Helper()

	data, err := yaml.Marshal(got)
	require.NoError(t, err, "Cannot serialize value to YAML")

	want := LoadWithUpdateFromGolden(t, string(data))

	var wantDeserialized E
	err = yaml.Unmarshal([]byte(want), &wantDeserialized)
	require.NoError(t, err, "Cannot deserialize golden file")
	return wantDeserialized
}
