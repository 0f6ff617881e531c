// Package testutils provides helper functions for testing.
package testutils

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// FlagTestCase describes a flag a cobra command is expected to expose.
type FlagTestCase struct {
	Name           string
	Short          string
	DefValue       string
	PersistentFlag bool
	BaseCmd        *cobra.Command
}

// FlagTestHelper checks that the flag described by tc is installed on its command.
func FlagTestHelper(t *testing.T, tc FlagTestCase) {
	t.Helper()

	var flag *pflag.Flag
	if tc.PersistentFlag {
		flag = tc.BaseCmd.PersistentFlags().Lookup(tc.Name)
	} else {
		flag = tc.BaseCmd.Flags().Lookup(tc.Name)
	}
	require.NotNil(t, flag, "Flag %q should be installed", tc.Name)

	assert.Equal(t, tc.Short, flag.Shorthand, "Unexpected shorthand for flag %q", tc.Name)
	assert.Equal(t, tc.DefValue, flag.DefValue, "Unexpected default value for flag %q", tc.Name)
	assert.NotEmpty(t, flag.Usage, "Flag %q should have a usage", tc.Name)
}
