package cli_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"github.com/ubuntu/docsync/internal/cli"
	"github.com/ubuntu/docsync/internal/testutils"
)

type config struct {
	Host    string
	Port    int
	Delay   time.Duration
	DryRun  bool     `mapstructure:"dry-run"`
	Exclude []string `mapstructure:"exclude"`
}

func TestInitViperConfig(t *testing.T) {
	tests := map[string]struct {
		configFile string
		env        map[string]string
		flags      []string

		want    config
		wantErr bool
	}{
		"Defaults only": {
			want: config{Host: "localhost", Port: 5984, Delay: 100 * time.Millisecond},
		},
		"Configuration file overrides defaults": {
			configFile: "host: couch.example.com\ndelay: 2s\ndry-run: true\nexclude: a.json,b.json\n",
			want:       config{Host: "couch.example.com", Port: 5984, Delay: 2 * time.Second, DryRun: true, Exclude: []string{"a.json", "b.json"}},
		},
		"Environment overrides configuration file": {
			configFile: "host: couch.example.com\nport: 1234\n",
			env:        map[string]string{"DOCSYNCTEST_PORT": "6984", "DOCSYNCTEST_DRY_RUN": "true", "DOCSYNCTEST_DELAY": "1m"},
			want:       config{Host: "couch.example.com", Port: 6984, Delay: time.Minute, DryRun: true},
		},
		"Flags override environment": {
			env:   map[string]string{"DOCSYNCTEST_HOST": "from-env"},
			flags: []string{"--host", "from-flag"},
			want:  config{Host: "from-flag", Port: 5984, Delay: 100 * time.Millisecond},
		},

		"Error on invalid configuration file": {configFile: "host: [unterminated", wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			var got config
			cmd := &cobra.Command{Use: "docsynctest", RunE: func(*cobra.Command, []string) error { return nil }}
			cmd.Flags().StringVar(&got.Host, "host", "localhost", "")
			cmd.Flags().IntVar(&got.Port, "port", 5984, "")
			cmd.Flags().DurationVar(&got.Delay, "delay", 100*time.Millisecond, "")
			cmd.Flags().BoolVar(&got.DryRun, "dry-run", false, "")
			cli.InstallConfigFlag(cmd)

			args := append([]string{}, tc.flags...)
			if tc.configFile != "" {
				dir := t.TempDir()
				testutils.WriteFiles(t, dir, map[string]string{"docsynctest.yaml": tc.configFile})
				args = append(args, "--config", filepath.Join(dir, "docsynctest.yaml"))
			}
			cmd.SetArgs(args)
			require.NoError(t, cmd.Execute(), "Setup: flags should be parsed")

			vip := viper.New()
			require.NoError(t, vip.BindPFlags(cmd.Flags()), "Setup: flags should be bound")

			err := cli.InitViperConfig("docsynctest", cmd, vip)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			require.NoError(t, cli.Unmarshal(vip, &got), "Unmarshal should not fail")
			require.Equal(t, tc.want, got)
		})
	}
}

func TestUnmarshalError(t *testing.T) {
	t.Parallel()

	vip := viper.New()
	vip.Set("delay", "not a duration")

	var got config
	require.Error(t, cli.Unmarshal(vip, &got))
}
