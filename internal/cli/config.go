// Package cli provides utility functions for command line interface applications.
package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/ubuntu/docsync/internal/constants"
)

// InitViperConfig initializes the Viper configuration for a command.
//
// The configuration file is either the one given by the config flag, or cmdName.{yaml,toml,json} found in
// the current directory, the user configuration directory, the system configuration directories or next to the executable.
// Environment variables prefixed with cmdName in upper case override it: CMD_DRY_RUN sets the dry-run key.
func InitViperConfig(cmdName string, cmd *cobra.Command, vip *viper.Viper) error {
	if v, err := cmd.Flags().GetString("config"); err == nil && v != "" {
		vip.SetConfigFile(v)
	} else {
		vip.SetConfigName(cmdName)
		vip.AddConfigPath(".")
		if dir := constants.GetDefaultConfigPath(); dir != constants.DefaultAppFolder {
			vip.AddConfigPath(dir)
		}

		if runtime.GOOS == "windows" {
			vip.AddConfigPath("C:\\ProgramData\\" + cmdName)
		} else {
			vip.AddConfigPath("/etc/" + cmdName)
			vip.AddConfigPath("/usr/local/etc/" + cmdName)
		}

		if binPath, err := os.Executable(); err != nil {
			slog.Warn("Failed to get current executable path, not adding it as a config dir", "error", err)
		} else {
			vip.AddConfigPath(filepath.Dir(binPath))
		}
	}
	if err := vip.ReadInConfig(); err != nil {
		var e viper.ConfigFileNotFoundError
		if errors.As(err, &e) {
			slog.Info("No configuration file.\nWe will only use the defaults, env variables or flags.", "error", e)
		} else {
			return fmt.Errorf("invalid configuration file: %w", err)
		}
	} else {
		slog.Info("Using configuration file", "file", vip.ConfigFileUsed())
	}

	// Handle environment.
	vip.SetEnvPrefix(cmdName)
	vip.AutomaticEnv()

	// Keys are flag names, which are hyphenated: bind every related variable explicitly so that
	// they are taken into account when unmarshalling.
	prefix := strings.ToUpper(strings.ReplaceAll(cmdName, "-", "_")) + "_"
	for _, e := range os.Environ() {
		if !strings.HasPrefix(e, prefix) {
			continue
		}

		name, _, _ := strings.Cut(e, "=")
		k := strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(name, prefix), "_", "-"))
		if err := vip.BindEnv(k, name); err != nil {
			return fmt.Errorf("could not bind environment variable: %w", err)
		}
	}

	return nil
}

// InstallConfigFlag adds a config flag to the command.
func InstallConfigFlag(cmd *cobra.Command) *string {
	return cmd.PersistentFlags().String("config", "", "use a specific configuration file")
}

// Unmarshal decodes the merged configuration of vip into target.
// Durations can be given as strings ("1m30s") and lists as comma separated strings.
// Extra decode hooks run before the default ones.
func Unmarshal(vip *viper.Viper, target any, hooks ...mapstructure.DecodeHookFunc) error {
	hooks = append(hooks,
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := vip.Unmarshal(target, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(hooks...))); err != nil {
		return fmt.Errorf("unable to decode configuration into struct: %w", err)
	}
	return nil
}
