// Package config loads keron's own process configuration: CLI defaults and
// package-manager binary overrides. It is deliberately small — manifests
// carry their own configuration through the DSL (env/secret), not through
// this package.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Init wires viper defaults, binds the root command's persistent flags, and
// optionally merges an operator-authored keron.yaml found at root (if any).
// Absence of keron.yaml changes nothing — every key already has a default.
func Init(root *cobra.Command, sourceRoot string) error {
	viper.AutomaticEnv()
	_ = godotenv.Load(".env")
	setDefaults()

	if root != nil {
		_ = viper.BindPFlags(root.PersistentFlags())
	}

	if sourceRoot != "" {
		if err := mergeYAMLFile(filepath.Join(sourceRoot, "keron.yaml")); err != nil {
			return err
		}
	}
	return nil
}

// mergeYAMLFile decodes an operator-authored keron.yaml by hand with
// yaml.v3 (rather than letting viper's own file reader pick an unmarshaler)
// into a generic map and merges it into viper. Keys are not checked against
// the supported set. A missing file is not an error.
func mergeYAMLFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}
	return viper.MergeConfigMap(doc)
}

func setDefaults() {
	viper.SetDefault(KeyCloneTimeout, "2m")
	viper.SetDefault(KeyDefaultFormat, "text")
	viper.SetDefault(KeyDefaultColor, "auto")
	viper.SetDefault(KeyPassCLIPath, "pass-cli")
}

// CloneTimeout is the timeout applied to the shallow git clone in the
// source resolver.
func CloneTimeout() time.Duration {
	d, err := time.ParseDuration(viper.GetString(KeyCloneTimeout))
	if err != nil {
		return 2 * time.Minute
	}
	return d
}

// DefaultFormat returns the operator-configured default --format value.
func DefaultFormat() string { return viper.GetString(KeyDefaultFormat) }

// DefaultColor returns the operator-configured default --color value.
func DefaultColor() string { return viper.GetString(KeyDefaultColor) }

// PassCLIPath returns the path to the pass-cli binary used by the pp secret
// provider.
func PassCLIPath() string { return viper.GetString(KeyPassCLIPath) }

// PackageManagerPath returns an override path for a named package manager
// binary, or "" if none is configured (callers fall back to PATH lookup).
func PackageManagerPath(manager string) string {
	return viper.GetString(KeyPackageManagerPath + "." + manager)
}
