// Package env builds the environment variable set for the confined program.
package env

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/gardenerik/parent/internal/model"
)

var envKeyRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ParseSpecs parses "KEY=VALUE" environment variable specs. A spec without a
// value ("KEY") takes its value from the launcher's own environment.
func ParseSpecs(specs []string) (map[string]string, error) {
	env := make(map[string]string, len(specs))

	for _, spec := range specs {
		if spec == "" {
			return nil, fmt.Errorf("environment variable spec cannot be empty")
		}

		if key, value, ok := strings.Cut(spec, "="); ok {
			if !isValidKey(key) {
				return nil, fmt.Errorf("invalid environment variable key %q", key)
			}

			env[key] = value
			continue
		}

		if !isValidKey(spec) {
			return nil, fmt.Errorf("invalid environment variable key %q", spec)
		}

		value, ok := os.LookupEnv(spec)
		if !ok {
			return nil, fmt.Errorf("environment variable %q is not set", spec)
		}

		env[spec] = value
	}

	return env, nil
}

// Build computes the final environment for the child from a base snapshot
// (normally the launcher's own environment) and the configured overrides.
// Overrides win over inherited values. The result is sorted by name.
func Build(base []string, cfg model.EnvironmentConfig) []string {
	merged := map[string]string{}

	if !cfg.Empty {
		for _, kv := range base {
			key, value, ok := strings.Cut(kv, "=")
			if !ok {
				continue
			}
			merged[key] = value
		}
	}

	for key, value := range cfg.Overrides {
		merged[key] = value
	}

	result := make([]string, 0, len(merged))
	for key, value := range merged {
		result = append(result, key+"="+value)
	}
	sort.Strings(result)

	return result
}

// MergeMaps merges two override maps, the second one winning on conflicts.
func MergeMaps(base map[string]string, override map[string]string) map[string]string {
	if len(base) == 0 && len(override) == 0 {
		return map[string]string{}
	}

	merged := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}

	return merged
}

func isValidKey(k string) bool {
	return envKeyRegexp.MatchString(k)
}
