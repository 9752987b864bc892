// Package props parses Android build.prop style key/value metadata.
package props

import (
	"fmt"
	"strings"
)

// RequiredBuildKeys is the metadata a firmware upload must carry.
var RequiredBuildKeys = []string{
	"ro.system.build.version.incremental",
	"ro.system.build.version.sdk",
	"ro.system.build.date.utc",
	"ro.system.build.date",
	"ro.system.build.fingerprint",
	"ro.product.system.brand",
	"ro.product.system.device",
	"ro.product.system.model",
	"ro.dariaos.version",
}

// Parse reads key=value lines, skipping blanks and #/; comments. The first
// '=' splits key from value; lines without one are ignored.
func Parse(content string) map[string]string {
	result := make(map[string]string)
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(strings.TrimSuffix(line, "\r"))
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, ";") {
			continue
		}
		key, value, found := strings.Cut(trimmed, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		result[key] = strings.TrimSpace(value)
	}
	return result
}

// RequireKeys reports which of keys are absent from the parsed properties.
func RequireKeys(properties map[string]string, keys []string) error {
	var missing []string
	for _, key := range keys {
		if _, ok := properties[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing keys in prop file: %s", strings.Join(missing, ", "))
	}
	return nil
}
