// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-[^}]*)?\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars walks a decoded YAML/JSON document and substitutes
// ${VAR}, ${VAR:-default}, and $VAR occurrences in every string value.
func expandEnvVars(data any) any {
	switch v := data.(type) {
	case string:
		return expandEnvString(v)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = expandEnvVars(val)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = expandEnvVars(val)
		}
		return out
	default:
		return v
	}
}

func expandEnvString(s string) string {
	if !strings.Contains(s, "$") {
		return s
	}
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		name, def, bare := groups[1], groups[2], groups[3]
		if bare != "" {
			return os.Getenv(bare)
		}
		if val := os.Getenv(name); val != "" {
			return val
		}
		if def != "" {
			return strings.TrimPrefix(def, ":-")
		}
		return ""
	})
}

// LoadEnvFiles loads .env.local then .env into the process environment,
// without overriding variables already set (godotenv's default). Missing
// files are not an error.
func LoadEnvFiles() error {
	for _, name := range []string{".env.local", ".env"} {
		if err := godotenv.Load(name); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// envOverrides collects MEMORY_-prefixed environment variables as a
// dotted-path -> value map, e.g. MEMORY_CORE__PORT=9000 becomes
// "core.port" -> "9000" (a double underscore separates path segments; a
// single underscore is kept). applyEnvOverrides merges these onto the decoded
// document before mapstructure runs, giving env vars higher precedence
// than the config file per spec.md §6.
func envOverrides(prefix string) map[string]string {
	out := map[string]string{}
	for _, kv := range os.Environ() {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 || !strings.HasPrefix(parts[0], prefix) {
			continue
		}
		path := strings.ToLower(strings.TrimPrefix(parts[0], prefix))
		path = strings.ReplaceAll(path, "__", ".")
		out[path] = parts[1]
	}
	return out
}

func applyEnvOverrides(doc map[string]any, overrides map[string]string) {
	for path, val := range overrides {
		setDotted(doc, strings.Split(path, "."), val)
	}
}

func setDotted(doc map[string]any, path []string, val string) {
	if len(path) == 0 {
		return
	}
	key := path[0]
	if len(path) == 1 {
		doc[key] = val
		return
	}
	next, ok := doc[key].(map[string]any)
	if !ok {
		next = map[string]any{}
		doc[key] = next
	}
	setDotted(next, path[1:], val)
}
