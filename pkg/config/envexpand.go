package config

import (
	"bytes"
	"os"
	"strings"
	"text/template"
)

// ExpandEnv expands environment variables in YAML content using Go templates.
// Uses {{.VAR_NAME}} syntax to avoid collision with $ in values such as
// regex patterns or passwords.
//
// Examples:
//   - {{.SPYGLASS_PORT}} → value of SPYGLASS_PORT
//   - {{.BIND_HOST}}:{{.BIND_PORT}} → both variables expanded
//
// Missing variables expand to empty string. Malformed templates pass the
// original content through so the YAML parser reports the clearer error.
func ExpandEnv(data []byte) []byte {
	tmpl, err := template.New("config").Option("missingkey=zero").Parse(string(data))
	if err != nil {
		return data
	}

	envMap := make(map[string]string)
	for _, env := range os.Environ() {
		if idx := strings.IndexByte(env, '='); idx > 0 {
			envMap[env[:idx]] = env[idx+1:]
		}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, envMap); err != nil {
		return data
	}

	return buf.Bytes()
}
