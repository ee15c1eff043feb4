package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	yaml "go.yaml.in/yaml/v3"
)

// toStrictJSON funnels YAML files through the same strict JSON decode path
// (DisallowUnknownFields) used for .json configs. The reported format is
// "json" or "yaml" for error messages.
func toStrictJSON(path string, data []byte) ([]byte, string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
	default:
		return data, "json", nil
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, "yaml", errors.Wrap(err, "yaml unmarshal")
	}
	out, err := json.Marshal(stringifyKeys(doc))
	if err != nil {
		return nil, "yaml", errors.Wrap(err, "yaml to json")
	}
	return out, "yaml", nil
}

// stringifyKeys rewrites map keys as strings; yaml.v3 may produce
// map[any]any, which json.Marshal refuses.
func stringifyKeys(in any) any {
	switch node := in.(type) {
	case map[any]any:
		out := make(map[string]any, len(node))
		for k, v := range node {
			out[fmt.Sprint(k)] = stringifyKeys(v)
		}
		return out
	case map[string]any:
		for k, v := range node {
			node[k] = stringifyKeys(v)
		}
		return node
	case []any:
		for i, v := range node {
			node[i] = stringifyKeys(v)
		}
		return node
	}
	return in
}
