package rules

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Checksum is the content hash of a document's stored form. It travels with
// every RulesVersion row and feeds the cache invalidation key.
func Checksum(cfg Config) (string, error) {
	data, err := cfg.MarshalStored()
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// FieldChange records one leaf-level difference between two documents.
type FieldChange struct {
	From any `json:"from"`
	To   any `json:"to"`
}

// Diff flattens both documents to dotted leaf paths and reports every path
// whose value changed. The result is stored on the successor version.
func Diff(old Config, next Config) (map[string]FieldChange, error) {
	oldLeaves, err := flattenConfig(old)
	if err != nil {
		return nil, err
	}
	nextLeaves, err := flattenConfig(next)
	if err != nil {
		return nil, err
	}

	changes := make(map[string]FieldChange)
	for _, path := range sortedKeys(oldLeaves, nextLeaves) {
		from, inOld := oldLeaves[path]
		to, inNext := nextLeaves[path]
		if inOld && inNext && fmt.Sprint(from) == fmt.Sprint(to) {
			continue
		}
		changes[path] = FieldChange{From: from, To: to}
	}
	return changes, nil
}

func flattenConfig(cfg Config) (map[string]any, error) {
	data, err := cfg.MarshalStored()
	if err != nil {
		return nil, err
	}

	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, err
	}

	leaves := make(map[string]any)
	flattenInto("", tree, leaves)
	return leaves, nil
}

func flattenInto(prefix string, node map[string]any, out map[string]any) {
	for key, value := range node {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}

		if child, ok := value.(map[string]any); ok {
			flattenInto(path, child, out)
			continue
		}
		out[path] = value
	}
}

func sortedKeys(maps ...map[string]any) []string {
	seen := make(map[string]struct{})
	keys := make([]string, 0)
	for _, m := range maps {
		for key := range m {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}
