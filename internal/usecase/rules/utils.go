package rules

import (
	"encoding/json"
	"strings"

	"fleetops/internal/domain/rules"
	"fleetops/internal/errs"
)

const cacheKeyPrefix = "rules:active:"

func cacheKeyFor(checksum string) string {
	return cacheKeyPrefix + checksum
}

func checksumFromKey(cacheKey string) string {
	return strings.TrimPrefix(cacheKey, cacheKeyPrefix)
}

func marshalDiff(diff map[string]rules.FieldChange) (string, error) {
	data, err := json.Marshal(diff)
	if err != nil {
		return "", errs.Wrap(err, "encode rules diff")
	}
	return string(data), nil
}

func trimPtr(raw string) *string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
