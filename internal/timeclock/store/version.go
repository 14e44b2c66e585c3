package store

import (
	"encoding/json"
	"fmt"

	"timeclock/pkg/platform/sentinel"
)

// persistedVersion reads the version field of a stored document. ok is false
// when the payload is not a JSON object.
func persistedVersion(data []byte) (version int64, ok bool) {
	var head struct {
		Version int64 `json:"version"`
	}
	if json.Unmarshal(data, &head) != nil {
		return 0, false
	}
	return head.Version, true
}

// versionMatches returns sentinel.ErrConflict when data carries a readable
// version other than expected.
func versionMatches(data []byte, expected int64) error {
	version, ok := persistedVersion(data)
	if !ok || version == expected {
		return nil
	}
	return fmt.Errorf("%w: persisted version %d, document version %d", sentinel.ErrConflict, version, expected)
}
