package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and backends return these
// (optionally wrapped) and services translate them into coded domain errors.
//
//   - ErrNotFound: nothing persisted under the key, or no matching record
//   - ErrConflict: the persisted document moved on since it was read
//   - ErrCorrupt: persisted bytes could not be decoded
//   - ErrInvalidState: entity in wrong state for the requested operation
//   - ErrUnavailable: backend temporarily unavailable
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrCorrupt      = errors.New("corrupt")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
