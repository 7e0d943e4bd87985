package archive

import (
	"errors"
	"fmt"
)

// Sentinel errors for archive conditions.
var (
	// ErrArchiveNotFound indicates the archive path does not exist on load.
	ErrArchiveNotFound = errors.New("archive: not found")
	// ErrStructure indicates the persisted archive JSON is malformed.
	ErrStructure = errors.New("archive: malformed structure")
	// ErrVideoNotFound indicates an id is not present in any bucket.
	ErrVideoNotFound = errors.New("archive: video not found")
)

// MigrationError reports a failed or impossible schema migration. The
// archive on disk is left at the last successfully completed version, with
// the pre-migration backup available for manual recovery.
type MigrationError struct {
	// From is the version the failing step started at.
	From int
	// To is the target compatibility version.
	To  int
	Err error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("archive: migration v%d -> v%d failed: %v", e.From, e.To, e.Err)
}

func (e *MigrationError) Unwrap() error { return e.Err }
