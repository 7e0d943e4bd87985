package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// migrateStep applies one version's structural edit to the raw persisted
// representation. Steps mutate raw in place and may touch the directory
// layout under path.
type migrateStep func(raw map[string]any, path string, log zerolog.Logger) error

// migrations maps a version to the step that lifts an archive to the next
// one. Migration is strictly sequential: v -> v+1 until ArchiveCompat.
var migrations = map[int]migrateStep{
	1: migrateV1toV2,
	2: migrateV2toV3,
	3: migrateV3toV4,
}

// migrate walks the raw archive forward from version from to version to,
// one step at a time. Precondition: the caller has already written a
// timestamped backup of the pre-migration store. On a failed step the raw
// form keeps the last successfully completed version number and the error
// is fatal; nothing is persisted.
func migrate(raw map[string]any, from, to int, path string, log zerolog.Logger) (map[string]any, error) {
	// A version past the terminal one was written by a newer engine; there
	// is no step that can walk it back.
	if from > to {
		return nil, &MigrationError{From: from, To: to,
			Err: fmt.Errorf("unknown archive version v%d", from)}
	}

	log.Warn().
		Int("from", from).
		Int("to", to).
		Msgf("automatically migrating archive, a backup has been made at %s/%s",
			filepath.Base(path), backupFile)

	for cur := from; cur < to; cur++ {
		step, ok := migrations[cur]
		if !ok {
			return nil, &MigrationError{From: cur, To: to,
				Err: fmt.Errorf("unknown archive version v%d", cur)}
		}
		if err := step(raw, path, log); err != nil {
			return nil, &MigrationError{From: cur, To: to, Err: err}
		}
		raw["version"] = cur + 1
	}
	return raw, nil
}

// migrateV1toV2 generalizes the stored channel id into a full url and
// introduces the livestream and short buckets.
func migrateV1toV2(raw map[string]any, _ string, log zerolog.Logger) error {
	id, ok := raw["id"].(string)
	if !ok {
		return fmt.Errorf("%w: v1 archive missing id", ErrStructure)
	}
	url := "https://www.youtube.com/channel/" + id
	raw["url"] = url
	delete(raw, "id")
	log.Warn().Msgf("please make sure %s is the correct url", url)

	raw["livestreams"] = []any{}
	raw["shorts"] = []any{}
	return nil
}

// migrateV2toV3 seeds the deleted flag on every video across all buckets.
func migrateV2toV3(raw map[string]any, _ string, _ zerolog.Logger) error {
	return eachRawVideo(raw, func(video map[string]any) {
		video["deleted"] = rawElement(false)
	})
}

// migrateV3toV4 introduces comments: an empty archive-wide author registry,
// a blank comment section per video, and the thumbnails/ directory renamed
// to images/. Media in formats this version no longer supports is left for
// external tooling to convert.
func migrateV3toV4(raw map[string]any, path string, log zerolog.Logger) error {
	raw["comment_authors"] = map[string]any{}
	if err := eachRawVideo(raw, func(video map[string]any) {
		video["comments"] = map[string]any{}
	}); err != nil {
		return err
	}

	thumbnails := filepath.Join(path, "thumbnails")
	if _, err := os.Stat(thumbnails); err == nil {
		if err := os.Rename(thumbnails, filepath.Join(path, imagesDir)); err != nil {
			return fmt.Errorf("couldn't rename thumbnails directory to %s, please rename manually to continue: %w",
				imagesDir, err)
		}
	}

	log.Info().Msg("videos in previously-unsupported formats should be converted with external tooling")
	return nil
}

// eachRawVideo applies fn to every video in every bucket of the raw form.
func eachRawVideo(raw map[string]any, fn func(video map[string]any)) error {
	for _, key := range []string{"videos", "livestreams", "shorts"} {
		list, ok := raw[key].([]any)
		if !ok {
			return fmt.Errorf("%w: %s bucket is not a list", ErrStructure, key)
		}
		for _, item := range list {
			video, ok := item.(map[string]any)
			if !ok {
				return fmt.Errorf("%w: %s bucket entry is not an object", ErrStructure, key)
			}
			fn(video)
		}
	}
	return nil
}

// rawElement builds the raw form of a single-entry element history.
func rawElement(value any) []any {
	return []any{map[string]any{
		"time":  time.Now().UTC().Format(time.RFC3339),
		"value": value,
	}}
}
