// Package archive implements the synchronization engine: merging fetched
// metadata into per-item histories, detecting deletions, curating downloads,
// and persisting the versioned on-disk store.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"yark/internal/atomic"
	"yark/internal/config"
	"yark/internal/retry"
	"yark/internal/youtube"
)

// ArchiveCompat is the archive schema version this engine parses without
// migration.
//
//   - Version 1 was the initial format with the basic tracked attributes
//   - Version 2 introduced livestreams and shorts, and generalized the
//     channel id into a url
//   - Version 3 introduced the deleted flag for full reporting capability
//   - Version 4 introduced comments and moved thumbnails/ to images/
//
// Every on-disk field is mandatory once its introducing version is reached;
// there are no optionally-present values. Any new field is therefore a new
// breaking version, and the migrator is the single place defaults for it
// are seeded.
const ArchiveCompat = 4

const (
	storeFile  = "yark.json"
	backupFile = "yark.bak"
	videosDir  = "videos"
	imagesDir  = "images"
)

const (
	metadataAttempts = 3
	retryDelay       = 5 * time.Second
)

// Archive is the top-level store: three ordered buckets of videos sorted
// newest-first, the shared comment author registry, and the source URL.
// An id is unique within its bucket and never appears in two buckets.
//
// The archive is not safe for concurrent mutation; refresh runs are
// single-threaded and run to completion.
type Archive struct {
	// Path is the root directory of the archive on disk.
	Path string
	// Version is the schema version, always ArchiveCompat after Load.
	Version int
	// URL is the remote source this archive tracks.
	URL string

	Videos         []*Video
	Livestreams    []*Video
	Shorts         []*Video
	CommentAuthors map[string]*CommentAuthor

	// Reporter accumulates the notices of the current refresh run.
	Reporter *Reporter

	log zerolog.Logger
}

// archiveFile is the canonical serialized form of an archive.
type archiveFile struct {
	Version        int                       `json:"version"`
	URL            string                    `json:"url"`
	Videos         []*Video                  `json:"videos"`
	Livestreams    []*Video                  `json:"livestreams"`
	Shorts         []*Video                  `json:"shorts"`
	CommentAuthors map[string]*CommentAuthor `json:"comment_authors"`
}

// New creates a new archive at path targeting url and commits it.
func New(path, url string, log zerolog.Logger) (*Archive, error) {
	log.Info().Str("path", path).Msg("creating new archive")
	a := &Archive{
		Path:           path,
		Version:        ArchiveCompat,
		URL:            url,
		Videos:         []*Video{},
		Livestreams:    []*Video{},
		Shorts:         []*Video{},
		CommentAuthors: map[string]*CommentAuthor{},
		log:            log,
	}
	a.Reporter = newReporter(a)
	if err := a.Commit(); err != nil {
		return nil, err
	}
	return a, nil
}

// Load reads an existing archive from path, migrating it forward if its
// on-disk version is older than ArchiveCompat. A timestamped backup is
// written before any migration step runs.
func Load(path string, log zerolog.Logger) (*Archive, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, ErrArchiveNotFound
	}
	log.Info().Str("archive", filepath.Base(path)).Msg("loading archive")

	data, err := os.ReadFile(filepath.Join(path, storeFile))
	if err != nil {
		return nil, ErrArchiveNotFound
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStructure, err)
	}

	version, ok := rawVersion(raw)
	if !ok {
		return nil, fmt.Errorf("%w: missing version", ErrStructure)
	}

	if version != ArchiveCompat {
		// Migration precondition: the pre-migration store must already be
		// backed up before any step mutates it.
		if err := backup(path); err != nil {
			return nil, fmt.Errorf("backup before migration: %w", err)
		}
		raw, err = migrate(raw, version, ArchiveCompat, path, log)
		if err != nil {
			return nil, err
		}
	}

	return decode(raw, path, log)
}

// decode builds an in-memory archive from its raw persisted representation.
func decode(raw map[string]any, path string, log zerolog.Logger) (*Archive, error) {
	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStructure, err)
	}
	var file archiveFile
	if err := json.Unmarshal(buf, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStructure, err)
	}

	a := &Archive{
		Path:           path,
		Version:        file.Version,
		URL:            file.URL,
		Videos:         file.Videos,
		Livestreams:    file.Livestreams,
		Shorts:         file.Shorts,
		CommentAuthors: file.CommentAuthors,
		log:            log,
	}
	a.Reporter = newReporter(a)
	if a.CommentAuthors == nil {
		a.CommentAuthors = map[string]*CommentAuthor{}
	}
	for _, bucket := range a.buckets() {
		for _, v := range *bucket {
			v.archive = a
			if v.Comments == nil {
				v.Comments = map[string]*Comment{}
			}
		}
	}
	return a, nil
}

// Metadata fetches a fresh snapshot from the remote and merges it into the
// archive. Transient fetch failures are retried with a fixed delay.
func (a *Archive) Metadata(ctx context.Context, fetcher youtube.MetadataFetcher, cfg *config.Refresh) error {
	a.log.Info().Msg("downloading metadata")

	opts := youtube.FetchOptions{Comments: cfg.Comments, Proxy: cfg.Proxy}
	var snapshot *youtube.Snapshot

	err := retry.Do(ctx, retry.FixedConfig(metadataAttempts-1, retryDelay), transientOnly,
		func(ctx context.Context) error {
			var err error
			snapshot, err = fetcher.Fetch(ctx, a.URL, opts)
			if err != nil {
				a.logFetchFailure(err)
			}
			return err
		})
	if err != nil {
		return fmt.Errorf("metadata download: %w", err)
	}

	a.ingest(snapshot)
	return nil
}

// ingest splits one snapshot into buckets and merges each, then flags
// videos the listing no longer contains.
func (a *Archive) ingest(snapshot *youtube.Snapshot) {
	// The confirmed-present marker only means anything within one pass.
	for _, bucket := range a.buckets() {
		for _, video := range *bucket {
			video.knownNotDeleted = false
		}
	}

	videos := snapshot.Entries
	var livestreams, shorts []youtube.RawEntry

	// A flat listing defaults to the regular bucket; otherwise the remote
	// formats the tabs as labeled playlists.
	for _, group := range snapshot.Groups {
		switch kindOf(group.Label) {
		case "videos":
			videos = group.Entries
		case "live":
			livestreams = group.Entries
		case "shorts":
			shorts = group.Entries
		default:
			a.log.Warn().Str("kind", group.Label).Msg("unknown video kind found")
		}
	}

	a.parseMetadata("video", videos, &a.Videos)
	a.parseMetadata("livestream", livestreams, &a.Livestreams)
	a.parseMetadata("shorts", shorts, &a.Shorts)

	a.reportDeleted(a.Videos)
	a.reportDeleted(a.Livestreams)
	a.reportDeleted(a.Shorts)
}

// kindOf extracts the bucket kind from a group label; the remote names tabs
// like "Channel Name - Videos".
func kindOf(label string) string {
	parts := strings.Split(label, " - ")
	return strings.ToLower(parts[len(parts)-1])
}

// parseMetadata merges a category of entries into its bucket, then re-sorts
// the bucket newest-first. The sort is stable so re-ingesting an unchanged
// snapshot never churns the order collaborators paginate over.
func (a *Archive) parseMetadata(kind string, entries []youtube.RawEntry, bucket *[]*Video) {
	a.log.Debug().Str("kind", kind).Int("entries", len(entries)).Msg("parsing metadata")
	for _, entry := range entries {
		a.mergeOrCreate(entry, bucket)
	}
	sort.SliceStable(*bucket, func(i, j int) bool {
		return (*bucket)[i].Uploaded.After((*bucket)[j].Uploaded)
	})
}

// mergeOrCreate updates the bucket's video matching the entry id, or
// appends a newly discovered one. Entries without any downloadable format
// (upcoming/unreleased) are skipped entirely.
func (a *Archive) mergeOrCreate(entry youtube.RawEntry, bucket *[]*Video) {
	if entry.FormatCount == 0 {
		return
	}

	for _, video := range *bucket {
		if video.ID == entry.ID {
			video.update(entry)
			return
		}
	}

	video := newVideo(a, entry)
	*bucket = append(*bucket, video)
	a.Reporter.Added = append(a.Reporter.Added, video)
}

// reportDeleted flags videos absent from this ingestion pass. The listing
// omitting a video is itself the deletion signal, but an already-flagged
// video is never re-reported.
func (a *Archive) reportDeleted(bucket []*Video) {
	for _, video := range bucket {
		if !video.Deleted.Current() && !video.knownNotDeleted {
			a.Reporter.Deleted = append(a.Reporter.Deleted, video)
			video.Deleted.Update(nil, true)
			a.log.Info().Str("id", video.ID).Msg("video deleted upstream")
		}
	}
}

// mergeAuthor creates or updates a comment author in the shared registry.
func (a *Archive) mergeAuthor(id, name, icon string) {
	if author, ok := a.CommentAuthors[id]; ok {
		author.Name.Update(nil, name)
		author.Icon.Update(nil, icon)
		return
	}
	a.CommentAuthors[id] = &CommentAuthor{
		Name: NewElement(nil, name),
		Icon: NewElement(nil, icon),
	}
}

// Search returns the video with the given id from any bucket.
func (a *Archive) Search(id string) (*Video, error) {
	for _, bucket := range a.buckets() {
		for _, video := range *bucket {
			if video.ID == id {
				return video, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrVideoNotFound, id)
}

// Commit saves the archive to disk: backup the previous state, ensure the
// directory layout, then atomically overwrite the canonical file.
func (a *Archive) Commit() error {
	if err := backup(a.Path); err != nil {
		return err
	}

	a.log.Info().Str("archive", filepath.Base(a.Path)).Msg("committing archive to file")
	for _, dir := range []string{a.Path, filepath.Join(a.Path, imagesDir), filepath.Join(a.Path, videosDir)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create archive directory: %w", err)
		}
	}

	writer, err := atomic.NewWriter(filepath.Join(a.Path, storeFile))
	if err != nil {
		return fmt.Errorf("commit archive: %w", err)
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(a.file()); err != nil {
		writer.Abort()
		return fmt.Errorf("commit archive: %w", err)
	}
	if err := writer.Commit(); err != nil {
		return fmt.Errorf("commit archive: %w", err)
	}
	return nil
}

func (a *Archive) file() archiveFile {
	return archiveFile{
		Version:        a.Version,
		URL:            a.URL,
		Videos:         a.Videos,
		Livestreams:    a.Livestreams,
		Shorts:         a.Shorts,
		CommentAuthors: a.CommentAuthors,
	}
}

func (a *Archive) buckets() []*[]*Video {
	return []*[]*Video{&a.Videos, &a.Livestreams, &a.Shorts}
}

// backup copies the current canonical file to the backup file, prefixed
// with two comment lines stating the timestamp and restore instructions.
// Skipped silently when no prior state exists.
func backup(path string) error {
	data, err := os.ReadFile(filepath.Join(path, storeFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read archive for backup: %w", err)
	}

	header := fmt.Sprintf(
		"// Backup of a Yark archive, dated %s\n// Remove these comments and rename to '%s' to restore\n",
		time.Now().UTC().Format(time.RFC3339), storeFile,
	)
	if err := os.WriteFile(filepath.Join(path, backupFile), append([]byte(header), data...), 0644); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	return nil
}

// rawVersion extracts the integer version from a raw decoded archive.
func rawVersion(raw map[string]any) (int, bool) {
	v, ok := raw["version"].(float64)
	if !ok {
		return 0, false
	}
	return int(v), true
}

// transientOnly retries network-class failures and gives up on everything
// else immediately.
func transientOnly(err error) bool {
	var dlErr *youtube.DownloadError
	if errors.As(err, &dlErr) {
		return dlErr.Transient() || dlErr.Kind == youtube.KindUnknown
	}
	return retry.IsRetryable(err)
}

// logFetchFailure rewrites a fetch error into its user-facing category.
func (a *Archive) logFetchFailure(err error) {
	var dlErr *youtube.DownloadError
	if errors.As(err, &dlErr) {
		a.log.Warn().Msg(dlErr.UserMessage())
		return
	}
	a.log.Warn().Err(err).Msg("metadata fetch failed")
}
