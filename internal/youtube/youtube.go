// Package youtube adapts the external metadata and download transports to
// the interfaces the archive engine consumes. All transport-specific error
// text is classified here; the engine only ever sees typed error kinds.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors surfaced by adapters.
var (
	// ErrNotInstalled indicates the yt-dlp binary was not found.
	ErrNotInstalled = errors.New("youtube: yt-dlp not installed")
	// ErrTimestamp indicates a malformed date or duration string in
	// collaborator input.
	ErrTimestamp = errors.New("youtube: malformed timestamp")
)

// FetchOptions configures a metadata fetch.
type FetchOptions struct {
	// Comments enables fetching the comment section of every entry (slow).
	Comments bool
	// Proxy is an optional proxy URL passed to the transport.
	Proxy string
}

// DownloadOptions configures a bulk content download.
type DownloadOptions struct {
	// Format is an optional transport-specific format selector.
	Format string
	// Proxy is an optional proxy URL passed to the transport.
	Proxy string
}

// MetadataFetcher retrieves one metadata snapshot for a source URL.
type MetadataFetcher interface {
	Fetch(ctx context.Context, url string, opts FetchOptions) (*Snapshot, error)
}

// Downloader performs a bulk content download of the given item URLs into
// outDir as {id}.{ext}. A failed download returns a *DownloadError.
type Downloader interface {
	DownloadAll(ctx context.Context, urls []string, outDir string, opts DownloadOptions) error
}

// Snapshot is one fetch result. Either Entries is set (flat listing) or
// Groups is set (labeled sub-listings), never both.
type Snapshot struct {
	Entries []RawEntry
	Groups  []Group
}

// Group is a labeled sub-listing within a snapshot. The label is the
// remote's playlist title; the engine matches its suffix case-insensitively
// against the known kinds.
type Group struct {
	Label   string
	Entries []RawEntry
}

// RawEntry is the validated transfer shape of one remote item. The engine
// never branches on anything the transport returned beyond these fields.
type RawEntry struct {
	ID          string
	Title       string
	Description string
	Uploaded    time.Time
	ViewCount   int64
	LikeCount   int64
	Thumbnail   string
	// FormatCount is the number of downloadable representations. Zero means
	// the item is unreleased or upcoming and must be skipped by ingestion.
	FormatCount int
	Comments    []RawComment
}

// RawComment is one comment on an entry.
type RawComment struct {
	ID         string
	AuthorID   string
	AuthorName string
	AuthorIcon string
	Body       string
	LikeCount  int64
	Created    time.Time
}

// ErrorKind is the closed classification of download failures. The engine's
// retry coordinator branches only on these values.
type ErrorKind int

const (
	// KindUnknown is an unclassified failure, propagated to outer retry.
	KindUnknown ErrorKind = iota
	// KindPrivate means the item was made private after being archived.
	KindPrivate
	// KindRemoved means the uploader removed the item.
	KindRemoved
	// KindContentTooShort means the downloading end lacks the tooling to
	// assemble the only available formats (missing ffmpeg).
	KindContentTooShort
	// KindConnection is a failure reaching the remote's servers.
	KindConnection
	// KindServerFault is a remote-side server error.
	KindServerFault
	// KindTimeout is a read or connect timeout.
	KindTimeout
	// KindNotFound means the target id could not be resolved.
	KindNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindPrivate:
		return "private"
	case KindRemoved:
		return "removed"
	case KindContentTooShort:
		return "content-too-short"
	case KindConnection:
		return "connection"
	case KindServerFault:
		return "server-fault"
	case KindTimeout:
		return "timeout"
	case KindNotFound:
		return "not-found"
	default:
		return "unknown"
	}
}

// DownloadError is a typed download failure carrying its classification.
type DownloadError struct {
	Kind ErrorKind
	Msg  string
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("youtube: download failed (%s): %s", e.Kind, e.Msg)
}

// Permanent reports whether the failure is tied to a specific item and the
// batch should continue without it.
func (e *DownloadError) Permanent() bool {
	return e.Kind == KindPrivate || e.Kind == KindRemoved || e.Kind == KindContentTooShort
}

// Transient reports whether the failure is a retryable network condition.
func (e *DownloadError) Transient() bool {
	switch e.Kind {
	case KindConnection, KindServerFault, KindTimeout:
		return true
	}
	return false
}

// UserMessage rewrites the classification into a user-facing category.
func (e *DownloadError) UserMessage() string {
	switch e.Kind {
	case KindConnection:
		return "Issue connecting with YouTube's servers"
	case KindServerFault:
		return "Fault with YouTube's servers"
	case KindTimeout:
		return "Timed out trying to reach YouTube"
	case KindNotFound:
		return "Couldn't find target by its id"
	case KindPrivate:
		return "Video is private"
	case KindRemoved:
		return "Video was removed by the uploader"
	case KindContentTooShort:
		return "No usable format found; please install ffmpeg"
	default:
		return e.Msg
	}
}

// ParseUploadDate parses the transport's YYYYMMDD upload date.
func ParseUploadDate(s string) (time.Time, error) {
	t, err := time.Parse("20060102", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrTimestamp, s)
	}
	return t, nil
}
