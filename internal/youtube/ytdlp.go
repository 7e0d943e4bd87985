package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultYtdlpPath    = "yt-dlp"
	defaultYtdlpTimeout = 30 * time.Minute
)

// Client is a yt-dlp subprocess adapter implementing both MetadataFetcher
// and Downloader.
type Client struct {
	// Path is the path to the yt-dlp executable. Defaults to "yt-dlp".
	Path string
	// Timeout is the maximum time to wait for one yt-dlp invocation.
	Timeout time.Duration
	// Limiter paces invocations so bulk refreshes stay polite to the remote.
	Limiter *rate.Limiter
}

// NewClient creates a yt-dlp adapter with default settings.
func NewClient() *Client {
	return &Client{
		Path:    defaultYtdlpPath,
		Timeout: defaultYtdlpTimeout,
		Limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// Fetch retrieves a full metadata snapshot for the source URL.
func (c *Client) Fetch(ctx context.Context, url string, opts FetchOptions) (*Snapshot, error) {
	if err := c.checkInstalled(ctx); err != nil {
		return nil, err
	}
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	args := []string{
		"-J",
		"--no-warnings",
		// Upcoming livestreams have no formats yet; keep them in the dump so
		// ingestion can apply its skip policy instead of the transport failing.
		"--ignore-no-formats-error",
	}
	if opts.Comments {
		args = append(args, "--write-comments")
	}
	if opts.Proxy != "" {
		args = append(args, "--proxy", opts.Proxy)
	}
	args = append(args, url)

	stdout, err := c.run(ctx, args)
	if err != nil {
		return nil, err
	}

	snapshot, err := parseSnapshot(stdout)
	if err != nil {
		return nil, fmt.Errorf("parse metadata dump: %w", err)
	}
	return snapshot, nil
}

// DownloadAll bulk-downloads the given item URLs into outDir as {id}.{ext}.
func (c *Client) DownloadAll(ctx context.Context, urls []string, outDir string, opts DownloadOptions) error {
	if err := c.checkInstalled(ctx); err != nil {
		return err
	}
	if err := c.wait(ctx); err != nil {
		return err
	}

	args := []string{
		"-o", outDir + "/%(id)s.%(ext)s",
		"--no-warnings",
	}
	if opts.Format != "" {
		args = append(args, "-f", opts.Format)
	}
	if opts.Proxy != "" {
		args = append(args, "--proxy", opts.Proxy)
	}
	args = append(args, urls...)

	if _, err := c.run(ctx, args); err != nil {
		return err
	}
	return nil
}

// wait blocks on the politeness limiter if one is configured.
func (c *Client) wait(ctx context.Context) error {
	if c.Limiter == nil {
		return nil
	}
	return c.Limiter.Wait(ctx)
}

// run executes yt-dlp and converts failures into classified DownloadErrors.
func (c *Client) run(ctx context.Context, args []string) ([]byte, error) {
	timeout := c.Timeout
	if timeout == 0 {
		timeout = defaultYtdlpTimeout
	}
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, c.path(), args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if cmdCtx.Err() == context.DeadlineExceeded {
			return nil, &DownloadError{Kind: KindTimeout, Msg: "yt-dlp timed out"}
		}
		if cmdCtx.Err() == context.Canceled {
			return nil, context.Canceled
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, &DownloadError{Kind: ClassifyMessage(msg), Msg: msg}
	}

	return stdout.Bytes(), nil
}

func (c *Client) checkInstalled(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, c.path(), "--version")
	if err := cmd.Run(); err != nil {
		return ErrNotInstalled
	}
	return nil
}

func (c *Client) path() string {
	if c.Path != "" {
		return c.Path
	}
	return defaultYtdlpPath
}

// ClassifyMessage maps a transport error message onto the closed ErrorKind
// enum. Substring matching of known phrases happens here and nowhere else.
func ClassifyMessage(msg string) ErrorKind {
	switch {
	case strings.Contains(msg, "Private video"):
		return KindPrivate
	case strings.Contains(msg, "This video has been removed by the uploader"):
		return KindRemoved
	// yt-dlp's ContentTooShortError isn't surfaced as a type, only as text.
	case strings.Contains(msg, " bytes, expected "):
		return KindContentTooShort
	case strings.Contains(msg, "nodename nor servname provided"),
		strings.Contains(msg, "Name or service not known"):
		return KindConnection
	case strings.Contains(msg, "HTTP Error 500"), strings.Contains(msg, "HTTP Error 503"):
		return KindServerFault
	case strings.Contains(msg, "The read operation timed out"),
		strings.Contains(msg, "urlopen error timed out"):
		return KindTimeout
	case strings.Contains(msg, "HTTP Error 404: Not Found"):
		return KindNotFound
	default:
		return KindUnknown
	}
}

// ytdlpPlaylist is the top level of a yt-dlp -J dump. Entries are kept raw
// because channels come back either flat or as one nested playlist per tab.
type ytdlpPlaylist struct {
	Title   string            `json:"title"`
	Entries []json.RawMessage `json:"entries"`
}

type ytdlpEntry struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	ViewCount   int64           `json:"view_count"`
	LikeCount   int64           `json:"like_count"`
	Thumbnail   string          `json:"thumbnail"`
	Thumbnails  []ytdlpThumb    `json:"thumbnails"`
	Formats     []ytdlpFormat   `json:"formats"`
	UploadDate  string          `json:"upload_date"`
	Timestamp   int64           `json:"timestamp"`
	Comments    []ytdlpComment  `json:"comments"`
	Entries     json.RawMessage `json:"entries"`
}

type ytdlpThumb struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type ytdlpFormat struct {
	FormatID string `json:"format_id"`
}

type ytdlpComment struct {
	ID              string `json:"id"`
	Author          string `json:"author"`
	AuthorID        string `json:"author_id"`
	AuthorThumbnail string `json:"author_thumbnail"`
	Text            string `json:"text"`
	LikeCount       int64  `json:"like_count"`
	Timestamp       int64  `json:"timestamp"`
}

// parseSnapshot decodes a -J dump into the boundary Snapshot shape.
func parseSnapshot(data []byte) (*Snapshot, error) {
	var playlist ytdlpPlaylist
	if err := json.Unmarshal(data, &playlist); err != nil {
		return nil, err
	}
	if len(playlist.Entries) == 0 {
		return &Snapshot{}, nil
	}

	// Probe the first entry: a nested "entries" array means the dump is a
	// list of per-tab playlists rather than a flat item list.
	var probe ytdlpEntry
	if err := json.Unmarshal(playlist.Entries[0], &probe); err != nil {
		return nil, err
	}

	if len(probe.Entries) == 0 {
		entries, err := convertEntries(playlist.Entries)
		if err != nil {
			return nil, err
		}
		return &Snapshot{Entries: entries}, nil
	}

	snapshot := &Snapshot{}
	for _, raw := range playlist.Entries {
		var group struct {
			Title   string            `json:"title"`
			Entries []json.RawMessage `json:"entries"`
		}
		if err := json.Unmarshal(raw, &group); err != nil {
			return nil, err
		}
		entries, err := convertEntries(group.Entries)
		if err != nil {
			return nil, err
		}
		snapshot.Groups = append(snapshot.Groups, Group{Label: group.Title, Entries: entries})
	}
	return snapshot, nil
}

func convertEntries(raws []json.RawMessage) ([]RawEntry, error) {
	entries := make([]RawEntry, 0, len(raws))
	for _, raw := range raws {
		var e ytdlpEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, err
		}
		entries = append(entries, convertEntry(e))
	}
	return entries, nil
}

func convertEntry(e ytdlpEntry) RawEntry {
	entry := RawEntry{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		ViewCount:   e.ViewCount,
		LikeCount:   e.LikeCount,
		Thumbnail:   bestThumbnail(e),
		FormatCount: len(e.Formats),
		Uploaded:    entryUploaded(e),
	}
	for _, c := range e.Comments {
		entry.Comments = append(entry.Comments, RawComment{
			ID:         c.ID,
			AuthorID:   c.AuthorID,
			AuthorName: c.Author,
			AuthorIcon: c.AuthorThumbnail,
			Body:       c.Text,
			LikeCount:  c.LikeCount,
			Created:    time.Unix(c.Timestamp, 0).UTC(),
		})
	}
	return entry
}

// entryUploaded extracts the upload time, preferring the exact timestamp.
func entryUploaded(e ytdlpEntry) time.Time {
	if e.Timestamp > 0 {
		return time.Unix(e.Timestamp, 0).UTC()
	}
	if e.UploadDate != "" {
		if t, err := ParseUploadDate(e.UploadDate); err == nil {
			return t
		}
	}
	return time.Time{}
}

// bestThumbnail returns the highest-resolution thumbnail URL.
func bestThumbnail(e ytdlpEntry) string {
	if e.Thumbnail != "" {
		return e.Thumbnail
	}
	var best ytdlpThumb
	for _, t := range e.Thumbnails {
		if t.Width*t.Height > best.Width*best.Height {
			best = t
		}
	}
	return best.URL
}
