package archive

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"yark/internal/config"
	"yark/internal/youtube"
)

func testArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := New(t.TempDir(), "https://www.youtube.com/channel/UCtestchannel", zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return a
}

func entry(id, title string, uploaded time.Time) youtube.RawEntry {
	return youtube.RawEntry{
		ID:          id,
		Title:       title,
		Uploaded:    uploaded,
		ViewCount:   10,
		LikeCount:   2,
		Thumbnail:   "https://i.ytimg.com/" + id + ".jpg",
		FormatCount: 1,
	}
}

// markDownloaded drops a content file for the video so Downloaded() is true.
func markDownloaded(t *testing.T, a *Archive, id string) {
	t.Helper()
	path := filepath.Join(a.Path, videosDir, id+".mp4")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatalf("writing content file: %v", err)
	}
}

func TestIngestIdempotent(t *testing.T) {
	a := testArchive(t)
	day := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	snapshot := &youtube.Snapshot{Entries: []youtube.RawEntry{
		entry("aaa", "First", day.Add(time.Hour)),
		entry("bbb", "Second", day),
	}}

	a.ingest(snapshot)
	a.ingest(snapshot)

	if len(a.Videos) != 2 {
		t.Fatalf("len(Videos) = %d, want 2", len(a.Videos))
	}
	for _, video := range a.Videos {
		if len(video.Title) != 1 {
			t.Errorf("video %s title history length = %d, want 1", video.ID, len(video.Title))
		}
		if video.Deleted.Current() {
			t.Errorf("video %s flagged deleted after re-ingest of same snapshot", video.ID)
		}
	}
}

func TestIngestTracksChanges(t *testing.T) {
	a := testArchive(t)
	day := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	a.ingest(&youtube.Snapshot{Entries: []youtube.RawEntry{entry("aaa", "Old title", day)}})

	changed := entry("aaa", "New title", day)
	changed.ViewCount = 999
	a.ingest(&youtube.Snapshot{Entries: []youtube.RawEntry{changed}})

	video, err := a.Search("aaa")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if got := video.Title.Current(); got != "New title" {
		t.Errorf("Title.Current() = %q, want %q", got, "New title")
	}
	if len(video.Title) != 2 {
		t.Errorf("title history length = %d, want 2", len(video.Title))
	}
	if got := video.Views.Current(); got != 999 {
		t.Errorf("Views.Current() = %d, want 999", got)
	}
	if len(video.Thumbnail) != 1 {
		t.Errorf("thumbnail history length = %d, want 1", len(video.Thumbnail))
	}
}

func TestIngestFlagsDeletedOnce(t *testing.T) {
	a := testArchive(t)
	day := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	a.ingest(&youtube.Snapshot{Entries: []youtube.RawEntry{
		entry("aaa", "Kept", day.Add(time.Hour)),
		entry("bbb", "Removed later", day),
	}})

	// The listing dropping bbb is the deletion signal.
	remaining := &youtube.Snapshot{Entries: []youtube.RawEntry{entry("aaa", "Kept", day.Add(time.Hour))}}
	a.ingest(remaining)

	video, err := a.Search("bbb")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if !video.Deleted.Current() {
		t.Fatal("Deleted.Current() = false after video vanished from listing, want true")
	}
	if len(a.Reporter.Deleted) != 1 {
		t.Fatalf("len(Reporter.Deleted) = %d, want 1", len(a.Reporter.Deleted))
	}

	// A later pass without the video must not re-flag it.
	a.ingest(remaining)
	if len(video.Deleted) != 2 {
		t.Errorf("deleted history length = %d, want 2", len(video.Deleted))
	}
	if len(a.Reporter.Deleted) != 1 {
		t.Errorf("len(Reporter.Deleted) = %d after second pass, want 1", len(a.Reporter.Deleted))
	}
}

func TestIngestResurrectsReappearedVideo(t *testing.T) {
	a := testArchive(t)
	day := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	both := &youtube.Snapshot{Entries: []youtube.RawEntry{
		entry("aaa", "Kept", day.Add(time.Hour)),
		entry("bbb", "Flickering", day),
	}}

	a.ingest(both)
	a.ingest(&youtube.Snapshot{Entries: []youtube.RawEntry{entry("aaa", "Kept", day.Add(time.Hour))}})
	a.ingest(both)

	video, err := a.Search("bbb")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if video.Deleted.Current() {
		t.Error("Deleted.Current() = true after video reappeared, want false")
	}
	if len(video.Deleted) != 3 {
		t.Errorf("deleted history length = %d, want 3 (false, true, false)", len(video.Deleted))
	}
}

func TestIngestSplitsGroupedListing(t *testing.T) {
	a := testArchive(t)
	day := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	a.ingest(&youtube.Snapshot{Groups: []youtube.Group{
		{Label: "Some Channel - Videos", Entries: []youtube.RawEntry{entry("vvv", "A video", day)}},
		{Label: "Some Channel - Live", Entries: []youtube.RawEntry{entry("lll", "A stream", day)}},
		{Label: "Some Channel - Shorts", Entries: []youtube.RawEntry{entry("sss", "A short", day)}},
		{Label: "Some Channel - Podcasts", Entries: []youtube.RawEntry{entry("ppp", "Ignored", day)}},
	}})

	if len(a.Videos) != 1 || a.Videos[0].ID != "vvv" {
		t.Errorf("Videos = %v, want the single entry vvv", ids(a.Videos))
	}
	if len(a.Livestreams) != 1 || a.Livestreams[0].ID != "lll" {
		t.Errorf("Livestreams = %v, want the single entry lll", ids(a.Livestreams))
	}
	if len(a.Shorts) != 1 || a.Shorts[0].ID != "sss" {
		t.Errorf("Shorts = %v, want the single entry sss", ids(a.Shorts))
	}
	if _, err := a.Search("ppp"); !errors.Is(err, ErrVideoNotFound) {
		t.Errorf("Search(ppp) error = %v, want ErrVideoNotFound", err)
	}
}

func TestIngestSkipsUnreleased(t *testing.T) {
	a := testArchive(t)
	upcoming := entry("aaa", "Premiere", time.Now())
	upcoming.FormatCount = 0

	a.ingest(&youtube.Snapshot{Entries: []youtube.RawEntry{upcoming}})

	if len(a.Videos) != 0 {
		t.Errorf("len(Videos) = %d, want 0 for an entry without formats", len(a.Videos))
	}
}

func TestIngestSortsNewestFirst(t *testing.T) {
	a := testArchive(t)
	day := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	a.ingest(&youtube.Snapshot{Entries: []youtube.RawEntry{
		entry("old", "Old", day),
		entry("new", "New", day.Add(48*time.Hour)),
		entry("mid", "Mid", day.Add(24*time.Hour)),
	}})

	want := []string{"new", "mid", "old"}
	got := ids(a.Videos)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("bucket order = %v, want %v", got, want)
		}
	}
}

func TestIngestSortIsStable(t *testing.T) {
	a := testArchive(t)
	day := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	snapshot := &youtube.Snapshot{Entries: []youtube.RawEntry{
		entry("aaa", "Same time A", day),
		entry("bbb", "Same time B", day),
		entry("ccc", "Same time C", day),
	}}

	a.ingest(snapshot)
	first := ids(a.Videos)
	a.ingest(snapshot)
	second := ids(a.Videos)

	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("re-ingest churned order: %v then %v", first, second)
		}
	}
}

func TestIngestMergesComments(t *testing.T) {
	a := testArchive(t)
	day := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	withComment := entry("aaa", "Video", day)
	withComment.Comments = []youtube.RawComment{{
		ID:         "c1",
		AuthorID:   "author1",
		AuthorName: "Some Person",
		AuthorIcon: "https://example.com/icon.jpg",
		Body:       "first!",
		LikeCount:  3,
		Created:    day,
	}}

	a.ingest(&youtube.Snapshot{Entries: []youtube.RawEntry{withComment}})

	video := a.Videos[0]
	comment, ok := video.Comments["c1"]
	if !ok {
		t.Fatal("comment c1 not merged into video")
	}
	if got := comment.Body.Current(); got != "first!" {
		t.Errorf("comment body = %q, want %q", got, "first!")
	}
	author, ok := a.CommentAuthors["author1"]
	if !ok {
		t.Fatal("author1 not in shared registry")
	}
	if got := author.Name.Current(); got != "Some Person" {
		t.Errorf("author name = %q, want %q", got, "Some Person")
	}

	// An edited comment updates histories, not identity.
	withComment.Comments[0].Body = "first! (edited)"
	withComment.Comments[0].AuthorName = "Some Person Renamed"
	a.ingest(&youtube.Snapshot{Entries: []youtube.RawEntry{withComment}})

	if len(video.Comments) != 1 {
		t.Fatalf("len(Comments) = %d, want 1", len(video.Comments))
	}
	if len(comment.Body) != 2 {
		t.Errorf("comment body history length = %d, want 2", len(comment.Body))
	}
	if got := author.Name.Current(); got != "Some Person Renamed" {
		t.Errorf("author name = %q, want %q", got, "Some Person Renamed")
	}
}

func TestSearchNotFound(t *testing.T) {
	a := testArchive(t)

	_, err := a.Search("missing")
	if !errors.Is(err, ErrVideoNotFound) {
		t.Errorf("Search() error = %v, want ErrVideoNotFound", err)
	}
}

func TestMetadataMergesSnapshot(t *testing.T) {
	a := testArchive(t)
	day := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	fetcher := &fakeFetcher{snapshot: &youtube.Snapshot{
		Entries: []youtube.RawEntry{entry("aaa", "Fetched", day)},
	}}

	err := a.Metadata(context.Background(), fetcher, &config.Refresh{})
	if err != nil {
		t.Fatalf("Metadata() error = %v", err)
	}
	if len(a.Videos) != 1 {
		t.Fatalf("len(Videos) = %d, want 1", len(a.Videos))
	}
	if fetcher.calls != 1 {
		t.Errorf("fetcher called %d times, want 1", fetcher.calls)
	}
}

func TestMetadataPermanentFailureIsNotRetried(t *testing.T) {
	a := testArchive(t)
	fetcher := &fakeFetcher{err: &youtube.DownloadError{Kind: youtube.KindNotFound, Msg: "HTTP Error 404: Not Found"}}

	err := a.Metadata(context.Background(), fetcher, &config.Refresh{})
	if err == nil {
		t.Fatal("Metadata() error = nil, want failure")
	}
	var dlErr *youtube.DownloadError
	if !errors.As(err, &dlErr) || dlErr.Kind != youtube.KindNotFound {
		t.Errorf("Metadata() error = %v, want wrapped not-found download error", err)
	}
	if fetcher.calls != 1 {
		t.Errorf("fetcher called %d times, want 1 for a permanent failure", fetcher.calls)
	}
}

func TestCommitLoadRoundtrip(t *testing.T) {
	a := testArchive(t)
	day := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	withComment := entry("aaa", "Video", day)
	withComment.Comments = []youtube.RawComment{{
		ID: "c1", AuthorID: "author1", AuthorName: "Someone", Body: "hi", Created: day,
	}}
	a.ingest(&youtube.Snapshot{
		Entries: []youtube.RawEntry{withComment, entry("bbb", "Other", day.Add(time.Hour))},
	})

	if err := a.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	loaded, err := Load(a.Path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if loaded.Version != ArchiveCompat {
		t.Errorf("Version = %d, want %d", loaded.Version, ArchiveCompat)
	}
	if loaded.URL != a.URL {
		t.Errorf("URL = %q, want %q", loaded.URL, a.URL)
	}
	if len(loaded.Videos) != 2 {
		t.Fatalf("len(Videos) = %d, want 2", len(loaded.Videos))
	}

	video, err := loaded.Search("aaa")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if got := video.Title.Current(); got != "Video" {
		t.Errorf("Title.Current() = %q, want %q", got, "Video")
	}
	if _, ok := video.Comments["c1"]; !ok {
		t.Error("comment c1 lost across commit/load")
	}
	if _, ok := loaded.CommentAuthors["author1"]; !ok {
		t.Error("author registry lost across commit/load")
	}

	// The backref must be restored so filesystem checks work after load.
	markDownloaded(t, loaded, "aaa")
	if !video.Downloaded() {
		t.Error("Downloaded() = false after load, want true")
	}
}

func TestLoadMissingArchive(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope"), zerolog.Nop())
	if !errors.Is(err, ErrArchiveNotFound) {
		t.Errorf("Load() error = %v, want ErrArchiveNotFound", err)
	}
}

func TestLoadMalformedStore(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, storeFile), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(dir, zerolog.Nop())
	if !errors.Is(err, ErrStructure) {
		t.Errorf("Load() error = %v, want ErrStructure", err)
	}
}

func TestCommitWritesBackup(t *testing.T) {
	a := testArchive(t)
	a.ingest(&youtube.Snapshot{Entries: []youtube.RawEntry{entry("aaa", "Video", time.Now())}})

	// The second commit backs up the first commit's state.
	if err := a.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(a.Path, backupFile))
	if err != nil {
		t.Fatalf("reading backup: %v", err)
	}

	lines := strings.SplitN(string(data), "\n", 3)
	if len(lines) < 3 {
		t.Fatalf("backup has %d lines, want header plus payload", len(lines))
	}
	if !strings.HasPrefix(lines[0], "// Backup of a Yark archive, dated ") {
		t.Errorf("backup header line 1 = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "// Remove these comments and rename to ") {
		t.Errorf("backup header line 2 = %q", lines[1])
	}
	if !strings.HasPrefix(strings.TrimSpace(lines[2]), "{") {
		t.Errorf("backup payload doesn't start with the archive object: %q", lines[2])
	}
}

func ids(videos []*Video) []string {
	out := make([]string, 0, len(videos))
	for _, v := range videos {
		out = append(out, v.ID)
	}
	return out
}

// fakeFetcher is a canned MetadataFetcher for engine tests.
type fakeFetcher struct {
	snapshot *youtube.Snapshot
	err      error
	calls    int
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string, opts youtube.FetchOptions) (*youtube.Snapshot, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.snapshot, nil
}
