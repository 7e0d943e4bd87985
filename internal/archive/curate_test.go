package archive

import (
	"fmt"
	"testing"
	"time"

	"yark/internal/config"
	"yark/internal/youtube"
)

// fillBucket ingests count sequential entries into the regular bucket,
// newest first so the ingest sort keeps insertion order.
func fillBucket(t *testing.T, a *Archive, count int) {
	t.Helper()
	base := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	entries := make([]youtube.RawEntry, 0, count)
	for i := 0; i < count; i++ {
		id := fmt.Sprintf("video%02d", i)
		entries = append(entries, entry(id, "Video "+id, base.Add(-time.Duration(i)*time.Hour)))
	}
	a.ingest(&youtube.Snapshot{Entries: entries})
}

func intp(n int) *int { return &n }

func TestCurateBoundaryPolicy(t *testing.T) {
	tests := []struct {
		name    string
		bucket  int
		maximum *int
		want    int
	}{
		{"no maximum considers all", 10, nil, 10},
		{"maximum below bucket", 10, intp(3), 3},
		{"maximum equals bucket drops boundary item", 5, intp(5), 4},
		{"maximum above bucket drops boundary item", 3, intp(10), 2},
		{"single item with maximum yields nothing", 1, intp(5), 0},
		{"empty bucket", 0, intp(5), 0},
		{"zero maximum", 10, intp(0), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := testArchive(t)
			fillBucket(t, a, tt.bucket)

			got := a.curate(&config.Refresh{MaxVideos: tt.maximum})
			if len(got) != tt.want {
				t.Errorf("curate() selected %d videos, want %d", len(got), tt.want)
			}
		})
	}
}

func TestCurateSkipsDownloaded(t *testing.T) {
	a := testArchive(t)
	fillBucket(t, a, 4)
	markDownloaded(t, a, "video01")
	markDownloaded(t, a, "video03")

	got := ids(a.curate(&config.Refresh{}))
	want := []string{"video00", "video02"}
	if len(got) != len(want) {
		t.Fatalf("curate() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("curate() = %v, want %v", got, want)
		}
	}
}

func TestCurateBucketOrder(t *testing.T) {
	a := testArchive(t)
	day := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	a.ingest(&youtube.Snapshot{Groups: []youtube.Group{
		{Label: "Chan - Videos", Entries: []youtube.RawEntry{entry("vvv", "Video", day)}},
		{Label: "Chan - Live", Entries: []youtube.RawEntry{entry("lll", "Stream", day)}},
		{Label: "Chan - Shorts", Entries: []youtube.RawEntry{entry("sss", "Short", day)}},
	}})

	got := ids(a.curate(&config.Refresh{}))
	want := []string{"vvv", "lll", "sss"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("curate() order = %v, want videos then livestreams then shorts", got)
		}
	}
}

func TestCuratePerBucketMaxima(t *testing.T) {
	a := testArchive(t)
	day := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	many := func(prefix string, count int) []youtube.RawEntry {
		entries := make([]youtube.RawEntry, 0, count)
		for i := 0; i < count; i++ {
			id := fmt.Sprintf("%s%02d", prefix, i)
			entries = append(entries, entry(id, id, day.Add(-time.Duration(i)*time.Hour)))
		}
		return entries
	}
	a.ingest(&youtube.Snapshot{Groups: []youtube.Group{
		{Label: "Chan - Videos", Entries: many("v", 5)},
		{Label: "Chan - Live", Entries: many("l", 5)},
		{Label: "Chan - Shorts", Entries: many("s", 5)},
	}})

	// Only the regular bucket is limited; unset maxima stay unlimited.
	got := a.curate(&config.Refresh{MaxVideos: intp(2)})
	if len(got) != 12 {
		t.Errorf("curate() selected %d videos, want 12 (2 + 5 + 5)", len(got))
	}
}
