package archive

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"yark/internal/youtube"
)

// Video is one archived item (regular video, livestream or short). Its
// identity is the remote-assigned id; everything else is tracked over time.
// A video is never removed from its bucket, only flagged deleted.
type Video struct {
	ID          string              `json:"id"`
	Uploaded    time.Time           `json:"uploaded"`
	Title       Element[string]     `json:"title"`
	Description Element[string]     `json:"description"`
	Views       Element[int64]      `json:"views"`
	Likes       Element[int64]      `json:"likes"`
	Thumbnail   Element[string]     `json:"thumbnail"`
	Deleted     Element[bool]       `json:"deleted"`
	Comments    map[string]*Comment `json:"comments"`

	// archive backref for filesystem checks; restored on load.
	archive *Archive
	// knownNotDeleted marks a video confirmed present during the current
	// ingestion pass. Transient, never serialized.
	knownNotDeleted bool
}

// newVideo constructs a video first observed in entry, seeding every
// tracked attribute with a single entry at now.
func newVideo(a *Archive, entry youtube.RawEntry) *Video {
	v := &Video{
		ID:          entry.ID,
		Uploaded:    entry.Uploaded,
		Title:       NewElement(nil, entry.Title),
		Description: NewElement(nil, entry.Description),
		Views:       NewElement(nil, entry.ViewCount),
		Likes:       NewElement(nil, entry.LikeCount),
		Thumbnail:   NewElement(nil, entry.Thumbnail),
		Deleted:     NewElement(nil, false),
		Comments:    map[string]*Comment{},
		archive:     a,

		knownNotDeleted: true,
	}
	v.mergeComments(entry.Comments)
	return v
}

// update merges a fresh snapshot entry into the video's histories. Merging
// an identical entry is a no-op for every history.
func (v *Video) update(entry youtube.RawEntry) {
	v.Title.Update(nil, entry.Title)
	v.Description.Update(nil, entry.Description)
	v.Views.Update(nil, entry.ViewCount)
	v.Likes.Update(nil, entry.LikeCount)
	v.Thumbnail.Update(nil, entry.Thumbnail)
	v.Deleted.Update(nil, false)
	v.mergeComments(entry.Comments)
	v.knownNotDeleted = true
}

// mergeComments updates the comment section and the archive-wide author
// registry from the snapshot's comments.
func (v *Video) mergeComments(comments []youtube.RawComment) {
	for _, raw := range comments {
		v.archive.mergeAuthor(raw.AuthorID, raw.AuthorName, raw.AuthorIcon)

		if existing, ok := v.Comments[raw.ID]; ok {
			existing.Body.Update(nil, raw.Body)
			existing.Likes.Update(nil, raw.LikeCount)
			continue
		}
		v.Comments[raw.ID] = &Comment{
			ID:       raw.ID,
			AuthorID: raw.AuthorID,
			Created:  raw.Created,
			Body:     NewElement(nil, raw.Body),
			Likes:    NewElement(nil, raw.LikeCount),
		}
	}
}

// URL returns the remote watch URL for this video.
func (v *Video) URL() string {
	return "https://www.youtube.com/watch?v=" + v.ID
}

// Downloaded reports whether the video's content file exists on disk.
// Partial download leftovers don't count.
func (v *Video) Downloaded() bool {
	entries, err := os.ReadDir(filepath.Join(v.archive.Path, videosDir))
	if err != nil {
		return false
	}
	for _, entry := range entries {
		name := entry.Name()
		if isPartFile(name) {
			continue
		}
		if strings.TrimSuffix(name, filepath.Ext(name)) == v.ID {
			return true
		}
	}
	return false
}

// Comment is one archived comment, holding its own tracked text and likes
// and referencing a shared CommentAuthor by id.
type Comment struct {
	ID       string          `json:"id"`
	AuthorID string          `json:"author_id"`
	Created  time.Time       `json:"created"`
	Body     Element[string] `json:"body"`
	Likes    Element[int64]  `json:"likes"`
}

// CommentAuthor is a commenter shared across all videos of the archive,
// owned by the archive-wide registry. Name and icon are tracked to capture
// renames and avatar changes.
type CommentAuthor struct {
	Name Element[string] `json:"name"`
	Icon Element[string] `json:"icon"`
}

var partSuffixes = []string{".part", ".ytdl"}

func isPartFile(name string) bool {
	for _, suffix := range partSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}
