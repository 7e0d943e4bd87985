package archive

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// Reporter accumulates the notices of one refresh run: newly discovered
// videos and videos flagged deleted. It also derives the "interesting
// changes" view over the archive's histories for the report command.
type Reporter struct {
	Added   []*Video
	Deleted []*Video

	archive *Archive
}

func newReporter(a *Archive) *Reporter {
	return &Reporter{archive: a}
}

// Print logs a summary of the refresh run and resets the notice lists.
func (r *Reporter) Print() {
	log := r.archive.log
	if len(r.Added) == 0 && len(r.Deleted) == 0 {
		log.Info().Msg("refresh complete, nothing new")
	} else {
		log.Info().
			Int("added", len(r.Added)).
			Int("deleted", len(r.Deleted)).
			Msg("refresh complete")
	}

	for _, video := range r.Added {
		log.Info().Str("id", video.ID).Str("title", video.Title.Current()).Msg("new video")
	}
	for _, video := range r.Deleted {
		log.Info().Str("id", video.ID).Str("title", video.Title.Current()).Msg("deleted video")
	}

	r.Added = nil
	r.Deleted = nil
}

// InterestingChanges writes a table of videos whose tracked attributes have
// recorded more than one value over the archive's lifetime.
func (r *Reporter) InterestingChanges(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tCHANGED")

	for _, bucket := range r.archive.buckets() {
		for _, video := range *bucket {
			changed := changedAttributes(video)
			if changed == "" {
				continue
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", video.ID, truncate(video.Title.Current(), 50), changed)
		}
	}
	tw.Flush()
}

func changedAttributes(v *Video) string {
	var changed string
	add := func(name string) {
		if changed != "" {
			changed += ","
		}
		changed += name
	}
	if v.Title.Changed() {
		add("title")
	}
	if v.Description.Changed() {
		add("description")
	}
	if v.Thumbnail.Changed() {
		add("thumbnail")
	}
	if v.Deleted.Changed() {
		add("deleted")
	}
	return changed
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
