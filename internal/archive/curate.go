package archive

import "yark/internal/config"

// curateDropsBoundaryItem preserves the historical curation boundary of
// min(max(len-1, 0), maximum): when a maximum is set, the last in-range
// item of a bucket is excluded from consideration. This reads like an
// off-by-one, but archives in the wild depend on the resulting deterministic
// selection, so changing it is a format-level decision, not a cleanup.
const curateDropsBoundaryItem = true

// curate selects the videos which still need their content downloaded, in
// bucket order: videos, then livestreams, then shorts. Pure selection, no
// side effects.
func (a *Archive) curate(cfg *config.Refresh) []*Video {
	var notDownloaded []*Video
	notDownloaded = append(notDownloaded, curateBucket(a.Videos, cfg.MaxVideos)...)
	notDownloaded = append(notDownloaded, curateBucket(a.Livestreams, cfg.MaxLivestreams)...)
	notDownloaded = append(notDownloaded, curateBucket(a.Shorts, cfg.MaxShorts)...)
	return notDownloaded
}

// curateBucket restricts a bucket to its maximum, if set, then keeps only
// the videos not yet downloaded. Bucket order is preserved.
func curateBucket(videos []*Video, maximum *int) []*Video {
	if maximum != nil {
		limit := len(videos)
		if curateDropsBoundaryItem {
			limit = max(len(videos)-1, 0)
		}
		videos = videos[:min(limit, *maximum)]
	}

	var notDownloaded []*Video
	for _, video := range videos {
		if !video.Downloaded() {
			notDownloaded = append(notDownloaded, video)
		}
	}
	return notDownloaded
}
