package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"yark/internal/config"
	"yark/internal/youtube"
)

const downloadAttempts = 5

// Download drives the bulk content download for everything the curator
// offers. The whole batch is retried up to downloadAttempts times with a
// fixed delay; per-item permanent failures shrink the batch instead of
// aborting it. Exhausting the attempts is fatal for the refresh.
func (a *Archive) Download(ctx context.Context, downloader youtube.Downloader, cfg *config.Refresh) error {
	a.cleanParts()

	opts := youtube.DownloadOptions{Format: cfg.Format, Proxy: cfg.Proxy}

	for attempt := 0; attempt < downloadAttempts; attempt++ {
		// Re-curate every attempt so items completed by a prior pass are
		// excluded from the retry.
		notDownloaded := a.curate(cfg)
		if len(notDownloaded) == 0 {
			if attempt == 0 {
				a.log.Info().Msg("all videos already downloaded")
			}
			return nil
		}

		if attempt == 0 {
			a.log.Info().Int("count", len(notDownloaded)).Msg("downloading new videos")
		}

		err := a.launchDownload(ctx, downloader, opts, notDownloaded)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		retrying := attempt != downloadAttempts-1
		a.logDownloadFailure(err, retrying)
		if !retrying {
			return fmt.Errorf("download videos: %w", err)
		}

		select {
		case <-time.After(retryDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// launchDownload issues bulk download requests for the remaining list,
// shrinking it past items the remote reports as private/removed or the
// local tooling cannot assemble. Any other failure propagates to the
// caller's whole-batch retry.
func (a *Archive) launchDownload(ctx context.Context, downloader youtube.Downloader, opts youtube.DownloadOptions, notDownloaded []*Video) error {
	outDir := filepath.Join(a.Path, videosDir)

	for len(notDownloaded) > 0 {
		urls := make([]string, 0, len(notDownloaded))
		for _, video := range notDownloaded {
			urls = append(urls, video.URL())
		}

		err := downloader.DownloadAll(ctx, urls, outDir, opts)
		if err == nil {
			return nil
		}

		var dlErr *youtube.DownloadError
		if !errors.As(err, &dlErr) {
			return err
		}

		switch dlErr.Kind {
		case youtube.KindPrivate, youtube.KindRemoved:
			rest, video, ok := skipFirstUndownloaded(notDownloaded)
			if !ok {
				return err
			}
			notDownloaded = rest
			a.log.Info().Str("id", video.ID).Msg("skipping deleted video")
			// Only happens when the item vanished after its metadata pass,
			// e.g. during a dry run.
			if !video.Deleted.Current() {
				a.Reporter.Deleted = append(a.Reporter.Deleted, video)
				video.Deleted.Update(nil, true)
			}

		case youtube.KindContentTooShort:
			rest, video, ok := skipFirstUndownloaded(notDownloaded)
			if !ok {
				return err
			}
			notDownloaded = rest
			a.log.Warn().Str("id", video.ID).Msg("skipping video: no format found; please install ffmpeg")

		default:
			return err
		}
	}
	return nil
}

// skipFirstUndownloaded drops everything up to and including the first
// video without content on disk, returning the tail and the skipped video.
func skipFirstUndownloaded(videos []*Video) ([]*Video, *Video, bool) {
	for i, video := range videos {
		if !video.Downloaded() {
			return videos[i+1:], video, true
		}
	}
	return nil, nil, false
}

// cleanParts removes temporary .part/.ytdl leftovers of interrupted
// downloads before a new pass starts.
func (a *Archive) cleanParts() {
	dir := filepath.Join(a.Path, videosDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	cleaned := 0
	for _, entry := range entries {
		if isPartFile(entry.Name()) {
			if err := os.Remove(filepath.Join(dir, entry.Name())); err == nil {
				cleaned++
			}
		}
	}
	if cleaned > 0 {
		a.log.Info().Int("count", cleaned).Msg("cleaned out previous temporary files")
	}
}

// logDownloadFailure rewrites a batch failure into its user-facing category.
func (a *Archive) logDownloadFailure(err error, retrying bool) {
	msg := "Unknown error whilst downloading videos"
	var dlErr *youtube.DownloadError
	if errors.As(err, &dlErr) {
		msg = dlErr.UserMessage()
	}
	if retrying {
		a.log.Warn().Msg(msg + ", retrying in a few seconds")
	} else {
		a.log.Error().Err(err).Msg(msg)
	}
}
