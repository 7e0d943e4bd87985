package youtube

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"yark/internal/retry"
)

var channelIDRegex = regexp.MustCompile(`UC[a-zA-Z0-9_-]{22}`)

// APIFetcher is a MetadataFetcher backed by the YouTube Data API v3. It only
// sees published uploads (one flat listing, no per-tab grouping and no
// comments), so it serves as a low-cost fallback when yt-dlp is unavailable
// or blocked.
type APIFetcher struct {
	service *yt.Service
	// RetryConfig overrides retry behavior for API calls.
	RetryConfig retry.Config
}

// NewAPIFetcher creates a Data API fetcher with the given API key.
func NewAPIFetcher(ctx context.Context, apiKey string) (*APIFetcher, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("youtube: api key required")
	}
	service, err := yt.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}
	return &APIFetcher{service: service, RetryConfig: retry.DefaultConfig()}, nil
}

// Fetch lists the channel's uploads playlist as a flat snapshot.
func (a *APIFetcher) Fetch(ctx context.Context, url string, opts FetchOptions) (*Snapshot, error) {
	channelID, err := resolveChannelID(url)
	if err != nil {
		return nil, err
	}

	uploads, err := a.uploadsPlaylistID(ctx, channelID)
	if err != nil {
		return nil, err
	}

	var entries []RawEntry
	pageToken := ""
	for {
		err := retry.Do(ctx, a.RetryConfig, apiErrorClassifier, func(ctx context.Context) error {
			call := a.service.PlaylistItems.List([]string{"snippet", "contentDetails"}).
				PlaylistId(uploads).
				MaxResults(50).
				PageToken(pageToken).
				Context(ctx)

			resp, err := call.Do()
			if err != nil {
				return err
			}

			for _, item := range resp.Items {
				entry := RawEntry{
					ID: item.ContentDetails.VideoId,
					// Playlist items are always published uploads, so they
					// count as having a downloadable representation.
					FormatCount: 1,
				}
				if item.Snippet != nil {
					entry.Title = item.Snippet.Title
					entry.Description = item.Snippet.Description
					if item.Snippet.Thumbnails != nil && item.Snippet.Thumbnails.Default != nil {
						entry.Thumbnail = item.Snippet.Thumbnails.Default.Url
					}
					if t, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt); err == nil {
						entry.Uploaded = t
					}
				}
				entries = append(entries, entry)
			}

			pageToken = resp.NextPageToken
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("list uploads for %s: %w", channelID, err)
		}

		if pageToken == "" {
			break
		}
	}

	return &Snapshot{Entries: entries}, nil
}

// uploadsPlaylistID resolves the channel's uploads playlist.
func (a *APIFetcher) uploadsPlaylistID(ctx context.Context, channelID string) (string, error) {
	var playlistID string
	err := retry.Do(ctx, a.RetryConfig, apiErrorClassifier, func(ctx context.Context) error {
		resp, err := a.service.Channels.List([]string{"contentDetails"}).
			Id(channelID).
			Context(ctx).
			Do()
		if err != nil {
			return err
		}
		if len(resp.Items) == 0 {
			return &DownloadError{Kind: KindNotFound, Msg: "channel not found: " + channelID}
		}
		playlistID = resp.Items[0].ContentDetails.RelatedPlaylists.Uploads
		return nil
	})
	return playlistID, err
}

// resolveChannelID extracts a channel id from a channel URL or bare id.
func resolveChannelID(input string) (string, error) {
	if id := channelIDRegex.FindString(input); id != "" {
		return id, nil
	}
	return "", &DownloadError{
		Kind: KindNotFound,
		Msg:  fmt.Sprintf("cannot resolve channel id from %q", input),
	}
}

// apiErrorClassifier retries rate limits and timeouts, not hard failures.
func apiErrorClassifier(err error) bool {
	if err == nil {
		return false
	}
	var dlErr *DownloadError
	if errors.As(err, &dlErr) && dlErr.Kind == KindNotFound {
		return false
	}
	if strings.Contains(err.Error(), "quotaExceeded") ||
		strings.Contains(err.Error(), "rateLimitExceeded") {
		return true
	}
	return retry.IsRetryable(err)
}
