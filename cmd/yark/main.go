package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"yark/internal/archive"
	"yark/internal/config"
	"yark/internal/logger"
	"yark/internal/youtube"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLog builds the run-scoped logger; every refresh carries a run id so
// interleaved log captures stay attributable.
func newLog() zerolog.Logger {
	return logger.New(logger.FromEnv()).With().Str("run_id", uuid.NewString()).Logger()
}

// loadArchive opens an archive with a friendly message when it's missing.
func loadArchive(path string, log zerolog.Logger) (*archive.Archive, error) {
	a, err := archive.Load(path, log)
	if err != nil {
		if errors.Is(err, archive.ErrArchiveNotFound) {
			return nil, fmt.Errorf("archive doesn't exist, please make sure you typed its name correctly: %s", path)
		}
		return nil, err
	}
	return a, nil
}

// newClient builds the yt-dlp adapter from the settings file.
func newClient(settings *config.Settings) *youtube.Client {
	client := youtube.NewClient()
	if settings.YtdlpPath != "" {
		client.Path = settings.YtdlpPath
	}
	if timeout := settings.YtdlpTimeout(); timeout > 0 {
		client.Timeout = timeout
	}
	return client
}

var rootCmd = &cobra.Command{
	Use:   "yark",
	Short: "YouTube archiving made simple",
}

var newCmd = &cobra.Command{
	Use:   "new PATH URL",
	Short: "Create a new archive targeting a url",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLog()
		if _, err := archive.New(args[0], args[1], log); err != nil {
			return fmt.Errorf("creating archive: %w", err)
		}
		fmt.Printf("Created new archive at %s\n", args[0])
		return nil
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh PATH",
	Short: "Refresh and download an archive",
	Long: `Refreshes an archive's metadata and downloads new content.
If a maximum is set, unset categories won't be limited.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := refreshConfig(cmd)
		if err != nil {
			return err
		}

		settings, err := config.LoadSettings()
		if err != nil {
			return fmt.Errorf("reading settings: %w", err)
		}
		if cfg.Proxy == "" {
			cfg.Proxy = settings.Proxy
		}
		if cfg.Format == "" {
			cfg.Format = settings.Format
		}

		log := newLog()
		a, err := loadArchive(args[0], log)
		if err != nil {
			return err
		}

		client := newClient(settings)
		ctx := context.Background()

		var fetcher youtube.MetadataFetcher = client
		if useAPI, _ := cmd.Flags().GetBool("api"); useAPI {
			fetcher, err = youtube.NewAPIFetcher(ctx, settings.APIKey)
			if err != nil {
				return fmt.Errorf("configuring api fetcher: %w", err)
			}
		}

		if cfg.SkipMetadata {
			log.Info().Msg("skipping metadata download")
		} else if err := a.Metadata(ctx, fetcher, cfg); err != nil {
			return err
		}

		if cfg.SkipDownload {
			log.Info().Msg("skipping videos/livestreams/shorts download")
		} else if err := a.Download(ctx, client, cfg); err != nil {
			return err
		}

		if err := a.Commit(); err != nil {
			return err
		}
		a.Reporter.Print()
		return nil
	},
}

var reportCmd = &cobra.Command{
	Use:   "report PATH",
	Short: "Show the most interesting changes of an archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadArchive(args[0], newLog())
		if err != nil {
			return err
		}
		a.Reporter.InterestingChanges(os.Stdout)
		return nil
	},
}

// refreshConfig builds the refresh options from the command's flags.
func refreshConfig(cmd *cobra.Command) (*config.Refresh, error) {
	cfg := &config.Refresh{}

	cfg.Comments, _ = cmd.Flags().GetBool("comments")
	cfg.SkipMetadata, _ = cmd.Flags().GetBool("skip-metadata")
	cfg.SkipDownload, _ = cmd.Flags().GetBool("skip-download")
	cfg.Format, _ = cmd.Flags().GetString("format")
	cfg.Proxy, _ = cmd.Flags().GetString("proxy")

	for flag, target := range map[string]**int{
		"videos":      &cfg.MaxVideos,
		"livestreams": &cfg.MaxLivestreams,
		"shorts":      &cfg.MaxShorts,
	} {
		if cmd.Flags().Changed(flag) {
			n, err := cmd.Flags().GetInt(flag)
			if err != nil {
				return nil, err
			}
			*target = &n
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func init() {
	refreshCmd.Flags().Bool("comments", false, "Archive all comments (slow)")
	refreshCmd.Flags().Int("videos", 0, "Maximum recent videos to download")
	refreshCmd.Flags().Int("livestreams", 0, "Maximum recent livestreams to download")
	refreshCmd.Flags().Int("shorts", 0, "Maximum recent shorts to download")
	refreshCmd.Flags().Bool("skip-metadata", false, "Skip downloading metadata")
	refreshCmd.Flags().Bool("skip-download", false, "Skip downloading content")
	refreshCmd.Flags().String("format", "", "Download using a custom yt-dlp format")
	refreshCmd.Flags().String("proxy", "", "Download through a proxy server")
	refreshCmd.Flags().Bool("api", false, "Fetch metadata via the YouTube Data API (requires api_key in yark.toml)")

	rootCmd.AddCommand(newCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(reportCmd)
}
