// Package main provides the vertigo CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/davecarlow/vertigo/internal/api"
	"github.com/davecarlow/vertigo/internal/config"
	"github.com/davecarlow/vertigo/internal/feed"
	"github.com/davecarlow/vertigo/internal/impressions"
	"github.com/davecarlow/vertigo/internal/logging"
	"github.com/davecarlow/vertigo/internal/store"
	"github.com/davecarlow/vertigo/internal/ui"
	"github.com/davecarlow/vertigo/internal/ui/comments"
	"github.com/davecarlow/vertigo/internal/ui/feedview"
)

var version = "0.1.0"

func main() {
	// Optional; real environments set variables directly.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		apiURL    string
		feedName  string
		profileID string
		muted     bool
	)

	cmd := &cobra.Command{
		Use:     "vertigo",
		Short:   "A short-form video feed in your terminal",
		Long:    "Vertigo is a terminal client for short-form vertical video feeds: swipe through clips, like, bookmark, and comment without leaving your shell.",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(apiURL, feedName, profileID, muted)
		},
	}

	cmd.SetVersionTemplate("vertigo version {{.Version}}\n")
	cmd.Flags().StringVar(&apiURL, "api", "", "API base URL (overrides config)")
	cmd.Flags().StringVarP(&feedName, "feed", "f", "", "starting feed: foryou, following, local, profile")
	cmd.Flags().StringVarP(&profileID, "profile", "p", "", "profile ID for the profile feed")
	cmd.Flags().BoolVarP(&muted, "muted", "m", false, "start with audio muted")

	cmd.AddCommand(newConfigCmd())

	return cmd
}

func run(apiURL, feedName, profileID string, muted bool) error {
	dataDir, err := config.DataDir()
	if err != nil {
		return fmt.Errorf("resolve data directory: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	if err := logging.Init(dataDir); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logging.Close()

	cfg, err := config.Load(dataDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if apiURL != "" {
		cfg.APIBaseURL = apiURL
	}

	st, err := store.Open(filepath.Join(dataDir, "vertigo.db"))
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer st.Close()

	client := api.New(cfg.APIBaseURL, cfg.Token())
	reporter := impressions.NewReporter(client, st)

	// Retry impressions queued while offline before the UI takes over.
	flushCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	if n, err := reporter.FlushPending(flushCtx); err != nil {
		logging.Warn("impression flush incomplete", "delivered", n, "error", err)
	} else if n > 0 {
		logging.Info("flushed queued impressions", "count", n)
	}
	cancel()

	kind := cfg.DefaultFeed
	if feedName != "" {
		kind = feed.Kind(feedName)
	}
	switch kind {
	case feed.KindForYou, feed.KindFollowing, feed.KindLocal, feed.KindProfile:
	default:
		return fmt.Errorf("unknown feed %q", kind)
	}
	if kind == feed.KindProfile && profileID == "" {
		return fmt.Errorf("the profile feed needs --profile")
	}

	if !muted {
		if v, err := st.GetPref("muted", "0"); err == nil && v == "1" {
			muted = true
		}
	}
	muted = muted || cfg.MuteOnOpen

	fv := feedview.New(client, client, reporter, feedview.Options{
		Kind:          kind,
		ProfileID:     profileID,
		ForYouEnabled: !cfg.HideForYou,
		Muted:         muted,
		TickInterval:  time.Duration(cfg.TickMillis) * time.Millisecond,
	})

	// Show cached pages instantly while the first fetch is in flight.
	for _, k := range feed.Kinds {
		if items, err := st.LoadFeed(k); err == nil && len(items) > 0 {
			fv.Seed(k, items)
		}
	}

	app := ui.NewApp(fv, comments.New(client, nil), st, client, version)

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithReportFocus())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run UI: %w", err)
	}
	return nil
}

// newConfigCmd prints the resolved configuration paths.
func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show configuration location",
		RunE: func(cmd *cobra.Command, args []string) error {
			dataDir, err := config.DataDir()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Data directory: %s\n", dataDir)
			fmt.Fprintf(cmd.OutOrStdout(), "Config file:    %s\n", filepath.Join(dataDir, "config.json"))
			fmt.Fprintf(cmd.OutOrStdout(), "Cache:          %s\n", filepath.Join(dataDir, "vertigo.db"))
			fmt.Fprintf(cmd.OutOrStdout(), "Logs:           %s\n", filepath.Join(dataDir, "logs"))
			return nil
		},
	}
}
