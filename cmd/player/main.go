// Package main provides the player entry point.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/echomood/player/internal/app/badlist"
	"github.com/echomood/player/internal/app/beat"
	"github.com/echomood/player/internal/app/likes"
	"github.com/echomood/player/internal/app/mood"
	"github.com/echomood/player/internal/app/player"
	"github.com/echomood/player/internal/domain/track"
	"github.com/echomood/player/internal/infra/account"
	"github.com/echomood/player/internal/infra/audio"
	"github.com/echomood/player/internal/infra/audius"
	"github.com/echomood/player/internal/infra/config"
	"github.com/echomood/player/internal/infra/logger"
	"github.com/echomood/player/internal/infra/store"
)

var (
	app        = kingpin.New("echomood-player", "EchoMood streaming player")
	configPath = app.Flag("config", "Path to config file").Default("config/player.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	// trending command
	trendingCmd = app.Command("trending", "List trending tracks and exit")

	// search command
	searchCmd   = app.Command("search", "Search the catalog and exit")
	searchQuery = searchCmd.Arg("query", "Search query").Required().String()

	// top-liked command
	topLikedCmd = app.Command("top-liked", "List the most-favorited trending tracks and exit")

	// reset-badlist command
	resetBadlistCmd = app.Command("reset-badlist", "Clear the unplayable-track registry and exit")
)

func init() {
	// start command (default) - no need to store the command
	app.Command("start", "Start the interactive player (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	// Initialize logger
	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
		File:   "",
	}
	// Override with command-line flags if specified
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
		loggerConfig.File = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	// Load config
	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	catalog, err := audius.New(audius.Config{
		Host:    cfg.Catalog.Host,
		AppName: cfg.Catalog.AppName,
	})
	if err != nil {
		zlog.Fatal().Msgf("Failed to create catalog client: %v", err)
	}

	ctx := context.Background()

	// Handle one-shot commands
	switch command {
	case trendingCmd.FullCommand():
		tracks, err := catalog.Trending(ctx, cfg.Catalog.TimeRange, cfg.Catalog.Limit)
		exitOnErr(err)
		printTracks(tracks)
		return
	case searchCmd.FullCommand():
		tracks, err := catalog.Search(ctx, *searchQuery, cfg.Catalog.Limit)
		exitOnErr(err)
		printTracks(tracks)
		return
	case topLikedCmd.FullCommand():
		tracks, err := catalog.TopLiked(ctx, cfg.Catalog.TimeRange, cfg.Catalog.Limit, 10)
		exitOnErr(err)
		printTracks(tracks)
		return
	case resetBadlistCmd.FullCommand():
		st, err := store.Open(cfg.Player.StateDir)
		exitOnErr(err)
		reg := badlist.Open(st)
		reg.Reset()
		fmt.Println("Unplayable-track registry cleared")
		return
	}

	// Run player (defer ensures shutdown hook is called)
	if err := run(ctx, cfg, catalog); err != nil {
		zlog.Error().Msgf("Player error: %v", err)
		os.Exit(1)
	}
}

// run executes the interactive player. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(ctx context.Context, cfg *config.Config, catalog *audius.Client) error {
	if !audio.AudioAvailable {
		zlog.Warn().Msg("Audio playback not supported in this build, output will be silent")
	}

	st, err := store.Open(cfg.Player.StateDir)
	if err != nil {
		return fmt.Errorf("failed to open state store: %w", err)
	}

	badReg := badlist.Open(st)

	accountClient, err := account.New(account.Config{BaseURL: cfg.Account.BaseURL})
	if err != nil {
		return fmt.Errorf("failed to create account client: %w", err)
	}

	out := audio.New()

	var ctrl *player.Controller
	ctrl = player.New(out, badReg, player.Config{
		StreamURL:   catalog.StreamURL,
		Volume:      cfg.Player.Volume,
		ReloadDelay: time.Duration(cfg.Player.ReloadDelaySec) * time.Second,
		Recover: func() {
			// The queue has gone systematically bad; re-fetch and restart.
			zlog.Info().Msg("Reloading queue after playback errors")
			tracks, err := catalog.Trending(ctx, cfg.Catalog.TimeRange, cfg.Catalog.Limit)
			if err != nil || len(tracks) == 0 {
				zlog.Error().Msgf("Queue reload failed: %v", err)
				return
			}
			ctrl.PlayTrack(tracks[0], tracks)
		},
	})
	defer ctrl.Close()

	likeSync := likes.New(accountClient, ctrl, st)
	moodMgr := mood.NewManager(accountClient, likeSync, catalog)

	estimator := beat.New(ctrl)
	estimator.Start(ctx)
	defer estimator.Stop()

	// Print track changes as they happen
	go func() {
		for ev := range ctrl.Events() {
			switch ev.Type {
			case player.EventTrackChanged:
				if ev.Track != nil {
					fmt.Printf("▶ %s - %s\n", ev.Track.Title, ev.Track.DisplayArtist())
				}
			case player.EventQueueExhausted:
				fmt.Println("⏹ No playable tracks left in the queue")
			}
		}
	}()

	// Seed the queue with trending tracks
	tracks, err := catalog.Trending(ctx, cfg.Catalog.TimeRange, cfg.Catalog.Limit)
	if err != nil {
		zlog.Warn().Msgf("Failed to fetch trending tracks: %v", err)
	} else if len(tracks) > 0 {
		ctrl.PlayTrack(tracks[0], tracks)
	}

	// Read commands until EOF or shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	lineCh := make(chan string)
	go func() {
		defer close(lineCh)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lineCh <- scanner.Text()
		}
	}()

	printHelp()
	for {
		select {
		case <-sigCh:
			zlog.Info().Msg("Received shutdown signal...")
			return nil
		case line, ok := <-lineCh:
			if !ok {
				return nil
			}
			if quit := dispatch(ctx, line, ctrl, likeSync, moodMgr, catalog, accountClient, estimator, cfg); quit {
				return nil
			}
		}
	}
}

// dispatch executes one interactive command. Returns true on quit.
func dispatch(
	ctx context.Context,
	line string,
	ctrl *player.Controller,
	likeSync *likes.Synchronizer,
	moodMgr *mood.Manager,
	catalog *audius.Client,
	accountClient *account.Client,
	estimator *beat.Estimator,
	cfg *config.Config,
) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "play", "p":
		if len(args) == 0 {
			ctrl.TogglePlay(ctx)
			return false
		}
		idx, err := strconv.Atoi(args[0])
		queue := ctrl.GetQueue()
		if err != nil || idx < 0 || idx >= len(queue) {
			fmt.Println("Usage: play [queue-index]")
			return false
		}
		ctrl.PlayTrack(queue[idx], nil)
	case "pause", "toggle":
		ctrl.TogglePlay(ctx)
	case "next", "n":
		ctrl.Next()
	case "prev":
		ctrl.Prev()
	case "seek":
		if len(args) == 0 {
			fmt.Println("Usage: seek <seconds>")
			return false
		}
		seconds, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			fmt.Println("Usage: seek <seconds>")
			return false
		}
		ctrl.Seek(seconds)
	case "vol":
		if len(args) == 0 {
			fmt.Println("Usage: vol <0.0-1.0>")
			return false
		}
		level, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			fmt.Println("Usage: vol <0.0-1.0>")
			return false
		}
		ctrl.SetVolume(level)
	case "like":
		if err := likeSync.ToggleLikeCurrent(ctx); err != nil {
			fmt.Printf("Like failed: %v\n", err)
		}
	case "login":
		if len(args) == 0 {
			fmt.Println("Usage: login <user-id>")
			return false
		}
		login(ctx, args[0], accountClient, likeSync)
	case "logout":
		likeSync.Logout()
	case "mood":
		if len(args) == 0 {
			fmt.Println("Usage: mood <label>")
			return false
		}
		applyMood(ctx, args[0], ctrl, likeSync, moodMgr, cfg)
	case "search":
		if len(args) == 0 {
			fmt.Println("Usage: search <query>")
			return false
		}
		tracks, err := catalog.Search(ctx, strings.Join(args, " "), cfg.Catalog.Limit)
		if err != nil {
			fmt.Printf("Search failed: %v\n", err)
			return false
		}
		if len(tracks) > 0 {
			ctrl.PlayTrack(tracks[0], tracks)
		}
	case "queue", "q":
		printQueue(ctrl)
	case "status", "s":
		printStatus(ctrl, likeSync, estimator)
	case "help", "?":
		printHelp()
	case "quit", "exit":
		return true
	default:
		fmt.Printf("Unknown command: %s (try 'help')\n", cmd)
	}
	return false
}

func login(ctx context.Context, userID string, accountClient *account.Client, likeSync *likes.Synchronizer) {
	fmt.Printf("Signing in as %s...\n", userID)
	usr, err := accountClient.GetUser(ctx, userID)
	if err != nil {
		fmt.Printf("Login failed: %v\n", err)
		return
	}
	likeSync.SetUser(usr)
	fmt.Printf("Signed in: %s (%d liked songs)\n", usr.Username, len(usr.LikedSongs))
}

func applyMood(
	ctx context.Context,
	label string,
	ctrl *player.Controller,
	likeSync *likes.Synchronizer,
	moodMgr *mood.Manager,
	cfg *config.Config,
) {
	genre := mood.GenreFor(label)
	fmt.Printf("Mood %q -> genre %q\n", label, genre)

	if usr, ok := likeSync.GetUser(); ok {
		if err := moodMgr.Apply(ctx, usr.ID, label); err != nil {
			zlog.Warn().Msgf("Mood update not recorded: %v", err)
		}
	}

	tracks, err := moodMgr.Playlist(ctx, label, cfg.Catalog.Limit)
	if err != nil {
		fmt.Printf("Mood playlist failed: %v\n", err)
		return
	}
	if len(tracks) == 0 {
		fmt.Println("No tracks found for this mood")
		return
	}
	ctrl.PlayTrack(tracks[0], tracks)
}

func printTracks(tracks []track.Track) {
	for i, trk := range tracks {
		fmt.Printf("%3d  %s - %s [%s] (%d likes)\n",
			i, trk.Title, trk.DisplayArtist(), trk.FormatDuration(), trk.FavoriteCount)
	}
}

func printQueue(ctrl *player.Controller) {
	snap := ctrl.GetSnapshot()
	for i, trk := range ctrl.GetQueue() {
		marker := "  "
		if i == snap.Index {
			marker = "▶ "
		}
		fmt.Printf("%s%3d  %s - %s\n", marker, i, trk.Title, trk.DisplayArtist())
	}
}

func printStatus(ctrl *player.Controller, likeSync *likes.Synchronizer, estimator *beat.Estimator) {
	snap := ctrl.GetSnapshot()
	fmt.Printf("State: %s  Volume: %.2f  Beat: %.2f\n", snap.Status, snap.Volume, estimator.Level())
	if snap.Track != nil {
		liked := ""
		if likeSync.IsLiked(snap.Track.ID) {
			liked = "  ♥"
		}
		fmt.Printf("Track: %s - %s  %.0fs/%.0fs%s\n",
			snap.Track.Title, snap.Track.DisplayArtist(), snap.Progress, snap.Duration, liked)
	}
}

func printHelp() {
	fmt.Println(`Commands:
  play [N]       toggle playback, or jump to queue index N
  next / prev    move through the queue
  seek S         seek to S seconds
  vol V          set volume (0.0-1.0)
  like           toggle like on the current track
  login ID       sign in to the account service
  logout         sign out
  mood LABEL     switch the queue to a mood playlist
  search WORDS   search the catalog and play the results
  queue          show the queue
  status         show playback state
  quit           exit`)
}

func exitOnErr(err error) {
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}
