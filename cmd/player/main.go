package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // autoregisters driver
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/jscyril/lightshow_player/api"
	"github.com/jscyril/lightshow_player/internal/audio"
	"github.com/jscyril/lightshow_player/internal/beat"
	"github.com/jscyril/lightshow_player/internal/config"
	"github.com/jscyril/lightshow_player/internal/library"
	"github.com/jscyril/lightshow_player/internal/lights"
	"github.com/jscyril/lightshow_player/internal/logging"
	"github.com/jscyril/lightshow_player/internal/player"
	"github.com/jscyril/lightshow_player/internal/playlist"
	"github.com/jscyril/lightshow_player/internal/remote"
	"github.com/jscyril/lightshow_player/internal/ui"
	"github.com/jscyril/lightshow_player/pkg/events"
)

type options struct {
	configPath string
	logLevel   string
	headless   bool
	remoteAddr string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:          "lightshow",
		Short:        "Jukebox that drives lights from beat files",
		Long:         `Plays the music library and fires light channels in time with each song's beat files.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "config file (default $LIGHTSHOW_CONFIG or ~/.config/lightshow/config.json)")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	cmd.Flags().BoolVar(&opts.headless, "headless", false, "run without the terminal UI and start playing immediately")
	cmd.Flags().StringVar(&opts.remoteAddr, "remote", "", "serve the HTTP control API on this address")

	return cmd
}

func run(parent context.Context, opts options) error {
	if parent == nil {
		parent = context.Background()
	}

	if err := config.LoadEnvFile(".env"); err != nil {
		return err
	}

	configPath := opts.configPath
	if configPath == "" {
		configPath = config.GetConfigPath()
	}
	cfg, err := config.LoadOrCreate(configPath)
	if err != nil {
		return errors.Wrap(err, "load config")
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.remoteAddr != "" {
		cfg.Remote.Enabled = true
		cfg.Remote.Addr = opts.remoteAddr
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return errors.Wrap(err, "create data directory")
	}

	headless := opts.headless || !term.IsTerminal(int(os.Stdout.Fd()))

	// the TUI owns the terminal, so logs go to a file unless one is configured
	logFile := cfg.LogFile
	if !headless && logFile == "" {
		logFile = filepath.Join(cfg.DataDir, "lightshow.log")
	}
	logger, closeLog, err := logging.New(logging.Options{
		Level:   cfg.LogLevel,
		File:    logFile,
		Console: term.IsTerminal(int(os.Stderr.Fd())),
	})
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lib, err := openLibrary(ctx, cfg, logger)
	if err != nil {
		return err
	}
	libraryPath := filepath.Join(cfg.DataDir, "library.json")
	defer func() {
		if !cfg.EnableCache {
			return
		}
		if err := lib.Save(libraryPath); err != nil {
			logger.Warn().Err(err).Msg("save library")
		}
	}()

	bus := events.NewEventBus()
	defer bus.Close()

	patch := lights.NewPatch()
	grid := lights.NewGrid(patch, cfg.Lights.Blink.Std())
	sinks, closeSinks := openSinks(cfg, patch, logger)
	defer closeSinks()

	trigger := append(lights.Fanout{grid, lights.BusSink{Bus: bus}, lights.LogSink{Logger: logger}}, sinks...)

	beats := beat.NewManager(beat.Options{
		TickInterval:   cfg.Beats.TickInterval.Std(),
		ClockMode:      beat.ClockMode(cfg.Beats.ClockMode),
		DriftThreshold: cfg.Beats.DriftThreshold.Std(),
		CatchUpWindow:  cfg.Beats.CatchUpWindow.Std(),
		Resolver:       library.BeatResolver{Dir: cfg.BeatsDirectory},
		Trigger:        trigger,
		Logger:         logger,
	})

	engine := audio.NewAudioEngine(logger)
	if err := engine.SetVolume(cfg.DefaultVolume); err != nil {
		return err
	}

	queue := playlist.NewQueue()
	queue.Set(lib.AllSongs())

	jukebox := player.New(player.Options{
		Engine:  engine,
		Beats:   beats,
		Queue:   queue,
		Bus:     bus,
		Logger:  logger,
		Looping: cfg.Loop,
		Volume:  cfg.DefaultVolume,
		OnSongChange: func(song *api.Song) {
			grid.Clear()
		},
	})
	defer jukebox.Shutdown()

	g, gctx := errgroup.WithContext(ctx)

	engine.Start(gctx)
	beats.Start(gctx)

	g.Go(func() error {
		return jukebox.Run(gctx)
	})

	if cfg.Remote.Enabled {
		srv := remote.New(remote.Options{
			Addr:           cfg.Remote.Addr,
			AllowedOrigins: cfg.Remote.AllowedOrigins,
			Jukebox:        jukebox,
			Grid:           grid,
			Channels:       beats,
			Library:        lib,
			Logger:         logger,
		})
		g.Go(func() error {
			return srv.ListenAndServe(gctx)
		})
	}

	if headless {
		if queue.Len() == 0 {
			logger.Warn().Strs("dirs", cfg.MusicDirectories).Msg("no songs found; waiting for remote commands")
		} else if err := jukebox.Resume(); err != nil {
			logger.Error().Err(err).Msg("start playback")
		}
		g.Go(func() error {
			<-gctx.Done()
			return nil
		})
	} else {
		g.Go(func() error {
			defer cancel()
			return ui.Run(gctx, jukebox, grid, bus.SubscribeAll())
		})
	}

	err = g.Wait()
	logger.Info().Uint64("dropped_events", bus.Dropped()).Msg("shutting down")
	return err
}

// openLibrary loads the cached library and scans when it is empty
func openLibrary(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*library.Library, error) {
	libraryPath := filepath.Join(cfg.DataDir, "library.json")

	lib := library.NewLibrary(logger)
	if cfg.EnableCache {
		var err error
		lib, err = library.LoadLibrary(libraryPath, logger)
		if err != nil {
			return nil, errors.Wrap(err, "load library")
		}
		if n := lib.Prune(); n > 0 {
			logger.Info().Int("removed", n).Msg("dropped missing songs from library")
		}
	}

	if lib.Len() == 0 && len(cfg.MusicDirectories) > 0 {
		if _, err := lib.Scan(ctx, cfg.MusicDirectories); err != nil {
			return nil, err
		}
	}
	logger.Info().Int("songs", lib.Len()).Msg("library ready")
	return lib, nil
}

// openSinks opens the configured hardware outputs. An output that fails to
// open is logged and left out.
func openSinks(cfg *config.Config, patch *lights.Patch, logger zerolog.Logger) (lights.Fanout, func()) {
	var (
		sinks   lights.Fanout
		closers []func()
	)
	blink := cfg.Lights.Blink.Std()

	if dev := cfg.Lights.Serial.Device; dev != "" {
		s, err := lights.OpenSerial(dev, cfg.Lights.Serial.Baud, patch, blink, logger)
		if err != nil {
			logger.Error().Err(err).Msg("serial lights disabled")
		} else {
			sinks = append(sinks, s)
			closers = append(closers, func() { _ = s.Close() })
		}
	}

	if port := cfg.Lights.MIDI.Port; port != "" {
		s, closeFn, err := lights.OpenMIDI(port, lights.MIDIOptions{
			Channel:  cfg.Lights.MIDI.Channel,
			BaseNote: cfg.Lights.MIDI.BaseNote,
			Blink:    blink,
		}, patch, logger)
		if err != nil {
			logger.Error().Err(err).Msg("midi lights disabled")
		} else {
			sinks = append(sinks, s)
			closers = append(closers, closeFn)
		}
	}

	if host := cfg.Lights.OSC.Host; host != "" {
		sinks = append(sinks, lights.DialOSC(host, cfg.Lights.OSC.Port, cfg.Lights.OSC.Address, patch, logger))
	}

	return sinks, func() {
		for _, c := range closers {
			c()
		}
	}
}
