package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"tripcal/internal/capture"
	"tripcal/internal/config"
	"tripcal/internal/ics"
	appLog "tripcal/internal/log"
	"tripcal/internal/refresh"
	"tripcal/internal/store"
	"tripcal/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	once       bool
	snapshot   bool
	debug      bool
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
		conf.CacheDir = "./cache/ics-cache"
	}

	appLog.Info("tripcal starting", "version", "0.1.0")

	loc, err := conf.Location()
	if err != nil {
		appLog.Error("invalid timezone; using local", err, "timezone", conf.Timezone)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", loc.String(),
		"refresh", conf.RefreshCron,
		"ics_count", len(conf.ICS),
		"once", flags.once,
		"snapshot", flags.snapshot,
		"debug", flags.debug,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st := store.New()
	refresher := refresh.New(conf, loc, ics.NewFetcher(conf.CacheDir), st)

	// A failed first refresh still serves: feeds may come back on the next tick.
	if err := refresher.RunOnce(ctx); err != nil {
		appLog.Warn("initial refresh incomplete", "reason", err.Error())
	}

	if flags.once && !flags.snapshot {
		appLog.Info("tripcal exiting", "trips", len(st.All()))
		return
	}

	previewPath := capture.PreviewPath(flags.debug)
	server := web.NewServer(conf, st, previewPath, flags.debug)

	if flags.once {
		if err := snapshotOnce(ctx, server, conf, previewPath); err != nil {
			appLog.Error("snapshot failed", err)
			os.Exit(1)
		}
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	done, err := refresher.Start(gctx)
	if err != nil {
		appLog.Error("failed to start refresh scheduler", err)
		stop()
		os.Exit(1)
	}
	g.Go(func() error {
		<-done
		return nil
	})
	g.Go(func() error {
		return server.ListenAndServe(gctx)
	})

	if flags.snapshot {
		g.Go(func() error {
			if err := takeSnapshot(gctx, conf, previewPath); err != nil {
				appLog.Error("snapshot failed", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		appLog.Error("tripcal stopped with error", err)
		os.Exit(1)
	}
	appLog.Info("tripcal exiting")
}

// snapshotOnce serves the calendar just long enough to capture it.
func snapshotOnce(ctx context.Context, server *web.Server, conf *config.Config, previewPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.ListenAndServe(gctx)
	})
	g.Go(func() error {
		defer cancel()
		return takeSnapshot(gctx, conf, previewPath)
	})
	return g.Wait()
}

func takeSnapshot(ctx context.Context, conf *config.Config, previewPath string) error {
	// give the listener a moment to bind
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(500 * time.Millisecond):
	}

	opts := capture.CaptureOptions{
		URL:        "http://" + conf.Listen + "/calendar",
		OutputPath: previewPath,
	}
	if conf.BasicAuth != nil {
		opts.Username = conf.BasicAuth.Username
		opts.Password = conf.BasicAuth.Password
	}

	if err := capture.CaptureCalendarPNG(ctx, opts); err != nil {
		return err
	}
	appLog.Info("snapshot written", "path", previewPath)
	return nil
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/tripcal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one refresh (and snapshot, with -snapshot) and exit")
	flag.BoolVar(&cfg.snapshot, "snapshot", false, "Capture /calendar to preview.png after startup")
	flag.BoolVar(&cfg.debug, "debug", false, "Debug logging and ./cache paths")

	flag.Parse()

	return cfg
}
