package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/hyprpal/clusterdock/internal/config"
	"github.com/hyprpal/clusterdock/internal/control"
	"github.com/hyprpal/clusterdock/internal/engine"
	"github.com/hyprpal/clusterdock/internal/metrics"
	"github.com/hyprpal/clusterdock/internal/ui/tui"
	"github.com/hyprpal/clusterdock/internal/util"
)

func main() {
	home, _ := os.UserHomeDir()
	defaultConfig := filepath.Join(home, ".config", "clusterdock", "config.yaml")

	cfgPath := flag.String("config", defaultConfig, "path to YAML or TOML config")
	logLevel := flag.String("log-level", "", "log level (trace|debug|info|warn|error); overrides the config")
	logFile := flag.String("log-file", "", "write logs to this file (defaults to stderr when headless, a temp file otherwise)")
	socketPath := flag.String("socket", "", "control socket path (defaults to $"+control.SocketEnv+" or the runtime dir)")
	headless := flag.Bool("headless", false, "run without the terminal playground")
	flag.Parse()

	cfg, raw, err := loadConfig(*cfgPath)
	if err != nil {
		exitErr(err)
	}

	level := util.ParseLogLevel(cfg.LogLevel)
	if *logLevel != "" {
		lvl, ok := util.LookupLogLevel(*logLevel)
		if !ok {
			exitErr(fmt.Errorf("unsupported log level %q", *logLevel))
		}
		level = lvl
	}
	logOut, closeLog, err := openLogOutput(*logFile, *headless)
	if err != nil {
		exitErr(fmt.Errorf("open log file: %w", err))
	}
	defer closeLog()
	logger := util.NewLoggerWithWriter(level, logOut)
	if raw == nil {
		logger.Infof("no config at %s, using defaults", *cfgPath)
	}

	collector := metrics.NewCollector(cfg.Telemetry.Enabled)
	host := engine.NewMemoryHost(cfg.PlaygroundMetrics(), cfg.Playground.Position)
	eng := engine.New(host, logger, collector, engine.Options{
		Params:      cfg.Params(),
		Variant:     cfg.LayoutVariant(),
		SettleDelay: cfg.SettleDelay(),
	})
	defer eng.Close()

	cfgFullPath, err := filepath.Abs(*cfgPath)
	if err != nil {
		exitErr(fmt.Errorf("resolve config path: %w", err))
	}
	cfgFullPath = filepath.Clean(cfgFullPath)
	reloader := newConfigReloader(cfgFullPath, logger, eng, collector, cfg, raw)
	reloader.pinnedLevel = *logLevel != ""

	reloadRequests := make(chan string, 1)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		exitErr(fmt.Errorf("watch config: %w", err))
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(cfgFullPath)); err != nil {
		logger.Warnf("config hot reload disabled: %v", err)
	} else {
		if err := watcher.Add(cfgFullPath); err != nil {
			logger.Debugf("unable to watch config file directly: %v", err)
		}
		go watchConfig(logger, watcher, cfgFullPath, reloadRequests)
	}

	var ctrlSrv *control.Server
	if *socketPath != "" {
		ctrlSrv = control.NewServerAt(*socketPath, eng, logger, reloader.Reload)
	} else {
		ctrlSrv, err = control.NewServer(eng, logger, reloader.Reload)
		if err != nil {
			exitErr(fmt.Errorf("start control server: %w", err))
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigs)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ctrlSrv.Serve(gctx)
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case reason := <-reloadRequests:
				if err := reloader.Reload(reason); err != nil {
					logger.Errorf("reload failed: %v", err)
				}
			case sig := <-sigs:
				switch sig {
				case syscall.SIGHUP:
					if err := reloader.Reload("received SIGHUP"); err != nil {
						logger.Errorf("reload failed: %v", err)
					}
				default:
					logger.Infof("received %s, shutting down", sig)
					cancel()
				}
			}
		}
	})
	if !*headless {
		g.Go(func() error {
			defer cancel()
			pg := tui.NewPlayground(eng, host, logger, tui.PlaygroundOptions{
				CellWidthPx:     cfg.Playground.CellWidthPx,
				ClusterWidth:    cfg.Playground.ClusterWidth,
				SubControlWidth: cfg.Playground.SubControlWidth,
			})
			return tui.RunPlayground(gctx, pg)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Errorf("clusterdock exited: %v", err)
		os.Exit(1)
	}
	logger.Infof("clusterdock stopped")
}

// loadConfig reads path, falling back to defaults when the file is missing.
// The returned bytes are nil when no file was read.
func loadConfig(path string) (*config.Config, []byte, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return config.Default(), nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := config.ParseFormat(raw, config.FormatForPath(path))
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, raw, nil
}

// openLogOutput keeps log lines off the playground's alternate screen.
func openLogOutput(path string, headless bool) (io.Writer, func(), error) {
	if path == "" {
		if headless {
			return os.Stderr, func() {}, nil
		}
		path = filepath.Join(os.TempDir(), "clusterdock.log")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

func watchConfig(logger *util.Logger, watcher *fsnotify.Watcher, target string, reloadRequests chan<- string) {
	const debounceWindow = 250 * time.Millisecond
	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounceWindow)
				timerCh = timer.C
			} else {
				if !timer.Stop() {
					<-timerCh
				}
				timer.Reset(debounceWindow)
			}
		case <-timerCh:
			timer = nil
			timerCh = nil
			select {
			case reloadRequests <- "config file updated":
			default:
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warnf("config watcher error: %v", err)
		}
	}
}

func exitErr(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
