package main

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kestrel3d/kestrel/internal/assets"
	"github.com/kestrel3d/kestrel/internal/bridge"
	"github.com/kestrel3d/kestrel/internal/config"
	"github.com/kestrel3d/kestrel/internal/render"
	"github.com/kestrel3d/kestrel/internal/runtime"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config
	cfgPath := "config/engine.toml"
	if p := os.Getenv("KESTREL_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		// The engine runs fine on defaults; only a present-but-broken
		// file is fatal.
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = config.Defaults()
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	// 3. Load the project manifest
	manifestPath := cfg.Assets.Manifest
	if !filepath.IsAbs(manifestPath) {
		manifestPath = filepath.Join(cfg.Assets.Root, manifestPath)
	}
	manifest, err := assets.LoadManifest(manifestPath)
	if err != nil {
		return fmt.Errorf("load manifest: %w", err)
	}
	log.Info("project loaded",
		zap.String("name", manifest.Name),
		zap.String("manifest", manifestPath))

	// 4. Parse the command line: `kestrel [scene]` runs the loop,
	// `kestrel screenshot <path> [scene]` renders one frame and exits.
	args := os.Args[1:]
	screenshotPath := ""
	if len(args) > 0 && args[0] == "screenshot" {
		if len(args) < 2 {
			return fmt.Errorf("usage: kestrel screenshot <path> [scene]")
		}
		screenshotPath = args[1]
		args = args[2:]
	}

	var backend render.Backend = render.NullBackend{}
	var capture *render.CaptureBackend
	if screenshotPath != "" {
		capture = render.NewCaptureBackend(cfg.Render.Width, cfg.Render.Height)
		backend = capture
	}

	// 5. Boot the engine
	eng := runtime.New(runtime.Options{
		Log:        log,
		Config:     cfg,
		Backend:    backend,
		ScriptRoot: manifest.ScriptRoot(),
		FBWidth:    cfg.Render.Width,
		FBHeight:   cfg.Render.Height,
	})

	// 6. Load the startup scene: positional arg wins over the manifest
	// default.
	sceneName := manifest.DefaultScene
	if len(args) > 0 {
		sceneName = args[0]
	}
	if sceneName == "" {
		return fmt.Errorf("no scene: pass one as an argument or set default_scene in %s", manifestPath)
	}
	data, err := os.ReadFile(manifest.ScenePath(sceneName))
	if err != nil {
		return fmt.Errorf("read scene: %w", err)
	}
	if err := eng.LoadScene(data); err != nil {
		return fmt.Errorf("load scene: %w", err)
	}

	// 7. Screenshot mode: one frame through the capture backend, then out.
	if screenshotPath != "" {
		eng.Update(1.0 / 60.0)
		f, err := os.Create(screenshotPath)
		if err != nil {
			return fmt.Errorf("create screenshot: %w", err)
		}
		defer f.Close()
		if err := png.Encode(f, capture.Image()); err != nil {
			return fmt.Errorf("encode screenshot: %w", err)
		}
		log.Info("screenshot written", zap.String("path", screenshotPath))
		return nil
	}

	// 8. Optional live-edit bridge
	if cfg.Bridge.Enabled {
		srv := bridge.NewServer(log, eng.Bridge)
		if err := srv.Start(cfg.Bridge.BindAddress); err != nil {
			return fmt.Errorf("bridge server: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		}()
		log.Info("bridge listening", zap.String("addr", cfg.Bridge.BindAddress))
	}

	// 9. Frame loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	frame := time.Second / time.Duration(cfg.Engine.TargetFPS)
	ticker := time.NewTicker(frame)
	defer ticker.Stop()

	log.Info("engine running",
		zap.String("scene", sceneName),
		zap.Int("target_fps", cfg.Engine.TargetFPS))

	last := time.Now()
	for {
		select {
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			eng.Update(dt)
			if eng.QuitRequested() {
				log.Info("quit requested")
				eng.Scripts.Shutdown()
				return nil
			}
		case sig := <-shutdownCh:
			log.Info("shutdown signal", zap.String("signal", sig.String()))
			eng.Scripts.Shutdown()
			return nil
		}
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
