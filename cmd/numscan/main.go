package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/ironsheep/numscan/internal/config"
	"github.com/ironsheep/numscan/internal/imaging"
	"github.com/ironsheep/numscan/internal/monitoring"
	"github.com/ironsheep/numscan/internal/ocr"
	"github.com/ironsheep/numscan/internal/server"
	"github.com/ironsheep/numscan/internal/storage/sqlite"
	"github.com/ironsheep/numscan/internal/timeutil"
	"github.com/ironsheep/numscan/internal/vision"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const defaultReplayInterval = 100 * time.Millisecond

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("numscan %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			if info := ocr.Info(ocr.Options{}); info.Available {
				fmt.Printf("  Tesseract:  %s\n", info.Version)
			} else {
				fmt.Printf("  Tesseract:  unavailable (%s)\n", info.Error)
			}
			return
		case "--help", "-h", "help":
			printUsage()
			return
		}
	}

	// Configure logging to stderr (stdout is for JSON-RPC)
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	if os.Getenv("NUMSCAN_LOG_LEVEL") == "debug" {
		monitoring.SetDebug(true)
		log.Printf("numscan v%s (built %s, commit %s)", Version, BuildTime, GitCommit)
	}

	tuning, err := loadTuning()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	detector, err := ocr.NewTesseractDetector(ocr.OptionsFromTuning(tuning))
	if err != nil {
		log.Fatalf("OCR error: %v", err)
	}
	defer detector.Close()

	db, err := sqlite.OpenDB(dbPath())
	if err != nil {
		log.Fatalf("Database error: %v", err)
	}
	defer db.Close()

	cfg := server.Config{
		Detector: detector,
		Tracker:  vision.NewTemplateTracker(vision.OptionsFromTuning(tuning)),
		Store:    sqlite.NewSessionStore(db),
		Tuning:   tuning,
		Clock:    timeutil.RealClock{},
		Version:  Version,
	}

	if len(os.Args) > 1 && os.Args[1] == "replay" {
		if len(os.Args) < 3 {
			printUsage()
			os.Exit(2)
		}
		if err := replay(cfg, os.Args[2], os.Args[3:]); err != nil {
			log.Fatalf("Replay error: %v", err)
		}
		return
	}

	srv := server.New(cfg)
	if err := srv.Run(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// replay feeds a directory of frames through a scan round, streaming event
// notifications to stdout and ending with the round's result.
func replay(cfg server.Config, dir string, expected []string) error {
	interval := defaultReplayInterval
	if v := os.Getenv("NUMSCAN_REPLAY_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return fmt.Errorf("invalid NUMSCAN_REPLAY_INTERVAL %q", v)
		}
		interval = d
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	srv := server.New(cfg)
	srv.SetOutput(os.Stdout)
	info := srv.StartScan(ctx, expected)
	log.Printf("Replaying %s into session %s", dir, info.SessionID)

	err := imaging.Replay(ctx, dir, interval, cfg.Clock, func(f imaging.ReplayFrame) error {
		report := srv.SubmitFrame(ctx, f.Image, f.Timestamp)
		monitoring.Debugf("frame %d %s: %+v", f.Seq, f.Path, report)
		return nil
	})
	if err != nil && ctx.Err() == nil {
		return err
	}

	res, err := srv.FinishScan(context.Background())
	if err != nil {
		return err
	}
	stats := srv.Engine().Stats()
	log.Printf("Replay done: %d frames, %d detector passes, detector p95 %.1fms, tracker p95 %.1fms",
		stats.Frames, stats.DetectorPasses, stats.DetectorLatency.P95Ms, stats.TrackerLatency.P95Ms)
	return json.NewEncoder(os.Stdout).Encode(res)
}

func loadTuning() (*config.TuningConfig, error) {
	path := os.Getenv("NUMSCAN_TUNING")
	if path == "" {
		return config.DefaultTuningConfig(), nil
	}
	return config.LoadTuningConfig(path)
}

func dbPath() string {
	if p := os.Getenv("NUMSCAN_DB"); p != "" {
		return p
	}
	return "numscan.db"
}

func printUsage() {
	fmt.Println("numscan - live numeric label tracking")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  numscan                          Serve JSON-RPC over stdin/stdout")
	fmt.Println("  numscan replay <dir> [number...] Scan a directory of frames")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version, -v    Print version information")
	fmt.Println("  --help, -h       Print this help message")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Println("  NUMSCAN_TUNING=<path.json>        Tuning overrides")
	fmt.Println("  NUMSCAN_DB=<path>                 Session database (default numscan.db)")
	fmt.Println("  NUMSCAN_LOG_LEVEL=debug           Enable debug logging")
	fmt.Println("  NUMSCAN_REPLAY_INTERVAL=<dur>     Frame spacing for replay (default 100ms, 0 = unpaced)")
}
