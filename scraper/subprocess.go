package scraper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"realestate-lt/models"
	"realestate-lt/storage"
	"realestate-lt/utils"
)

// SubprocessConfig describes the external scraper invocation.
type SubprocessConfig struct {
	Command       string
	Script        string
	Timeout       time.Duration
	Cities        []string
	PropertyTypes []string
}

// SubprocessStrategy delegates scraping to an external process that writes a
// JSON array of raw listings to the path given by --output.
type SubprocessStrategy struct {
	cfg    SubprocessConfig
	logger *utils.Logger
}

// NewSubprocessStrategy creates the primary acquisition strategy.
func NewSubprocessStrategy(cfg SubprocessConfig, logger *utils.Logger) *SubprocessStrategy {
	return &SubprocessStrategy{cfg: cfg, logger: logger.WithField("strategy", "subprocess")}
}

func (s *SubprocessStrategy) Name() string { return "subprocess" }

// Acquire runs the process under a hard deadline. When the deadline passes the
// process is killed and the attempt fails.
func (s *SubprocessStrategy) Acquire(ctx context.Context) ([]*models.RawListing, error) {
	if _, err := os.Stat(s.cfg.Script); err != nil {
		return nil, fmt.Errorf("scraper script %q: %w", s.cfg.Script, err)
	}

	outDir, err := os.MkdirTemp("", "realestate-scrape-*")
	if err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	defer os.RemoveAll(outDir)
	outPath := filepath.Join(outDir, "output.json")

	runCtx := ctx
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	args := []string{s.cfg.Script, "--output", outPath}
	if len(s.cfg.Cities) > 0 {
		args = append(args, "--city", strings.Join(s.cfg.Cities, ","))
	}
	if len(s.cfg.PropertyTypes) > 0 {
		args = append(args, "--property-type", strings.Join(s.cfg.PropertyTypes, ","))
	}

	cmd := exec.CommandContext(runCtx, s.cfg.Command, args...)
	cmd.WaitDelay = 5 * time.Second

	stdout := s.logger.Writer("info")
	stderr := s.logger.Writer("warn")
	defer stdout.Close()
	defer stderr.Close()
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	s.logger.Info("[subprocess] Running %s %s (timeout %v)", s.cfg.Command, strings.Join(args, " "), s.cfg.Timeout)

	if err := cmd.Run(); err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("scraper timed out after %v: %w", s.cfg.Timeout, runCtx.Err())
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("scraper process: %w", err)
	}

	listings, err := storage.ReadSnapshot(outPath)
	if err != nil {
		return nil, err
	}
	return listings, nil
}
