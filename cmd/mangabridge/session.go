package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mangabridge/internal/app"
	"mangabridge/internal/config"
	"mangabridge/internal/logging"
	"mangabridge/internal/services"
)

// skipConfigAnnotation marks commands that must run without a loadable config.
const skipConfigAnnotation = "skipConfigLoad"

// cliSession holds state shared by the subcommands of one invocation. Config
// and logger are loaded on first use.
type cliSession struct {
	configFlag *string

	cfg    *config.Config
	log    *slog.Logger
	loaded bool
	err    error
}

func (s *cliSession) configPath() string {
	if s.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*s.configFlag)
}

func (s *cliSession) loadConfig() (*config.Config, error) {
	if s.loaded {
		return s.cfg, s.err
	}
	s.loaded = true
	cfg, _, _, err := config.Load(s.configPath())
	if err == nil {
		err = cfg.EnsureDirectories()
	}
	if err != nil {
		s.err = err
		return nil, err
	}
	s.cfg = cfg
	return cfg, nil
}

func (s *cliSession) logger() (*slog.Logger, error) {
	if s.log != nil {
		return s.log, nil
	}
	cfg, err := s.loadConfig()
	if err != nil {
		return nil, err
	}
	if s.log, err = logging.NewFromConfig(cfg); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return s.log, nil
}

// withApp wires the application for one command and closes it afterwards.
func (s *cliSession) withApp(ctx context.Context, fn func(*app.App) error) error {
	cfg, err := s.loadConfig()
	if err != nil {
		return err
	}
	logger, err := s.logger()
	if err != nil {
		return err
	}
	a, err := app.New(ctx, cfg, logger, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func skipsConfig(cmd *cobra.Command) bool {
	for ; cmd != nil; cmd = cmd.Parent() {
		if cmd.Annotations[skipConfigAnnotation] == "true" {
			return true
		}
	}
	return false
}

// titleAndEpisode reads "<title words...> <episode>", so titles need no quoting.
func titleAndEpisode(args []string) (string, int, error) {
	if len(args) < 2 {
		return "", 0, services.Wrap(services.ErrValidation, "cli", "", "expected <title> <episode>", nil)
	}
	raw := args[len(args)-1]
	episode, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return "", 0, services.Wrap(services.ErrValidation, "cli", "", fmt.Sprintf("episode must be an integer, got %q", raw), nil)
	}
	return strings.Join(args[:len(args)-1], " "), episode, nil
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
