package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mangabridge/internal/config"
	"mangabridge/internal/services/llm"
)

func newConfigCommand(session *cliSession) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration file",
	}
	cmd.AddCommand(
		newConfigInitCommand(),
		newConfigValidateCommand(session),
		newConfigCheckLLMCommand(session),
	)
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var path string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a commented sample configuration",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			target, err := initTarget(path)
			if err != nil {
				return err
			}
			if _, err := os.Stat(target); err == nil && !overwrite {
				return fmt.Errorf("%s already exists; pass --overwrite to replace it", target)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("stat %s: %w", target, err)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("create config directory: %w", err)
			}
			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("write sample config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(cmd.OutOrStdout(), "Set llm.api_key (or export OPENROUTER_API_KEY) to enable chapter lookups.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "path", "p", "", "Where to write the file (defaults to the standard config location)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing file")
	return cmd
}

func initTarget(path string) (string, error) {
	if path = strings.TrimSpace(path); path == "" {
		return config.DefaultConfigPath()
	}
	return config.ExpandPath(path)
}

// newConfigValidateCommand loads the file itself so it can report a missing
// file instead of failing in the root pre-run hook.
func newConfigValidateCommand(session *cliSession) *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Load the configuration and report what is enabled",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, resolved, exists, err := config.Load(session.configPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", resolved)
			if !exists {
				fmt.Fprintln(out, "No file found; built-in defaults apply")
			}
			fmt.Fprintf(out, "Chapter lookup models: %s\n", yesNo(cfg.AIEnabled()))
			fmt.Fprintf(out, "AI failure policy: %s\n", cfg.Resolution.AIFailurePolicy)
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

func newConfigCheckLLMCommand(session *cliSession) *cobra.Command {
	return &cobra.Command{
		Use:   "check-llm",
		Short: "Send a test prompt to each chapter lookup model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := session.loadConfig()
			if err != nil {
				return err
			}
			if !cfg.AIEnabled() {
				return errors.New("chapter lookup models are disabled: set llm.api_key and leave resolution.disable_ai off")
			}
			client := llm.NewClient(llm.Config{
				APIKey:         cfg.LLM.APIKey,
				BaseURL:        cfg.LLM.BaseURL,
				Model:          cfg.LLM.PrimaryModel,
				Referer:        cfg.LLM.Referer,
				Title:          cfg.LLM.Title,
				TimeoutSeconds: cfg.LLM.TimeoutSeconds,
				MaxAttempts:    1,
			})
			timeout := time.Duration(cfg.LLM.TimeoutSeconds) * time.Second

			failures := 0
			for _, model := range []string{cfg.LLM.PrimaryModel, cfg.LLM.SecondaryModel} {
				if model == "" {
					continue
				}
				if err := pingModel(cmd.Context(), client, model, timeout); err != nil {
					failures++
					fmt.Fprintf(cmd.OutOrStdout(), "%s: FAILED (%v)\n", model, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", model)
			}
			if failures > 0 {
				return fmt.Errorf("%d %s failed the health check", failures, plural(int64(failures), "model", "models"))
			}
			return nil
		},
	}
}

func pingModel(ctx context.Context, client *llm.Client, model string, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return client.HealthCheck(ctx, model)
}
