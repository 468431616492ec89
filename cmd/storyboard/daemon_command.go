package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"storyboard/internal/assets"
	"storyboard/internal/daemon"
	"storyboard/internal/docstore"
	"storyboard/internal/imagegen"
	"storyboard/internal/imaging"
	"storyboard/internal/logging"
	"storyboard/internal/notifications"
	"storyboard/internal/pipeline"
	"storyboard/internal/prompting"
	"storyboard/internal/textgen"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the storyboard daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonProcess(cmd.Context(), ctx)
		},
	}
}

func runDaemonProcess(cmdCtx context.Context, ctx *commandContext) error {
	if cmdCtx == nil {
		cmdCtx = context.Background()
	}
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	pidPath := filepath.Join(cfg.Paths.LogDir, "storyboardd.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := docstore.Open(cfg)
	if err != nil {
		return fmt.Errorf("open document store: %w", err)
	}
	defer store.Close()

	promptMode, err := prompting.ParseMode(cfg.Pipeline.PromptMode)
	if err != nil {
		return fmt.Errorf("configure prompt mode: %w", err)
	}

	textClient := textgen.NewClient(textgen.FromAppConfig(cfg))
	imageClient := imagegen.NewClient(imagegen.FromAppConfig(cfg))
	archiver := assets.NewArchiver(cfg, assets.NewFSStore(cfg), store, logger)

	promptGen := prompting.NewGenerator(textClient, logger)
	imageGen := imaging.NewGenerator(imageClient, archiver, logger,
		imaging.WithItemDelay(time.Duration(cfg.Pipeline.ImageItemDelayMS)*time.Millisecond))

	runner := pipeline.NewRunner(store, promptGen, imageGen, notifications.NewService(cfg), logger,
		pipeline.WithPromptMode(promptMode))

	d, err := daemon.New(cfg, store, runner, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	<-signalCtx.Done()
	d.Stop()
	logger.Info("storyboard daemon shutting down")
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
