package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"storyboard/internal/assets"
	"storyboard/internal/config"
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

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("ensure directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := docstore.Open(cfg)
	if err != nil {
		log.Fatalf("open document store: %v", err)
	}
	defer store.Close()

	promptMode, err := prompting.ParseMode(cfg.Pipeline.PromptMode)
	if err != nil {
		log.Fatalf("configure prompt mode: %v", err)
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
		log.Fatalf("create daemon: %v", err)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		log.Fatalf("start daemon: %v", err)
	}

	<-ctx.Done()
	d.Stop()
	logger.Info("storyboardd shutting down")
}
