package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateProviders(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.AssetsDir) == "" {
		return errors.New("paths.assets_dir must be set")
	}
	return nil
}

func (c *Config) validateProviders() error {
	if err := ensurePositiveMap(map[string]int{
		"textgen.timeout_seconds":         c.TextGen.TimeoutSeconds,
		"imagegen.timeout_seconds":        c.ImageGen.TimeoutSeconds,
		"assets.max_download_mib":         c.Assets.MaxDownloadMiB,
		"assets.download_timeout_seconds": c.Assets.DownloadTimeoutSeconds,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePipeline() error {
	switch c.Pipeline.PromptMode {
	case "batch", "per_scene":
	default:
		return fmt.Errorf("pipeline.prompt_mode must be \"batch\" or \"per_scene\", got %q", c.Pipeline.PromptMode)
	}
	if c.Pipeline.ImageItemDelayMS < 0 {
		return errors.New("pipeline.image_item_delay_ms must not be negative")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if strings.TrimSpace(c.Notifications.NtfyTopic) == "" {
		return nil
	}
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.LogFormat {
	case "text", "console", "json":
	default:
		return fmt.Errorf("log_format must be \"text\" or \"json\", got %q", c.LogFormat)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
