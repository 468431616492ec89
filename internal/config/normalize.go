package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTextGen()
	c.normalizeImageGen()
	c.normalizeAssets()
	c.normalizePipeline()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.AssetsDir) == "" {
		c.Paths.AssetsDir = defaultAssetsDir
	}
	if c.Paths.AssetsDir, err = expandPath(c.Paths.AssetsDir); err != nil {
		return fmt.Errorf("paths.assets_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeTextGen() {
	if c.TextGen.APIKey == "" {
		if value, ok := os.LookupEnv("STORYBOARD_TEXTGEN_API_KEY"); ok {
			c.TextGen.APIKey = strings.TrimSpace(value)
		}
	}
	c.TextGen.BaseURL = strings.TrimSpace(c.TextGen.BaseURL)
	if c.TextGen.BaseURL == "" {
		c.TextGen.BaseURL = defaultTextGenBaseURL
	}
	c.TextGen.Model = strings.TrimSpace(c.TextGen.Model)
	if c.TextGen.Model == "" {
		c.TextGen.Model = defaultTextGenModel
	}
	if c.TextGen.TimeoutSeconds <= 0 {
		c.TextGen.TimeoutSeconds = defaultTextGenTimeoutSeconds
	}
}

func (c *Config) normalizeImageGen() {
	if c.ImageGen.APIKey == "" {
		if value, ok := os.LookupEnv("STORYBOARD_IMAGEGEN_API_KEY"); ok {
			c.ImageGen.APIKey = strings.TrimSpace(value)
		}
	}
	c.ImageGen.BaseURL = strings.TrimSpace(strings.TrimRight(c.ImageGen.BaseURL, "/"))
	if c.ImageGen.BaseURL == "" {
		c.ImageGen.BaseURL = defaultImageGenBaseURL
	}
	c.ImageGen.Model = strings.TrimSpace(c.ImageGen.Model)
	if c.ImageGen.Model == "" {
		c.ImageGen.Model = defaultImageGenModel
	}
	if strings.TrimSpace(c.ImageGen.Size) == "" {
		c.ImageGen.Size = defaultImageGenSize
	}
	if strings.TrimSpace(c.ImageGen.Quality) == "" {
		c.ImageGen.Quality = defaultImageGenQuality
	}
	if c.ImageGen.TimeoutSeconds <= 0 {
		c.ImageGen.TimeoutSeconds = defaultImageGenTimeoutSeconds
	}
}

func (c *Config) normalizeAssets() {
	c.Assets.PublicBaseURL = strings.TrimSpace(strings.TrimRight(c.Assets.PublicBaseURL, "/"))
	if c.Assets.MaxDownloadMiB <= 0 {
		c.Assets.MaxDownloadMiB = defaultAssetsMaxDownloadMiB
	}
	if c.Assets.DownloadTimeoutSeconds <= 0 {
		c.Assets.DownloadTimeoutSeconds = defaultAssetsDownloadTimeoutSeconds
	}
}

func (c *Config) normalizePipeline() {
	c.Pipeline.PromptMode = strings.ToLower(strings.TrimSpace(c.Pipeline.PromptMode))
	if c.Pipeline.PromptMode == "" {
		c.Pipeline.PromptMode = defaultPromptMode
	}
	if c.Pipeline.ImageItemDelayMS < 0 {
		c.Pipeline.ImageItemDelayMS = defaultImageItemDelayMS
	}
}

func (c *Config) normalizeLogging() {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	if c.LogFormat == "" {
		c.LogFormat = defaultLogFormat
	}
}
