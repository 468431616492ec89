package config

const (
	defaultDataDir   = "~/.local/share/storyboard/data"
	defaultAssetsDir = "~/.local/share/storyboard/assets"
	defaultLogDir    = "~/.local/share/storyboard/logs"
	defaultAPIBind   = "127.0.0.1:7519"

	defaultLogFormat = "text"
	defaultLogLevel  = "info"

	defaultTextGenBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultTextGenModel          = "google/gemini-3-flash-preview"
	defaultTextGenTitle          = "Storyboard Prompt Generator"
	defaultTextGenTimeoutSeconds = 120

	defaultImageGenBaseURL        = "https://api.openai.com/v1"
	defaultImageGenModel          = "gpt-image-1"
	defaultImageGenSize           = "1536x1024"
	defaultImageGenQuality        = "high"
	defaultImageGenTimeoutSeconds = 180

	defaultAssetsMaxDownloadMiB         = 10
	defaultAssetsDownloadTimeoutSeconds = 60

	defaultPromptMode       = "batch"
	defaultImageItemDelayMS = 1500

	defaultNotifyRequestTimeout = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			AssetsDir: defaultAssetsDir,
			LogDir:    defaultLogDir,
			APIBind:   defaultAPIBind,
		},
		TextGen: TextGen{
			BaseURL:        defaultTextGenBaseURL,
			Model:          defaultTextGenModel,
			Title:          defaultTextGenTitle,
			TimeoutSeconds: defaultTextGenTimeoutSeconds,
		},
		ImageGen: ImageGen{
			BaseURL:        defaultImageGenBaseURL,
			Model:          defaultImageGenModel,
			Size:           defaultImageGenSize,
			Quality:        defaultImageGenQuality,
			TimeoutSeconds: defaultImageGenTimeoutSeconds,
		},
		Assets: Assets{
			MaxDownloadMiB:         defaultAssetsMaxDownloadMiB,
			DownloadTimeoutSeconds: defaultAssetsDownloadTimeoutSeconds,
		},
		Pipeline: Pipeline{
			PromptMode:       defaultPromptMode,
			ImageItemDelayMS: defaultImageItemDelayMS,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Prompts:        true,
			Images:         true,
			Errors:         true,
		},
		LogLevel:  defaultLogLevel,
		LogFormat: defaultLogFormat,
	}
}
