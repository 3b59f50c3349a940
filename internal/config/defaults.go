package config

const (
	defaultStateDir              = "~/.local/share/mailreel/state"
	defaultOutputDir             = "~/.local/share/mailreel/videos"
	defaultAudioDir              = "~/.local/share/mailreel/audio"
	defaultAssetsDir             = "~/.local/share/mailreel/assets"
	defaultAudioFile             = "default_audio.mp3"
	defaultLogDir                = "~/.local/share/mailreel/logs"
	defaultAPIBind               = "127.0.0.1:7490"
	defaultScriptProvider        = "openai"
	defaultOpenAIModel           = "gpt-4o-mini"
	defaultOpenRouterBaseURL     = "https://openrouter.ai/api/v1/chat/completions"
	defaultOpenRouterModel       = "openai/gpt-4o-mini"
	defaultScriptReferer         = "https://github.com/mailreel/mailreel"
	defaultScriptTitle           = "mailreel"
	defaultScriptAttempts        = 3
	defaultScriptAttemptTimeout  = 20
	defaultScriptBackoffSeconds  = 1
	defaultScriptMaxBackoff      = 8
	defaultScriptMaxChars        = 150
	defaultScriptMaxTokens       = 60
	defaultScriptTemperature     = 0.7
	defaultSpeechModel           = "tts-1"
	defaultSpeechVoice           = "nova"
	defaultSpeechTimeout         = 30
	defaultVideoWidth            = 1080
	defaultVideoHeight           = 1920
	defaultVideoFPS              = 30
	defaultVideoMaxDuration      = 60
	defaultVideoDefaultDuration  = 30
	defaultThumbnailAtSeconds    = 2
	defaultMuxTimeoutSeconds     = 300
	defaultMinFreeMB             = 256
	defaultBackgroundColor       = "0x1d3557"
	defaultBatchConcurrency      = 3
	defaultBatchMaxItems         = 50
	defaultMailboxLimit          = 10
	defaultPollIntervalSeconds   = 300
	defaultNotifyRequestTimeout  = 10
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	providerOpenAI               = "openai"
	providerOpenRouter           = "openrouter"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:  defaultStateDir,
			OutputDir: defaultOutputDir,
			AudioDir:  defaultAudioDir,
			AssetsDir: defaultAssetsDir,
			LogDir:    defaultLogDir,
			APIBind:   defaultAPIBind,
		},
		Script: Script{
			Provider:              defaultScriptProvider,
			Referer:               defaultScriptReferer,
			Title:                 defaultScriptTitle,
			MaxAttempts:           defaultScriptAttempts,
			AttemptTimeoutSeconds: defaultScriptAttemptTimeout,
			BackoffSeconds:        defaultScriptBackoffSeconds,
			MaxBackoffSeconds:     defaultScriptMaxBackoff,
			MaxChars:              defaultScriptMaxChars,
			MaxTokens:             defaultScriptMaxTokens,
			Temperature:           defaultScriptTemperature,
		},
		Speech: Speech{
			Enabled:        true,
			Model:          defaultSpeechModel,
			Voice:          defaultSpeechVoice,
			TimeoutSeconds: defaultSpeechTimeout,
		},
		Video: Video{
			Width:                  defaultVideoWidth,
			Height:                 defaultVideoHeight,
			FPS:                    defaultVideoFPS,
			MaxDurationSeconds:     defaultVideoMaxDuration,
			DefaultDurationSeconds: defaultVideoDefaultDuration,
			Thumbnails:             true,
			ThumbnailAtSeconds:     defaultThumbnailAtSeconds,
			MuxTimeoutSeconds:      defaultMuxTimeoutSeconds,
			MinFreeMB:              defaultMinFreeMB,
			BackgroundColor:        defaultBackgroundColor,
			Backgrounds: map[string][]string{
				"default":    {"backgrounds/default.mp4"},
				"work":       {"backgrounds/subway_surfers.mp4"},
				"gaming":     {"backgrounds/minecraft_parkour.mp4"},
				"satisfying": {"backgrounds/satisfying.mp4"},
			},
		},
		Batch: Batch{
			Concurrency:         defaultBatchConcurrency,
			MaxItems:            defaultBatchMaxItems,
			MailboxLimit:        defaultMailboxLimit,
			PollIntervalSeconds: defaultPollIntervalSeconds,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			BatchCompleted: true,
			ItemFailed:     true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
