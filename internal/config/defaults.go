package config

const (
	defaultConfigPath              = "~/.config/mangabridge/config.toml"
	defaultDataDir                 = "~/.local/share/mangabridge"
	defaultLogDir                  = "~/.local/share/mangabridge/logs"
	defaultServerBind              = "127.0.0.1:7488"
	defaultAniListBaseURL          = "https://graphql.anilist.co"
	defaultAniListTimeoutSeconds   = 10
	defaultMangaDexBaseURL         = "https://api.mangadex.org"
	defaultMangaDexUploadsURL      = "https://uploads.mangadex.org"
	defaultMangaDexTimeoutSeconds  = 10
	defaultLLMBaseURL              = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMPrimaryModel         = "google/gemini-2.5-pro"
	defaultLLMSecondaryModel       = "google/gemini-2.5-flash"
	defaultLLMReferer              = "https://github.com/mangabridge/mangabridge"
	defaultLLMTitle                = "mangabridge"
	defaultLLMTimeoutSeconds       = 40
	defaultLLMLookupTimeoutSeconds = 45
	defaultLLMMaxAttempts          = 1
	defaultAIFailurePolicy         = PolicyError
	defaultVolumeTTLHours          = 24
	defaultHistoryLimit            = 10
	defaultOverridesPath           = "~/.config/mangabridge/catalog.yaml"
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
	defaultLogMaxSizeMB            = 10
	defaultLogMaxBackups           = 3
	defaultLogMaxAgeDays           = 30
)

// AI failure policies accepted by resolution.ai_failure_policy.
const (
	PolicyError    = "error"
	PolicyEstimate = "estimate"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Server: Server{
			Bind: defaultServerBind,
		},
		AniList: AniList{
			BaseURL:        defaultAniListBaseURL,
			TimeoutSeconds: defaultAniListTimeoutSeconds,
		},
		MangaDex: MangaDex{
			Enabled:        true,
			BaseURL:        defaultMangaDexBaseURL,
			UploadsURL:     defaultMangaDexUploadsURL,
			TimeoutSeconds: defaultMangaDexTimeoutSeconds,
		},
		LLM: LLM{
			BaseURL:              defaultLLMBaseURL,
			PrimaryModel:         defaultLLMPrimaryModel,
			SecondaryModel:       defaultLLMSecondaryModel,
			Referer:              defaultLLMReferer,
			Title:                defaultLLMTitle,
			TimeoutSeconds:       defaultLLMTimeoutSeconds,
			LookupTimeoutSeconds: defaultLLMLookupTimeoutSeconds,
			MaxAttempts:          defaultLLMMaxAttempts,
		},
		Resolution: Resolution{
			AIFailurePolicy: defaultAIFailurePolicy,
		},
		Cache: Cache{
			VolumeTTLHours: defaultVolumeTTLHours,
			HistoryLimit:   defaultHistoryLimit,
		},
		Catalog: Catalog{
			OverridesPath: defaultOverridesPath,
		},
		Logging: Logging{
			Format:     defaultLogFormat,
			Level:      defaultLogLevel,
			MaxSizeMB:  defaultLogMaxSizeMB,
			MaxBackups: defaultLogMaxBackups,
			MaxAgeDays: defaultLogMaxAgeDays,
		},
	}
}
