package config

const (
	defaultDataDir          = "~/.local/share/crossdock"
	defaultLogDir           = "~/.local/share/crossdock/logs"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultWedgeGuardMS     = 75
	defaultCameraGuardMS    = 2000
	defaultWedgeIdleFlushMS = 250
	defaultManifestPrefix   = "MAN-"
	defaultMaxAttempts      = 5
	defaultNotifyTimeout    = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Scanner: Scanner{
			WedgeGuardMS:     defaultWedgeGuardMS,
			CameraGuardMS:    defaultCameraGuardMS,
			WedgeIdleFlushMS: defaultWedgeIdleFlushMS,
			ManifestPrefix:   defaultManifestPrefix,
		},
		OfflineQueue: OfflineQueue{
			MaxAttempts: defaultMaxAttempts,
		},
		Feedback: Feedback{
			Enabled: true,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Misroutes:      true,
			OfflineReplay:  true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
