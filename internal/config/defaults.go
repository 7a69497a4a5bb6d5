package config

const (
	defaultDataDir                 = "~/.local/share/fieldsync"
	defaultLogDir                  = "~/.local/share/fieldsync/logs"
	defaultAPIBaseURL              = "http://localhost:3000"
	defaultAPIRequestTimeout       = 30
	defaultSyncInterval            = 30
	defaultSyncMaxAttempts         = 0
	defaultSyncConnectivityTimeout = 3
	defaultSyncWatchNetwork        = true
	defaultProximityRadiusMeters   = 50.0
	defaultTasksTextMaxLength      = 500
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
	defaultLogRetentionDays        = 30
	defaultNotifyRequestTimeout    = 10
	defaultNotifySyncMinItems      = 1
	defaultConfigPathValue         = "~/.config/fieldsync/config.toml"
	apiURLEnv                      = "FIELDSYNC_API_URL"
	queueDatabaseName              = "queue.db"
	sessionFileName                = "session.json"
	lockFileName                   = "fieldsync.lock"
	socketFileName                 = "fieldsync.sock"
	pidFileName                    = "fieldsync.pid"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		API: API{
			BaseURL:        defaultAPIBaseURL,
			RequestTimeout: defaultAPIRequestTimeout,
		},
		Sync: Sync{
			Interval:            defaultSyncInterval,
			MaxAttempts:         defaultSyncMaxAttempts,
			ConnectivityTimeout: defaultSyncConnectivityTimeout,
			WatchNetwork:        defaultSyncWatchNetwork,
		},
		Proximity: Proximity{
			RadiusMeters: defaultProximityRadiusMeters,
		},
		Tasks: Tasks{
			TextMaxLength: defaultTasksTextMaxLength,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Sync:           true,
			DeadLetters:    true,
			SyncMinItems:   defaultNotifySyncMinItems,
		},
	}
}
