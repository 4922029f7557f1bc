package types

// AppConfig represents the complete application configuration.
type AppConfig struct {
	Verbose   bool            `mapstructure:"verbose"`
	Config    string          `mapstructure:"config"`
	Project   ProjectConfig   `mapstructure:"project" validate:"required"`
	Compose   ComposeConfig   `mapstructure:"compose" validate:"required"`
	Datastore DatastoreConfig `mapstructure:"datastore" validate:"required"`
	API       APIConfig       `mapstructure:"api" validate:"required"`
	Retention RetentionConfig `mapstructure:"retention" validate:"required"`
	Snapshot  SnapshotConfig  `mapstructure:"snapshot" validate:"required"`
	Schedule  ScheduleConfig  `mapstructure:"schedule" validate:"omitempty"`
}

// ProjectConfig holds local state paths.
type ProjectConfig struct {
	// ArtifactDir is where backup dumps and export bundles end up.
	ArtifactDir string `mapstructure:"artifactDir" validate:"required"`
	// RebuildFlagFile is the one-shot rebuild-on-next-restart flag. Reading it
	// resets it to false; see backup.ConsumeRebuildFlag.
	RebuildFlagFile string `mapstructure:"rebuildFlagFile" validate:"required"`
}

// ComposeConfig describes the container stack the orchestrator drives.
type ComposeConfig struct {
	// Dir is the directory containing the compose project. Empty means cwd.
	Dir              string `mapstructure:"dir"`
	DatastoreService string `mapstructure:"datastoreService" validate:"required"`
	BackendService   string `mapstructure:"backendService" validate:"required"`
	// ManageCommand is the argv prefix for management commands executed inside
	// the backend service (export/import of application data).
	ManageCommand []string `mapstructure:"manageCommand" validate:"required,min=1"`
}

// DatastoreConfig identifies the database being dumped and restored.
type DatastoreConfig struct {
	Database string `mapstructure:"database" validate:"required"`
	User     string `mapstructure:"user" validate:"required"`
}

// APIConfig holds remote API connection settings.
type APIConfig struct {
	BaseURL         string `mapstructure:"baseURL" validate:"required,url"`
	CredentialsFile string `mapstructure:"credentialsFile" validate:"required"`
	// RequestTimeoutSeconds bounds every HTTP call so a hung server cannot
	// block an unattended run forever.
	RequestTimeoutSeconds int `mapstructure:"requestTimeoutSeconds" validate:"omitempty,min=1,max=600"`
}

// RetentionConfig holds the tiered retention policy settings.
type RetentionConfig struct {
	DailyWindowDays int `mapstructure:"dailyWindowDays" validate:"required,min=1"`
	// MonthlyAnchorDay is the calendar day spared from age-based deletion, once
	// per month. Fixed to the 1st in practice.
	MonthlyAnchorDay int `mapstructure:"monthlyAnchorDay" validate:"required,min=1,max=28"`
}

// SnapshotConfig holds snapshot orchestration settings.
type SnapshotConfig struct {
	NamePrefix       string `mapstructure:"namePrefix" validate:"required"`
	RetryWaitSeconds int    `mapstructure:"retryWaitSeconds" validate:"required,min=1"`
	SettleSeconds    int    `mapstructure:"settleSeconds" validate:"min=0"`
	// MaxAttempts caps the rate-limit retry loop. 0 keeps retrying until the
	// server accepts.
	MaxAttempts int `mapstructure:"maxAttempts" validate:"min=0"`
}

// ScheduleConfig holds optional cron expressions for the schedule subcommand.
type ScheduleConfig struct {
	Backup   string `mapstructure:"backup"`
	Snapshot string `mapstructure:"snapshot"`
	Clean    string `mapstructure:"clean"`
}
