package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mkoopman/gridbak/types"
)

const (
	configName = ".gridbak"
	envPrefix  = "GRIDBAK"
)

// GlobalAppConfig holds the global application configuration instance.
var GlobalAppConfig types.AppConfig

// validate is a single validator instance; it caches struct info.
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// InitConfig reads in the config file and GRIDBAK_* environment variables.
func InitConfig() {
	viper.SetEnvPrefix(envPrefix)                          // e.g. GRIDBAK_VERBOSE
	viper.AutomaticEnv()                                   // read matching environment variables
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // project.artifactDir -> GRIDBAK_PROJECT_ARTIFACTDIR

	cfgFileFlag := viper.GetString("config")
	if cfgFileFlag != "" {
		viper.SetConfigFile(cfgFileFlag)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)
		viper.AddConfigPath(".")
		viper.AddConfigPath(home)
		viper.SetConfigName(configName)
	}

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	} else {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if cfgFileFlag != "" {
				fmt.Fprintln(os.Stderr, "Error: Specified config file not found:", cfgFileFlag)
				os.Exit(1)
			}
			// No config file is fine; defaults and env vars apply.
		} else {
			fmt.Fprintln(os.Stderr, "Error reading config file:", viper.ConfigFileUsed(), "-", err)
			os.Exit(1)
		}
	}

	setDefaults()

	if err := viper.Unmarshal(&GlobalAppConfig); err != nil {
		fmt.Fprintln(os.Stderr, "Error unmarshalling config:", err)
		os.Exit(1)
	}
	if err := validate.Struct(&GlobalAppConfig); err != nil {
		fmt.Fprintln(os.Stderr, "Invalid configuration:", err)
		os.Exit(1)
	}
}

func setDefaults() {
	viper.SetDefault("project.artifactDir", "backups")
	viper.SetDefault("project.rebuildFlagFile", ".rebuild")

	viper.SetDefault("compose.dir", "")
	viper.SetDefault("compose.datastoreService", "db")
	viper.SetDefault("compose.backendService", "backend")
	viper.SetDefault("compose.manageCommand", []string{"python", "manage.py"})

	viper.SetDefault("datastore.database", "app")
	viper.SetDefault("datastore.user", "app")

	viper.SetDefault("api.baseURL", "http://localhost:8000/api")
	viper.SetDefault("api.credentialsFile", ".credentials")
	viper.SetDefault("api.requestTimeoutSeconds", 30)

	viper.SetDefault("retention.dailyWindowDays", 30)
	viper.SetDefault("retention.monthlyAnchorDay", 1)

	viper.SetDefault("snapshot.namePrefix", "daily-")
	viper.SetDefault("snapshot.retryWaitSeconds", 30)
	viper.SetDefault("snapshot.settleSeconds", 5)
	viper.SetDefault("snapshot.maxAttempts", 0)
}

// GetConfig returns the loaded application configuration.
func GetConfig() *types.AppConfig {
	return &GlobalAppConfig
}
