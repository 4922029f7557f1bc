package cmd

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/mkoopman/gridbak/internal/api"
	"github.com/mkoopman/gridbak/internal/backup"
	"github.com/mkoopman/gridbak/internal/bundle"
	"github.com/mkoopman/gridbak/internal/logging"
	"github.com/mkoopman/gridbak/internal/retention"
	"github.com/mkoopman/gridbak/internal/runner"
	"github.com/mkoopman/gridbak/internal/snapshot"
)

// appFs is the filesystem all commands operate on.
var appFs = afero.NewOsFs()

func newLogger() zerolog.Logger {
	return logging.New(viper.GetBool("verbose"))
}

func newBackupManager(log zerolog.Logger) *backup.Manager {
	return backup.NewManager(appFs, runner.NewExecRunner(), GetConfig(), log)
}

// newAPIClient loads the operator credentials and builds the API client.
// Missing or malformed credentials are an authentication error; the calling
// operation aborts.
func newAPIClient(log zerolog.Logger) (*api.Client, error) {
	cfg := GetConfig()
	creds, err := api.LoadCredentials(appFs, cfg.API.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	timeout := time.Duration(cfg.API.RequestTimeoutSeconds) * time.Second
	return api.NewClient(cfg.API.BaseURL, creds, timeout, log), nil
}

func newBundleManager(log zerolog.Logger) (*bundle.Manager, error) {
	client, err := newAPIClient(log)
	if err != nil {
		return nil, err
	}
	return bundle.NewManager(appFs, runner.NewExecRunner(), client, GetConfig(), log), nil
}

func newOrchestrator(log zerolog.Logger) (*snapshot.Orchestrator, error) {
	cfg := GetConfig()
	client, err := newAPIClient(log)
	if err != nil {
		return nil, err
	}
	retry := api.RetryPolicy{
		Interval:    time.Duration(cfg.Snapshot.RetryWaitSeconds) * time.Second,
		MaxAttempts: cfg.Snapshot.MaxAttempts,
	}
	settle := time.Duration(cfg.Snapshot.SettleSeconds) * time.Second
	return snapshot.New(client, retentionPolicy(), retry, settle, cfg.Snapshot.NamePrefix, log), nil
}

func retentionPolicy() retention.Policy {
	cfg := GetConfig()
	return retention.Policy{
		DailyWindowDays:  cfg.Retention.DailyWindowDays,
		MonthlyAnchorDay: cfg.Retention.MonthlyAnchorDay,
	}
}
