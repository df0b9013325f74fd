package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureFlags_Defaults(t *testing.T) {
	ff := LoadFeatureFlags()

	assert.True(t, ff.IsEnabled(FeatureRewardStreaks, ""))
	assert.True(t, ff.IsEnabled(FeatureRewardBadges, "user-1"))
	assert.False(t, ff.IsEnabled("no.such.feature", "user-1"))
}

func TestFeatureFlags_EnvOverride(t *testing.T) {
	t.Setenv("FEATURE_REWARD_BADGES", "false")

	ff := LoadFeatureFlags()

	assert.False(t, ff.IsEnabled(FeatureRewardBadges, "user-1"))
	assert.True(t, ff.IsEnabled(FeatureRewardStreaks, "user-1"))
}

func TestFeatureFlags_PercentRolloutIsSticky(t *testing.T) {
	ff := LoadFeatureFlags()
	require.NoError(t, ff.SetRolloutPercent(FeatureGradingAttemptFeedback, 50))

	first := ff.IsEnabled(FeatureGradingAttemptFeedback, "user-42")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ff.IsEnabled(FeatureGradingAttemptFeedback, "user-42"))
	}
}

func TestFeatureFlags_UserOverrideWins(t *testing.T) {
	ff := LoadFeatureFlags()
	require.NoError(t, ff.DisableFeature(FeatureRewardBadges))

	ff.SetUserOverride("user-1", FeatureRewardBadges, true)

	assert.True(t, ff.IsEnabled(FeatureRewardBadges, "user-1"))
	assert.False(t, ff.IsEnabled(FeatureRewardBadges, "user-2"))

	ff.ClearUserOverrides("user-1")
	assert.False(t, ff.IsEnabled(FeatureRewardBadges, "user-1"))
}

func TestFeatureFlags_SetRolloutPercentValidates(t *testing.T) {
	ff := LoadFeatureFlags()

	assert.ErrorIs(t, ff.SetRolloutPercent("no.such.feature", 10), ErrFeatureNotFound)
	assert.ErrorIs(t, ff.SetRolloutPercent(FeatureRewardBadges, 101), ErrInvalidRolloutPercent)
}

func TestConfig_ValidateProductionRequirements(t *testing.T) {
	cfg := &Config{
		App:  AppConfig{Environment: EnvProduction},
		HTTP: HTTPConfig{Port: 8080},
		Scheduler: SchedulerConfig{
			ReconcileHour:   3,
			ReconcileMinute: 30,
		},
	}

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, err.Error(), "AUTH_JWT_SECRET")
}

func TestConfig_ValidateRanges(t *testing.T) {
	cfg := &Config{
		App:       AppConfig{Environment: EnvDevelopment},
		HTTP:      HTTPConfig{Port: 0},
		Scheduler: SchedulerConfig{ReconcileHour: 25},
	}

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "SCHEDULER_RECONCILE_HOUR")
	assert.Contains(t, err.Error(), "HTTP_PORT")
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, EnvDevelopment, cfg.App.Environment)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 3, cfg.Scheduler.ReconcileHour)
	assert.True(t, cfg.Scheduler.Enabled)
}
