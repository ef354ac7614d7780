package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Quote-Bot/QuoteBot/quotebot"
	"github.com/bwmarrin/discordgo"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertLogLevel(t testing.TB, expected slog.Level, v any) {
	t.Helper()

	lvl, ok := v.(*slog.LevelVar)
	require.Truef(t, ok, "could not convert %#v (%T) to *slog.LevelVar", v, v)
	assert.Equal(t, expected, lvl.Level())
}

func TestLoadConfigFromEnvFile(t *testing.T) {
	// Save the original environment
	originalEnv := os.Environ()
	t.Cleanup(
		func() {
			os.Clearenv()
			for _, envVar := range originalEnv {
				parts := strings.SplitN(envVar, "=", 2)
				os.Setenv(parts[0], parts[1])
			}
		},
	)

	// Clear the environment before the test
	os.Clearenv()

	tmpdir := t.TempDir()

	// Set up the test environment file
	envFile := filepath.Join(tmpdir, "test.env")

	envContent := `
# General/database config

QB_DATABASE=/home/foo/quotebot.sqlite3
QB_DATABASE_TYPE=sqlite
QB_DATABASE_LOG_LEVEL=INFO
QB_DATABASE_SLOW_THRESHOLD=200ms
QB_LOG_LEVEL=INFO
QB_STARTUP_TIMEOUT=30s
QB_SHUTDOWN_TIMEOUT=60s

# Bot config

QB_PREFIX=!
QB_OWNER_IDS=100000000000000001 100000000000000002
QB_BOTLOG_WEBHOOK_URL=https://discord.com/api/webhooks/123/abc
QB_GUILD_SCAN_RATE=2.5
QB_CLONE_MESSAGE_INTERVAL=250ms

# Discord bot config

QB_DISCORD_TOKEN=your-discord-bot-token
QB_DISCORD_LOG_LEVEL=WARN
QB_DISCORD_DISCORDGO_LOG_LEVEL=WARN
QB_DISCORD_GATEWAY_INTENTS=3243773
QB_DISCORD_MESSAGE_CACHE_SIZE=2500

# API server

QB_API_ENABLED=true
QB_API_LISTEN=127.0.0.1:5000
QB_API_LISTEN_NETWORK=tcp
QB_API_LOG_LEVEL=DEBUG
QB_API_READ_TIMEOUT=5s
QB_API_READ_HEADER_TIMEOUT=5s
QB_API_WRITE_TIMEOUT=10s
QB_API_IDLE_TIMEOUT=30s
`

	err := os.WriteFile(envFile, []byte(envContent), 0644)
	assert.NoError(t, err)

	rootCmd.SetArgs([]string{fmt.Sprintf("--config=%s", envFile), "version"})
	require.NoError(t, rootCmd.Execute())

	assert.Equal(t, "/home/foo/quotebot.sqlite3", cfg.Database)
	assert.Equal(t, "/home/foo/quotebot.sqlite3", viper.GetString("database"))
	assert.Equal(t, "sqlite", viper.GetString("database_type"))

	assertLogLevel(t, slog.LevelInfo, viper.Get("database_log_level"))

	assert.Equal(t, 200*time.Millisecond, viper.GetDuration("database_slow_threshold"))
	assertLogLevel(t, slog.LevelInfo, viper.Get("log_level"))
	assert.Equal(t, 30*time.Second, viper.GetDuration("startup_timeout"))
	assert.Equal(t, 60*time.Second, viper.GetDuration("shutdown_timeout"))

	assert.Equal(t, "!", viper.GetString("prefix"))
	assert.Equal(
		t,
		[]string{"100000000000000001", "100000000000000002"},
		viper.GetStringSlice("owner_ids"),
	)
	assert.Equal(
		t,
		"https://discord.com/api/webhooks/123/abc",
		viper.GetString("botlog_webhook_url"),
	)
	assert.Equal(t, 2.5, viper.GetFloat64("guild_scan_rate"))
	assert.Equal(t, 250*time.Millisecond, viper.GetDuration("clone_message_interval"))

	assert.Equal(t, "your-discord-bot-token", viper.GetString("discord.token"))
	assertLogLevel(t, slog.LevelWarn, viper.Get("discord.log_level"))
	assertLogLevel(t, slog.LevelWarn, viper.Get("discord.discordgo_log_level"))
	assert.Equal(t, 3243773, viper.GetInt("discord.gateway_intents"))
	assert.Equal(t, 2500, viper.GetInt("discord.message_cache_size"))

	assert.True(t, viper.GetBool("api.enabled"))
	assert.Equal(t, "127.0.0.1:5000", viper.GetString("api.listen"))
	assert.Equal(t, "tcp", viper.GetString("api.listen_network"))
	assertLogLevel(t, slog.LevelDebug, viper.Get("api.log_level"))
	assert.Equal(t, slog.LevelDebug, cfg.API.LogLevel.Level())
	assert.Equal(t, 5*time.Second, viper.GetDuration("api.read_timeout"))
	assert.Equal(t, 5*time.Second, viper.GetDuration("api.read_header_timeout"))
	assert.Equal(t, 10*time.Second, viper.GetDuration("api.write_timeout"))
	assert.Equal(t, 30*time.Second, viper.GetDuration("api.idle_timeout"))

	// Unmarshal the configuration into a quotebot.Config struct
	var config quotebot.Config
	err = viper.Unmarshal(
		&config, viper.DecodeHook(
			mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				LevelToStringHookFunc(),
			),
		),
	)
	assert.NoError(t, err)

	// Verify some key fields in the Config struct
	assert.Equal(t, "/home/foo/quotebot.sqlite3", config.Database)
	assert.Equal(t, "sqlite", config.DatabaseType)
	assert.Equal(t, slog.LevelInfo, config.DatabaseLogLevel.Level())
	assert.Equal(t, 200*time.Millisecond, config.DatabaseSlowThreshold)
	assert.Equal(t, slog.LevelInfo, config.LogLevel.Level())
	assert.Equal(t, 30*time.Second, config.StartupTimeout)
	assert.Equal(t, 60*time.Second, config.ShutdownTimeout)

	assert.Equal(t, "!", config.Prefix)
	assert.Equal(
		t,
		[]string{"100000000000000001", "100000000000000002"},
		config.OwnerIDs,
	)
	assert.Equal(t, 2.5, config.GuildScanRate)
	assert.Equal(t, 250*time.Millisecond, config.CloneMessageInterval)

	assert.Equal(t, "your-discord-bot-token", config.Discord.Token)
	assert.Equal(t, slog.LevelWarn, config.Discord.LogLevel.Level())
	assert.Equal(t, slog.LevelWarn, config.Discord.DiscordGoLogLevel.Level())
	assert.Equal(t, discordgo.Intent(3243773), config.Discord.GatewayIntents)
	assert.Equal(t, 2500, config.Discord.MessageCacheSize)

	assert.True(t, config.API.Enabled)
	assert.Equal(t, "127.0.0.1:5000", config.API.Listen)
	assert.Equal(t, "tcp", config.API.ListenNetwork)
	assert.Equal(t, slog.LevelDebug, config.API.LogLevel.Level())
	assert.Equal(t, 5*time.Second, config.API.ReadTimeout)
	assert.Equal(t, 10*time.Second, config.API.WriteTimeout)

	require.NoError(t, config.Validate())
}
