package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/neolink/pkg/dotdir"
)

// EnvPrefix prefixes every environment variable override.
const EnvPrefix = "NEOLINK"

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the NEOLINK_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (NEOLINK_NEO_CHARACTER_ID, NEOLINK_API_LISTEN, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: NEOLINK_NEO_URL, NEOLINK_STORAGE_TARGET, etc.
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// FromViper materializes the effective configuration.
func FromViper(v *viper.Viper) *Config {
	greet := v.GetBool("neo.with_greeting")

	brokers := []string{}
	for _, b := range v.GetStringSlice("events.brokers") {
		brokers = append(brokers, splitList(b)...)
	}

	return &Config{
		Version: v.GetInt("version"),
		Neo: NeoConfig{
			URL:          v.GetString("neo.url"),
			APIURL:       v.GetString("neo.api_url"),
			CharacterID:  v.GetString("neo.character_id"),
			CreatorID:    v.GetString("neo.creator_id"),
			WithGreeting: &greet,
		},
		Timeouts: TimeoutsConfig{
			Handshake:    Duration(v.GetDuration("timeouts.handshake")),
			Create:       Duration(v.GetDuration("timeouts.create")),
			Reply:        Duration(v.GetDuration("timeouts.reply")),
			PollInterval: Duration(v.GetDuration("timeouts.poll_interval")),
		},
		Storage: StorageConfig{
			Provider: v.GetString("storage.provider"),
			Target:   v.GetString("storage.target"),
		},
		API: APIConfig{
			Listen: v.GetString("api.listen"),
		},
		Events: EventsConfig{
			Provider: v.GetString("events.provider"),
			Brokers:  brokers,
			Topic:    v.GetString("events.topic"),
		},
		Format: FormatConfig{
			NarratorPrefix: v.GetString("format.narrator_prefix"),
			ChunkLimit:     v.GetInt("format.chunk_limit"),
		},
	}
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Neo
	v.SetDefault("neo.url", d.Neo.URL)
	v.SetDefault("neo.api_url", d.Neo.APIURL)
	v.SetDefault("neo.character_id", d.Neo.CharacterID)
	v.SetDefault("neo.creator_id", d.Neo.CreatorID)
	v.SetDefault("neo.with_greeting", d.Neo.Greeting())

	// Timeouts
	v.SetDefault("timeouts.handshake", d.Timeouts.Handshake.Std())
	v.SetDefault("timeouts.create", d.Timeouts.Create.Std())
	v.SetDefault("timeouts.reply", d.Timeouts.Reply.Std())
	v.SetDefault("timeouts.poll_interval", d.Timeouts.PollInterval.Std())

	// Storage
	v.SetDefault("storage.provider", d.Storage.Provider)
	v.SetDefault("storage.target", d.Storage.Target)

	// API
	v.SetDefault("api.listen", d.API.Listen)

	// Events
	v.SetDefault("events.provider", d.Events.Provider)
	v.SetDefault("events.brokers", d.Events.Brokers)
	v.SetDefault("events.topic", d.Events.Topic)

	// Format
	v.SetDefault("format.narrator_prefix", d.Format.NarratorPrefix)
	v.SetDefault("format.chunk_limit", d.Format.ChunkLimit)
}
