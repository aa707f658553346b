package config

import (
	"fmt"
	"strconv"
	"time"
)

// Config represents the persistent neolink configuration stored as
// config.toml in the .neolink/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version  int            `toml:"version"`
	Neo      NeoConfig      `toml:"neo"`
	Timeouts TimeoutsConfig `toml:"timeouts"`
	Storage  StorageConfig  `toml:"storage"`
	API      APIConfig      `toml:"api"`
	Events   EventsConfig   `toml:"events"`
	Format   FormatConfig   `toml:"format"`
}

// NeoConfig holds the neo service endpoints and the character to talk to.
type NeoConfig struct {
	URL          string `toml:"url,omitempty"`
	APIURL       string `toml:"api_url,omitempty"`
	CharacterID  string `toml:"character_id,omitempty"`
	CreatorID    string `toml:"creator_id,omitempty"`
	WithGreeting *bool  `toml:"with_greeting,omitempty"`
}

// Greeting reports whether new chats ask for a greeting. Unset means true.
func (n NeoConfig) Greeting() bool {
	return n.WithGreeting == nil || *n.WithGreeting
}

// TimeoutsConfig holds the bounded waits as duration strings ("5s").
type TimeoutsConfig struct {
	Handshake    Duration `toml:"handshake,omitempty"`
	Create       Duration `toml:"create,omitempty"`
	Reply        Duration `toml:"reply,omitempty"`
	PollInterval Duration `toml:"poll_interval,omitempty"`
}

// StorageConfig selects the user state driver.
type StorageConfig struct {
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// EventsConfig selects the reply event publisher.
type EventsConfig struct {
	Provider string   `toml:"provider,omitempty"`
	Brokers  []string `toml:"brokers,omitempty"`
	Topic    string   `toml:"topic,omitempty"`
}

// FormatConfig controls how replies are rendered.
type FormatConfig struct {
	NarratorPrefix string `toml:"narrator_prefix,omitempty"`
	ChunkLimit     int    `toml:"chunk_limit,omitempty"`
}

// Duration is a time.Duration stored as a string in TOML.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	if d == 0 {
		return ""
	}
	return time.Duration(d).String()
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func durationKey(field func(c *Config) *Duration, name string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return field(c).String() },
		set: func(c *Config, v string) error {
			if err := field(c).UnmarshalText([]byte(v)); err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"neo.url": {
		get: func(c *Config) string { return c.Neo.URL },
		set: func(c *Config, v string) error { c.Neo.URL = v; return nil },
	},
	"neo.api_url": {
		get: func(c *Config) string { return c.Neo.APIURL },
		set: func(c *Config, v string) error { c.Neo.APIURL = v; return nil },
	},
	"neo.character_id": {
		get: func(c *Config) string { return c.Neo.CharacterID },
		set: func(c *Config, v string) error { c.Neo.CharacterID = v; return nil },
	},
	"neo.creator_id": {
		get: func(c *Config) string { return c.Neo.CreatorID },
		set: func(c *Config, v string) error { c.Neo.CreatorID = v; return nil },
	},
	"neo.with_greeting": {
		get: func(c *Config) string { return strconv.FormatBool(c.Neo.Greeting()) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for neo.with_greeting: %w", err)
			}
			c.Neo.WithGreeting = &b
			return nil
		},
	},
	"timeouts.handshake":     durationKey(func(c *Config) *Duration { return &c.Timeouts.Handshake }, "timeouts.handshake"),
	"timeouts.create":        durationKey(func(c *Config) *Duration { return &c.Timeouts.Create }, "timeouts.create"),
	"timeouts.reply":         durationKey(func(c *Config) *Duration { return &c.Timeouts.Reply }, "timeouts.reply"),
	"timeouts.poll_interval": durationKey(func(c *Config) *Duration { return &c.Timeouts.PollInterval }, "timeouts.poll_interval"),
	"storage.provider": {
		get: func(c *Config) string { return c.Storage.Provider },
		set: func(c *Config, v string) error { c.Storage.Provider = v; return nil },
	},
	"storage.target": {
		get: func(c *Config) string { return c.Storage.Target },
		set: func(c *Config, v string) error { c.Storage.Target = v; return nil },
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"events.provider": {
		get: func(c *Config) string { return c.Events.Provider },
		set: func(c *Config, v string) error { c.Events.Provider = v; return nil },
	},
	"events.brokers": {
		get: func(c *Config) string { return joinList(c.Events.Brokers) },
		set: func(c *Config, v string) error { c.Events.Brokers = splitList(v); return nil },
	},
	"events.topic": {
		get: func(c *Config) string { return c.Events.Topic },
		set: func(c *Config, v string) error { c.Events.Topic = v; return nil },
	},
	"format.narrator_prefix": {
		get: func(c *Config) string { return c.Format.NarratorPrefix },
		set: func(c *Config, v string) error { c.Format.NarratorPrefix = v; return nil },
	},
	"format.chunk_limit": {
		get: func(c *Config) string {
			if c.Format.ChunkLimit == 0 {
				return ""
			}
			return strconv.Itoa(c.Format.ChunkLimit)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return fmt.Errorf("invalid value for format.chunk_limit: %q", v)
			}
			c.Format.ChunkLimit = n
			return nil
		},
	},
}
