package config

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --character
// on both "neolink ask" and "neolink chat").
type Flag struct {
	// Name is the long flag name (e.g. "character").
	Name string

	// Shorthand is the one-letter short flag (e.g. "c"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "neo.character_id").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddDurationFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagNeoURL         = "url"
	FlagCharacter      = "character"
	FlagCreator        = "creator"
	FlagReplyTimeout   = "reply-timeout"
	FlagCreateTimeout  = "create-timeout"
	FlagListen         = "listen"
	FlagStorage        = "storage"
	FlagStorageTarget  = "storage-target"
	FlagEventsProvider = "events"
	FlagNarrator       = "narrator"
)

// Flags is the registry shared by every neolink command.
var Flags = FlagSet{
	FlagNeoURL: {
		Name:        "url",
		ViperKey:    "neo.url",
		Description: "neo WebSocket endpoint",
	},
	FlagCharacter: {
		Name:        "character",
		Shorthand:   "c",
		ViperKey:    "neo.character_id",
		Description: "Character id to talk to",
	},
	FlagCreator: {
		Name:        "creator",
		ViperKey:    "neo.creator_id",
		Description: "Creator id used when the recent-chats lookup fails",
	},
	FlagReplyTimeout: {
		Name:        "reply-timeout",
		ViperKey:    "timeouts.reply",
		Description: "How long to wait for the character's reply",
	},
	FlagCreateTimeout: {
		Name:        "create-timeout",
		ViperKey:    "timeouts.create",
		Description: "How long to wait for chat creation to be acknowledged",
	},
	FlagListen: {
		Name:        "listen",
		Shorthand:   "l",
		ViperKey:    "api.listen",
		Description: "Address for the API server to listen on",
	},
	FlagStorage: {
		Name:        "storage",
		ViperKey:    "storage.provider",
		Description: "User state storage provider (memory, file, sqlite, postgres)",
	},
	FlagStorageTarget: {
		Name:        "storage-target",
		ViperKey:    "storage.target",
		Description: "Storage path or connection string",
	},
	FlagEventsProvider: {
		Name:        "events",
		ViperKey:    "events.provider",
		Description: "Reply event publisher (nop, kafka)",
	},
	FlagNarrator: {
		Name:        "narrator",
		ViperKey:    "format.narrator_prefix",
		Description: "Italicize reply lines starting with this prefix",
	},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddDurationFlag registers a duration flag on cmd from the given FlagSet.
func AddDurationFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *time.Duration) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultDuration(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().DurationVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().DurationVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultDuration returns the default duration for a viper key from NewDefaultConfig.
func defaultDuration(viperKey string) time.Duration {
	v := viper.New()
	setViperDefaults(v)
	return v.GetDuration(viperKey)
}
