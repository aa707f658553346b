package config

import (
	"time"

	"github.com/papercomputeco/neolink/pkg/neo"
)

const (
	defaultAPIListen = ":8082"

	defaultHandshakeTimeout = 5 * time.Second
	defaultCreateTimeout    = 5 * time.Second
	defaultReplyTimeout     = 15 * time.Second
	defaultPollInterval     = 200 * time.Millisecond

	defaultStorageProvider = "file"
	defaultEventsProvider  = "nop"
	defaultEventsTopic     = "neolink.replies"
	defaultChunkLimit      = 4000
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Neo: NeoConfig{
			URL:    neo.DefaultURL,
			APIURL: neo.DefaultAPIURL,
		},
		Timeouts: TimeoutsConfig{
			Handshake:    Duration(defaultHandshakeTimeout),
			Create:       Duration(defaultCreateTimeout),
			Reply:        Duration(defaultReplyTimeout),
			PollInterval: Duration(defaultPollInterval),
		},
		Storage: StorageConfig{
			Provider: defaultStorageProvider,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
		Format: FormatConfig{
			ChunkLimit: defaultChunkLimit,
		},
	}
}
