// Package configcmder provides the config command for managing persistent
// neolink configuration stored in the .neolink/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent neolink configuration.

Configuration is stored as config.toml in the .neolink/ directory and provides
default values for command flags. CLI flags and NEOLINK_* environment
variables always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  neo.url, neo.api_url, neo.character_id, neo.creator_id, neo.with_greeting,
  timeouts.handshake, timeouts.create, timeouts.reply, timeouts.poll_interval,
  storage.provider, storage.target, api.listen,
  events.provider, events.brokers, events.topic,
  format.narrator_prefix, format.chunk_limit

Use subcommands to get, set, or list configuration values:
  neolink config set <key> <value>    Set a configuration value
  neolink config get <key>            Get a configuration value
  neolink config list                 List all configuration values

Examples:
  neolink config set neo.character_id YntB_ZeqRq2l_aVf2gWDCZl4oBttQzDvhj9cXafWcF8
  neolink config set timeouts.reply 30s
  neolink config get neo.character_id
  neolink config list`

const configShortDesc string = "Manage persistent neolink configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
