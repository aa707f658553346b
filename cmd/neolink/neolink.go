// Package neolinkcmder is the root neolink command.
package neolinkcmder

import (
	"github.com/spf13/cobra"

	askcmder "github.com/papercomputeco/neolink/cmd/neolink/ask"
	authcmder "github.com/papercomputeco/neolink/cmd/neolink/auth"
	chatcmder "github.com/papercomputeco/neolink/cmd/neolink/chat"
	configcmder "github.com/papercomputeco/neolink/cmd/neolink/config"
	servecmder "github.com/papercomputeco/neolink/cmd/neolink/serve"
	versioncmder "github.com/papercomputeco/neolink/cmd/version"
)

const neolinkLongDesc string = `neolink talks to a neo chat character over its WebSocket protocol
and hands back each reply as a plain request/response.

Get started:
  neolink auth                               Store your neo token
  neolink config set neo.character_id <id>   Pick the character
  neolink ask "Hi!"                          Send one message
  neolink chat                               Chat interactively
  neolink serve                              Run the HTTP and MCP API`

const neolinkShortDesc string = "neolink - request/response bridge to neo chat characters"

func NewNeolinkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "neolink",
		Short:        neolinkShortDesc,
		Long:         neolinkLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .neolink/ config directory")

	// Add subcommands
	cmd.AddCommand(askcmder.NewAskCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
