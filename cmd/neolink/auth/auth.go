// Package authcmder provides the auth command for storing the neo token.
package authcmder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/neolink/pkg/cliui"
	"github.com/papercomputeco/neolink/pkg/credentials"
)

const authLongDesc string = `Store the neo access token.

The token is stored in credentials.toml in the .neolink/ directory with
owner-only permissions. It is sent as the HTTP_AUTHORIZATION cookie when
connecting to neo. The NEOLINK_TOKEN environment variable overrides the
stored token.

Examples:
  neolink auth                  Prompt for the token
  neolink auth --show           Show the stored token (masked)
  neolink auth --remove         Remove the stored token
  echo $TOKEN | neolink auth    Pipe the token from stdin`

const authShortDesc string = "Store the neo access token"

type authCommander struct {
	configDir string
	in        io.Reader
	out       io.Writer
}

func NewAuthCmd() *cobra.Command {
	var showFlag bool
	var removeFlag bool

	cmd := &cobra.Command{
		Use:   "auth",
		Short: authShortDesc,
		Long:  authLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cmder := &authCommander{
				configDir: configDir,
				in:        cmd.InOrStdin(),
				out:       cmd.OutOrStdout(),
			}

			switch {
			case showFlag:
				return cmder.runShow()
			case removeFlag:
				return cmder.runRemove()
			default:
				return cmder.runAuth()
			}
		},
	}

	cmd.Flags().BoolVar(&showFlag, "show", false, "Show the stored token, masked")
	cmd.Flags().BoolVar(&removeFlag, "remove", false, "Remove the stored token")

	return cmd
}

func (c *authCommander) runAuth() error {
	token, err := c.readToken()
	if err != nil {
		return err
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token cannot be empty")
	}

	mgr, err := credentials.NewManager(c.configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	if err := mgr.SetToken(token); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "\n  %s Stored neo token %s\n\n",
		cliui.SuccessMark,
		cliui.DimStyle.Render("("+mgr.GetTarget()+")"),
	)
	return nil
}

func (c *authCommander) runShow() error {
	mgr, err := credentials.NewManager(c.configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	token, err := mgr.Token()
	if errors.Is(err, credentials.ErrNoToken) {
		fmt.Fprintf(c.out, "\n  %s No stored token.\n", cliui.DimStyle.Render("●"))
		fmt.Fprintf(c.out, "  Use 'neolink auth' to store one.\n\n")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "\n  %s  %s\n\n", cliui.SuccessMark, cliui.NameStyle.Render(credentials.Mask(token)))
	return nil
}

func (c *authCommander) runRemove() error {
	mgr, err := credentials.NewManager(c.configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	if err := mgr.RemoveToken(); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "\n  %s Removed neo token.\n\n", cliui.SuccessMark)
	return nil
}

// readToken reads the token from stdin. A terminal gets a hidden prompt;
// anything else is read up to the first newline.
func (c *authCommander) readToken() (string, error) {
	if f, ok := c.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(c.out, "Enter neo token: ")

		tokenBytes, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(c.out)
		if err != nil {
			return "", fmt.Errorf("reading token: %w", err)
		}
		return string(tokenBytes), nil
	}

	scanner := bufio.NewScanner(c.in)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return "", errors.New("no input received on stdin")
}
