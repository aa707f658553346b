// Package chatcmder provides the chat command, an interactive conversation
// with the character.
package chatcmder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/papercomputeco/neolink/pkg/cliui"
	"github.com/papercomputeco/neolink/pkg/client"
	clientutils "github.com/papercomputeco/neolink/pkg/client/utils"
	"github.com/papercomputeco/neolink/pkg/config"
	"github.com/papercomputeco/neolink/pkg/credentials"
	"github.com/papercomputeco/neolink/pkg/dotdir"
	"github.com/papercomputeco/neolink/pkg/logger"
)

type chatCommander struct {
	flags chatFlags

	configDir string
	debug     bool
	newChat   bool
	raw       bool

	viper  *viper.Viper
	in     io.Reader
	out    io.Writer
	errOut io.Writer
	logger *zap.Logger
}

type chatFlags struct {
	url           string
	character     string
	creator       string
	replyTimeout  time.Duration
	createTimeout time.Duration
}

var chatFlagKeys = []string{
	config.FlagNeoURL,
	config.FlagCharacter,
	config.FlagCreator,
	config.FlagReplyTimeout,
	config.FlagCreateTimeout,
}

const (
	cmdExit    = "/exit"
	cmdNew     = "/new"
	cmdSession = "/session"
)

const chatLongDesc string = `Start an interactive chat with the character.

Each line you enter is sent as one message and the reply is printed when it
arrives. The chat saved by the previous ask or chat is continued unless --new
is given.

Commands:
  /new       Start a new chat
  /session   Print the current chat id
  /exit      Quit (or Ctrl+D)

Examples:
  neolink chat
  neolink chat --new -c <character_id>`

const chatShortDesc string = "Interactive chat with the character"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, chatFlagKeys)
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.debug, _ = cmd.Flags().GetBool("debug")
			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()
			cmder.errOut = cmd.ErrOrStderr()

			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagNeoURL, &cmder.flags.url)
	config.AddStringFlag(cmd, config.Flags, config.FlagCharacter, &cmder.flags.character)
	config.AddStringFlag(cmd, config.Flags, config.FlagCreator, &cmder.flags.creator)
	config.AddDurationFlag(cmd, config.Flags, config.FlagReplyTimeout, &cmder.flags.replyTimeout)
	config.AddDurationFlag(cmd, config.Flags, config.FlagCreateTimeout, &cmder.flags.createTimeout)

	cmd.Flags().BoolVar(&cmder.newChat, "new", false, "Start a new chat")
	cmd.Flags().BoolVar(&cmder.raw, "raw", false, "Print replies without formatting")

	return cmd
}

func (c *chatCommander) run() error {
	c.logger = logger.NewLoggerWithWriters(c.debug, c.errOut)
	defer func() { _ = c.logger.Sync() }()

	cfg := config.FromViper(c.viper)
	if err := cfg.Validate(); err != nil {
		return err
	}

	creds, err := credentials.NewManager(c.configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}
	token, err := creds.Token()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cl, err := clientutils.NewClient(ctx, &clientutils.NewClientOpts{
		Config: cfg,
		Token:  token,
		Logger: c.logger,
	})
	if err != nil {
		return err
	}

	ddm := dotdir.NewManager()
	sessionID := ""
	if !c.newChat {
		saved, err := ddm.LoadSession(c.configDir)
		if err != nil {
			c.logger.Warn("ignoring saved session", zap.Error(err))
		}
		if saved != nil && saved.CharacterID == cfg.Neo.CharacterID {
			sessionID = saved.ChatID
		}
	}

	fmt.Fprintln(c.out)
	if sessionID != "" {
		fmt.Fprintf(c.out, "  %s Continuing chat %s\n", cliui.SuccessMark, cliui.DimStyle.Render(sessionID))
	} else {
		fmt.Fprintf(c.out, "  %s New chat\n", cliui.DimStyle.Render("●"))
	}
	fmt.Fprintf(c.out, "  %s %s\n\n", cliui.KeyStyle.Render("Character:"), cliui.NameStyle.Render(cfg.Neo.CharacterID))
	fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /new starts over, /exit or Ctrl+D quits."))

	scanner := bufio.NewScanner(c.in)
	for {
		fmt.Fprint(c.out, cliui.Label(cliui.YouStyle, "you")+" ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		switch input {
		case "":
			continue
		case cmdExit:
			fmt.Fprintln(c.out)
			return nil
		case cmdNew:
			sessionID = ""
			fmt.Fprintf(c.out, "  %s New chat\n\n", cliui.DimStyle.Render("●"))
			continue
		case cmdSession:
			fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render(orNone(sessionID)))
			continue
		}

		answer, err := c.ask(ctx, cl, input, sessionID)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(c.errOut, "  %s %v\n", cliui.FailMark, err)
			continue
		}
		sessionID = answer.SessionID

		if err := ddm.SaveSession(&dotdir.SessionState{
			ChatID:      sessionID,
			CharacterID: cfg.Neo.CharacterID,
			UpdatedAt:   time.Now().UTC(),
		}, c.configDir); err != nil {
			c.logger.Warn("could not save session", zap.Error(err))
		}

		fmt.Fprintf(c.out, "%s %s\n", cliui.Label(cliui.CharacterStyle, "character"), cliui.RenderReply(answer.Text, c.raw))
		if answer.NoResponse {
			fmt.Fprintf(c.out, "  %s\n", cliui.NoticeStyle.Render("The character did not answer in time."))
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(c.out)
	return nil
}

func (c *chatCommander) ask(ctx context.Context, cl *client.Client, text, sessionID string) (*client.Answer, error) {
	c.logger.Debug("sending chat message",
		zap.String("chat_id", sessionID),
		zap.Int("message_len", len(text)),
	)
	return cl.Ask(ctx, text, sessionID)
}

func orNone(id string) string {
	if id == "" {
		return "<no chat yet>"
	}
	return id
}
