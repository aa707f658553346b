// Package askcmder provides the ask command: one message in, one reply out.
package askcmder

import (
	"bufio"
	"context"
	"errors"
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
	"golang.org/x/term"

	"github.com/papercomputeco/neolink/pkg/cliui"
	"github.com/papercomputeco/neolink/pkg/client"
	clientutils "github.com/papercomputeco/neolink/pkg/client/utils"
	"github.com/papercomputeco/neolink/pkg/config"
	"github.com/papercomputeco/neolink/pkg/credentials"
	"github.com/papercomputeco/neolink/pkg/dotdir"
	"github.com/papercomputeco/neolink/pkg/logger"
)

type askCommander struct {
	flags askFlags

	configDir string
	debug     bool
	sessionID string
	newChat   bool
	resume    bool
	raw       bool

	viper  *viper.Viper
	in     io.Reader
	out    io.Writer
	errOut io.Writer
	logger *zap.Logger
}

// askFlags are the registry-backed flags, bound to viper in PreRunE.
type askFlags struct {
	url           string
	character     string
	creator       string
	replyTimeout  time.Duration
	createTimeout time.Duration
}

var askFlagKeys = []string{
	config.FlagNeoURL,
	config.FlagCharacter,
	config.FlagCreator,
	config.FlagReplyTimeout,
	config.FlagCreateTimeout,
}

const askLongDesc string = `Send one message to the character and print its reply.

The message is taken from the arguments, or from stdin when no arguments are
given. By default the chat saved by the previous ask or chat is continued;
the first ask creates a new chat.

Choosing the chat:
  --session <id>   Continue a specific chat
  --new            Start a new chat
  --resume         Continue your most recent chat with the character on neo

Examples:
  neolink ask "Hey, what are you up to?"
  neolink ask --new -c <character_id> "Hi"
  echo "Tell me a story" | neolink ask --raw`

const askShortDesc string = "Send a message and print the reply"

func NewAskCmd() *cobra.Command {
	cmder := &askCommander{}

	cmd := &cobra.Command{
		Use:   "ask [message]",
		Short: askShortDesc,
		Long:  askLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, askFlagKeys)
			cmder.viper = v

			selectors := 0
			for _, set := range []bool{cmder.sessionID != "", cmder.newChat, cmder.resume} {
				if set {
					selectors++
				}
			}
			if selectors > 1 {
				return errors.New("--session, --new and --resume are mutually exclusive")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.debug, _ = cmd.Flags().GetBool("debug")
			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()
			cmder.errOut = cmd.ErrOrStderr()

			return cmder.run(strings.Join(args, " "))
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagNeoURL, &cmder.flags.url)
	config.AddStringFlag(cmd, config.Flags, config.FlagCharacter, &cmder.flags.character)
	config.AddStringFlag(cmd, config.Flags, config.FlagCreator, &cmder.flags.creator)
	config.AddDurationFlag(cmd, config.Flags, config.FlagReplyTimeout, &cmder.flags.replyTimeout)
	config.AddDurationFlag(cmd, config.Flags, config.FlagCreateTimeout, &cmder.flags.createTimeout)

	cmd.Flags().StringVarP(&cmder.sessionID, "session", "s", "", "Chat id to continue")
	cmd.Flags().BoolVar(&cmder.newChat, "new", false, "Start a new chat")
	cmd.Flags().BoolVar(&cmder.resume, "resume", false, "Continue your most recent chat on neo")
	cmd.Flags().BoolVar(&cmder.raw, "raw", false, "Print the reply text without formatting")

	return cmd
}

func (c *askCommander) run(message string) error {
	c.logger = logger.NewLoggerWithWriters(c.debug, c.errOut)
	defer func() { _ = c.logger.Sync() }()

	message, err := c.message(message)
	if err != nil {
		return err
	}

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

	resolver := clientutils.NewResolver(cfg, token, c.logger)

	sessionID, err := c.chooseSession(ctx, cfg, func(ctx context.Context) (string, error) {
		recent, err := resolver.RecentChat(ctx)
		if err != nil {
			return "", err
		}
		return recent.ChatID, nil
	})
	if err != nil {
		return err
	}

	cl, err := clientutils.NewClient(ctx, &clientutils.NewClientOpts{
		Config:   cfg,
		Token:    token,
		Resolver: resolver,
		Logger:   c.logger,
	})
	if err != nil {
		return err
	}

	var answer *client.Answer
	ask := func() error {
		var askErr error
		answer, askErr = cl.Ask(ctx, message, sessionID)
		return askErr
	}

	if c.raw {
		err = ask()
	} else {
		err = cliui.Step(c.errOut, "Waiting for reply", ask)
	}
	if err != nil {
		return err
	}

	ddm := dotdir.NewManager()
	if err := ddm.SaveSession(&dotdir.SessionState{
		ChatID:      answer.SessionID,
		CharacterID: cfg.Neo.CharacterID,
		UpdatedAt:   time.Now().UTC(),
	}, c.configDir); err != nil {
		c.logger.Warn("could not save session", zap.Error(err))
	}

	c.logger.Debug("answer received",
		zap.String("chat_id", answer.SessionID),
		zap.Bool("new_session", answer.NewSession),
		zap.Bool("final", answer.Final),
		zap.Duration("duration", answer.Duration),
	)

	fmt.Fprint(c.out, cliui.RenderReply(answer.Text, c.raw))
	if c.raw && !strings.HasSuffix(answer.Text, "\n") {
		fmt.Fprintln(c.out)
	}

	if !c.raw {
		if answer.NoResponse {
			fmt.Fprintf(c.errOut, "  %s\n", cliui.NoticeStyle.Render("The character did not answer in time."))
		}
		fmt.Fprintf(c.errOut, "  %s %s\n",
			cliui.KeyStyle.Render("session:"),
			cliui.DimStyle.Render(answer.SessionID),
		)
	}

	return nil
}

// message returns the argument text, or stdin when there is none.
func (c *askCommander) message(arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if arg != "" {
		return arg, nil
	}

	if f, ok := c.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return "", errors.New("message required (pass it as an argument or on stdin)")
	}

	data, err := io.ReadAll(bufio.NewReader(c.in))
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}

	msg := strings.TrimSpace(string(data))
	if msg == "" {
		return "", errors.New("message cannot be empty")
	}
	return msg, nil
}

// chooseSession picks the chat to continue. An empty id starts a new chat.
func (c *askCommander) chooseSession(ctx context.Context, cfg *config.Config, recent func(context.Context) (string, error)) (string, error) {
	switch {
	case c.newChat:
		return "", nil

	case c.sessionID != "":
		return c.sessionID, nil

	case c.resume:
		id, err := recent(ctx)
		if err != nil {
			return "", fmt.Errorf("finding recent chat: %w", err)
		}
		return id, nil
	}

	saved, err := dotdir.NewManager().LoadSession(c.configDir)
	if err != nil {
		c.logger.Warn("ignoring saved session", zap.Error(err))
		return "", nil
	}
	if saved == nil || saved.CharacterID != cfg.Neo.CharacterID {
		return "", nil
	}
	return saved.ChatID, nil
}
