// Package interactive provides the interactive console of ariabridge.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/aria-bridge/bridge-go/pkg/connection"
	"github.com/aria-bridge/bridge-go/pkg/wire"
)

// Client is the part of bridge.Client the console drives.
type Client interface {
	SendConsole(message string, level wire.Level) error
	SendError(message, stack string) error
	State() connection.State
	Buffered() int
	ClientID() string
	PeerProtocol() int
}

// Console reads commands and forwards them to the client.
type Console struct {
	client Client
	rl     *readline.Instance
	out    io.Writer
}

// New creates a console on the terminal.
func New(client Client) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "bridge> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("log", readline.PcItem("debug"), readline.PcItem("info"), readline.PcItem("warn"), readline.PcItem("error")),
			readline.PcItem("error"),
			readline.PcItem("status"),
			readline.PcItem("help"),
			readline.PcItem("quit"),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Console{client: client, rl: rl, out: rl.Stdout()}, nil
}

// NewWithWriter creates a console without a terminal. Commands are fed
// through Execute.
func NewWithWriter(client Client, out io.Writer) *Console {
	return &Console{client: client, out: out}
}

// Stdout returns a writer that coordinates with the prompt.
func (c *Console) Stdout() io.Writer {
	return c.out
}

// Run reads commands until quit, EOF or ctx is done.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	if c.rl == nil {
		return
	}
	defer c.rl.Close()

	c.printHelp()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}
		if quit := c.Execute(line); quit {
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}
	}
}

// Execute runs one command line and reports whether the console should exit.
func (c *Console) Execute(line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return false
	}

	cmd, rest, _ := strings.Cut(input, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(cmd) {
	case "help", "?":
		c.printHelp()
	case "log", "l":
		c.cmdLog(rest)
	case "error", "e":
		c.cmdError(rest)
	case "status", "s":
		c.cmdStatus()
	case "quit", "exit", "q":
		return true
	default:
		// Bare text is sent as an info console event.
		c.send(c.client.SendConsole(input, wire.LevelInfo))
	}
	return false
}

// cmdLog handles "log [level] <message>".
func (c *Console) cmdLog(args string) {
	if args == "" {
		fmt.Fprintln(c.out, "Usage: log [log|debug|info|warn|error] <message>")
		return
	}
	level := wire.LevelInfo
	first, rest, _ := strings.Cut(args, " ")
	if l, ok := parseLevel(first); ok && strings.TrimSpace(rest) != "" {
		level = l
		args = strings.TrimSpace(rest)
	}
	c.send(c.client.SendConsole(args, level))
}

// cmdError handles "error <message> [| stack]". A literal \n in the stack
// becomes a newline.
func (c *Console) cmdError(args string) {
	if args == "" {
		fmt.Fprintln(c.out, "Usage: error <message> [| stack]")
		return
	}
	message, stack, _ := strings.Cut(args, "|")
	stack = strings.ReplaceAll(strings.TrimSpace(stack), `\n`, "\n")
	c.send(c.client.SendError(strings.TrimSpace(message), stack))
}

func (c *Console) cmdStatus() {
	fmt.Fprintf(c.out, "State:     %s\n", c.client.State())
	fmt.Fprintf(c.out, "Buffered:  %d\n", c.client.Buffered())
	if id := c.client.ClientID(); id != "" {
		fmt.Fprintf(c.out, "Client ID: %s\n", id)
	}
	if p := c.client.PeerProtocol(); p != 0 {
		fmt.Fprintf(c.out, "Host protocol: %d\n", p)
	}
}

func (c *Console) send(err error) {
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	if c.client.State() != connection.StateConnected {
		fmt.Fprintf(c.out, "queued (%d buffered, %s)\n", c.client.Buffered(), c.client.State())
	}
}

func parseLevel(s string) (wire.Level, bool) {
	switch l := wire.Level(strings.ToLower(s)); l {
	case wire.LevelLog, wire.LevelDebug, wire.LevelInfo, wire.LevelWarn, wire.LevelError:
		return l, true
	}
	return "", false
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, `
Bridge Console Commands:
  log [level] <msg>   - Send a console event (level: log, debug, info, warn, error)
  error <msg> [| stk] - Send an error event with an optional stack
  status              - Show connection state and buffer depth
  help                - Show this help
  quit                - Stop the client and exit

  Any other text is sent as an info console event.`)
}
