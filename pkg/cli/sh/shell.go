package sh

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"strconv"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/subbus/pkg/env"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	AutoConnect bool

	Shell  *ishell.Shell
	Config *env.Config
	Conn   *env.Conn
}

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&ConnectCmd,
		&DisconnectCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeConnected wraps command func requires a connection.
func MustBeConnected(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Conn == nil {
			c.Err(fmt.Errorf("not connected"))
			return
		}
		fn(c)
	}
}

// RequestContext creates the context of one request.
func (s *Shell) RequestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.Config.Timeout)
}

// PrintWords prints register values.
func (s *Shell) PrintWords(c *ishell.Context, vals []uint16) {
	if s.OutputJSON {
		if vals == nil {
			vals = []uint16{}
		}
		out, err := json.Marshal(vals)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	for n, v := range vals {
		if n > 0 {
			c.Print(" ")
		}
		c.Printf("%04X", v)
	}
	c.Println()
}

// Connect connects the board number over the configured transport.
func (s *Shell) Connect(board uint) error {
	conf := *s.Config
	conf.Board = board
	conn, err := conf.Connect()
	if err != nil {
		return err
	}
	s.Disconnect()
	s.Conn = conn
	s.Shell.SetPrompt(fmt.Sprintf("board%d > ", board))
	return nil
}

// Disconnect disconnects current board.
func (s *Shell) Disconnect() {
	if s.Conn != nil {
		s.Conn.Close()
		s.Conn = nil
		s.Shell.SetPrompt(unconnectedPrompt)
	}
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.AutoConnect {
		if s.Interactive {
			s.Shell.Printf("Connecting board %d via %s ...\n", s.Config.Board, s.Config.TransportURL)
		}
		if err := s.Connect(s.Config.Board); err != nil {
			log.Fatalf("connect board %d failed: %v", s.Config.Board, err)
		}
	}

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var (
	// ConnectCmd connects a board.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "[BOARD]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			board := s.Config.Board
			if len(c.Args) > 0 {
				n, err := strconv.ParseUint(c.Args[0], 0, 8)
				if err != nil {
					c.Err(fmt.Errorf("Invalid BOARD: %v", err))
					return
				}
				board = uint(n)
			}
			if err := s.Connect(board); err != nil {
				c.Err(err)
			}
		},
	}

	// DisconnectCmd disconnects current board.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(env.Default()).WithAutoConnect(true).Run(flag.Args()...)
}

// WithAutoConnect sets AutoConnect.
func (s *Shell) WithAutoConnect(en bool) *Shell {
	s.AutoConnect = en
	return s
}
