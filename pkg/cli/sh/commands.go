package sh

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/subbus/pkg/board"
	"github.com/robotalks/subbus/pkg/cancomm"
)

func parseArgs(names []string, args []string, bits int) ([]uint64, error) {
	if len(args) < len(names) {
		return nil, fmt.Errorf("%s required", names[len(args)])
	}
	vals := make([]uint64, len(args))
	for n, arg := range args {
		val, err := strconv.ParseUint(arg, 0, bits)
		if err != nil {
			name := "argument"
			if n < len(names) {
				name = names[n]
			} else if len(names) > 0 {
				name = names[len(names)-1]
			}
			return nil, fmt.Errorf("Invalid %s: %v", name, err)
		}
		vals[n] = val
	}
	return vals, nil
}

func bytesOf(vals []uint64) []byte {
	out := make([]byte, len(vals))
	for n, v := range vals {
		out[n] = byte(v)
	}
	return out
}

func wordsOf(vals []uint64) []uint16 {
	out := make([]uint16, len(vals))
	for n, v := range vals {
		out[n] = uint16(v)
	}
	return out
}

// readCmd creates a command printing the words read by fn.
func readCmd(name string, aliases []string, params []string, fn func(c *cancomm.Client, s *Shell, args []uint64) ([]uint16, error)) ishell.Cmd {
	help := ""
	for n, p := range params {
		if n > 0 {
			help += " "
		}
		help += p
	}
	return ishell.Cmd{
		Name:    name,
		Aliases: aliases,
		Help:    help,
		Func: MustBeConnected(func(c *ishell.Context) {
			args, err := parseArgs(params, c.Args, 8)
			if err != nil {
				c.Err(err)
				return
			}
			s := ShellFrom(c)
			vals, err := fn(s.Conn.Client, s, args)
			if err != nil {
				c.Err(err)
				return
			}
			s.PrintWords(c, vals)
		}),
	}
}

func writeCmd(name string, aliases []string, noinc bool) ishell.Cmd {
	return ishell.Cmd{
		Name:    name,
		Aliases: aliases,
		Help:    "ADDR VALUE...",
		Func: MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("ADDR and VALUE required"))
				return
			}
			addr, err := parseArgs([]string{"ADDR"}, c.Args[:1], 8)
			if err != nil {
				c.Err(err)
				return
			}
			vals, err := parseArgs([]string{"VALUE"}, c.Args[1:], 16)
			if err != nil {
				c.Err(err)
				return
			}
			s := ShellFrom(c)
			ctx, cancel := s.RequestContext()
			defer cancel()
			if noinc {
				err = s.Conn.Client.WriteNoInc(ctx, byte(addr[0]), wordsOf(vals)...)
			} else {
				err = s.Conn.Client.WriteInc(ctx, byte(addr[0]), wordsOf(vals)...)
			}
			if err != nil {
				c.Err(err)
				return
			}
			c.Println("OK")
		}),
	}
}

var (
	// ReadCmd reads a list of addresses.
	ReadCmd = readCmd("read", []string{"r"}, []string{"ADDR..."},
		func(c *cancomm.Client, s *Shell, args []uint64) ([]uint16, error) {
			ctx, cancel := s.RequestContext()
			defer cancel()
			return c.ReadList(ctx, bytesOf(args)...)
		})

	// ReadIncCmd reads consecutive addresses.
	ReadIncCmd = readCmd("readinc", []string{"ri"}, []string{"COUNT", "ADDR"},
		func(c *cancomm.Client, s *Shell, args []uint64) ([]uint16, error) {
			ctx, cancel := s.RequestContext()
			defer cancel()
			return c.ReadInc(ctx, byte(args[0]), byte(args[1]))
		})

	// ReadRepCmd reads the same address repeatedly.
	ReadRepCmd = readCmd("readrep", []string{"rr"}, []string{"COUNT", "ADDR"},
		func(c *cancomm.Client, s *Shell, args []uint64) ([]uint16, error) {
			ctx, cancel := s.RequestContext()
			defer cancel()
			return c.ReadNoInc(ctx, byte(args[0]), byte(args[1]))
		})

	// ReadFIFOCmd drains a FIFO with a count register.
	ReadFIFOCmd = readCmd("readfifo", []string{"rf"}, []string{"MAX", "COUNT_ADDR", "ADDR"},
		func(c *cancomm.Client, s *Shell, args []uint64) ([]uint16, error) {
			ctx, cancel := s.RequestContext()
			defer cancel()
			return c.ReadCountNoInc(ctx, byte(args[0]), byte(args[1]), byte(args[2]))
		})

	// ErrorsCmd reads the CAN error registers, clearing them.
	ErrorsCmd = readCmd("errors", nil, nil,
		func(c *cancomm.Client, s *Shell, args []uint64) ([]uint16, error) {
			ctx, cancel := s.RequestContext()
			defer cancel()
			return c.ReadInc(ctx, 2, byte(cancomm.CANErr0Addr))
		})

	// WriteCmd writes consecutive addresses.
	WriteCmd = writeCmd("write", []string{"w"}, false)

	// WriteRepCmd writes the same address repeatedly.
	WriteRepCmd = writeCmd("writerep", []string{"wr"}, true)

	// DescCmd prints the board description.
	DescCmd = ishell.Cmd{
		Name: "desc",
		Help: "",
		Func: MustBeConnected(func(c *ishell.Context) {
			s := ShellFrom(c)
			ctx, cancel := s.RequestContext()
			defer cancel()
			desc, err := ReadDescription(ctx, s.Conn.Client)
			if err != nil {
				c.Err(err)
				return
			}
			c.Println(desc)
		}),
	}

	// BoardCmd sends a command to the command register.
	BoardCmd = ishell.Cmd{
		Name:    "cmd",
		Aliases: []string{"command"},
		Help:    "CODE",
		Func: MustBeConnected(func(c *ishell.Context) {
			args, err := parseArgs([]string{"CODE"}, c.Args, 16)
			if err != nil {
				c.Err(err)
				return
			}
			s := ShellFrom(c)
			ctx, cancel := s.RequestContext()
			defer cancel()
			err = s.Conn.Client.WriteInc(ctx, byte(board.CmdAddr), uint16(args[0]))
			var perr *cancomm.ProtocolError
			if errors.As(err, &perr) {
				c.Err(fmt.Errorf("board rejected command: %v", perr))
				return
			}
			if err != nil {
				c.Err(err)
				return
			}
			c.Println("OK")
		}),
	}
)

func init() {
	AddCmds(
		&ReadCmd,
		&ReadIncCmd,
		&ReadRepCmd,
		&ReadFIFOCmd,
		&ErrorsCmd,
		&WriteCmd,
		&WriteRepCmd,
		&DescCmd,
		&BoardCmd,
	)
}
