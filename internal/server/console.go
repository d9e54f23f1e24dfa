package server

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

const consolePrompt = "server> "

// Console is the operator's administrative input loop. It runs beside the
// accept loop as an independent task and coordinates with it only through
// the shared registry and the stop callback.
type Console struct {
	reg  *Registry
	in   io.Reader
	out  io.Writer
	stop func()
}

// NewConsole creates a console over the given input and output streams.
// stop is invoked when the operator asks the server to quit.
func NewConsole(reg *Registry, in io.Reader, out io.Writer, stop func()) *Console {
	return &Console{reg: reg, in: in, out: out, stop: stop}
}

// Run reads operator commands until quit/exit or end of input. It blocks
// and is meant to be called in its own goroutine.
func (con *Console) Run() {
	scanner := bufio.NewScanner(con.in)
	fmt.Fprint(con.out, consolePrompt)

	for scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(input) {
		case "quit", "exit":
			con.stop()
			return
		case "rooms":
			rooms := con.reg.ListRooms()
			if len(rooms) == 0 {
				fmt.Fprintln(con.out, "No rooms.")
			} else {
				fmt.Fprintln(con.out, strings.Join(rooms, "\n"))
			}
		case "clients":
			clients, _ := con.reg.MembersOf("")
			if len(clients) == 0 {
				fmt.Fprintln(con.out, "No clients connected.")
			} else {
				fmt.Fprintln(con.out, strings.Join(clients, "\n"))
			}
		case "":
		default:
			fmt.Fprintln(con.out, "Unrecognized command.")
		}
		fmt.Fprint(con.out, consolePrompt)
	}
}
