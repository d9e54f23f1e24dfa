package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Tyrowin/parley/internal/protocol"
	"github.com/Tyrowin/parley/internal/server"
	"github.com/Tyrowin/parley/pkg/client"
)

const expectedArgsMessage = "Expected arguments: server address and (optional) port."

// Slash commands understood by the prompt. Each maps onto one wire message.
var (
	joinCommand    = regexp.MustCompile(`^/join\s+(\S+)$`)
	leaveCommand   = regexp.MustCompile(`^/leave\s+(\S+)$`)
	roomsCommand   = regexp.MustCompile(`^/rooms$`)
	membersCommand = regexp.MustCompile(`^/members(?:\s+(\S+))?$`)
	sayCommand     = regexp.MustCompile(`^/say\s+(\S+)\s+(.+)$`)
	whisperCommand = regexp.MustCompile(`^/w\s+(\S+)\s+(.+)$`)
	quitCommand    = regexp.MustCompile(`(?i)^(?:/quit|/exit|quit|exit)$`)
)

var (
	noticeStyle  = lipgloss.NewStyle().Faint(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	whisperStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Italic(true)
	senderStyle  = lipgloss.NewStyle().Bold(true)
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	host, port, err := parseArgs(os.Args[1:])
	if err != nil {
		return err
	}

	c, err := client.Dial(host, port)
	if err != nil {
		return err
	}
	defer c.Close()

	name, err := promptDisplayName()
	if err != nil {
		return err
	}
	if err := c.Greet(name); err != nil {
		var declined *client.DeclinedError
		if errors.As(err, &declined) {
			return errors.New(declined.Reason)
		}
		return err
	}
	fmt.Printf("Connected as %s.\n", name)

	go listen(c)
	prompt(c)
	return nil
}

func parseArgs(args []string) (string, int, error) {
	switch len(args) {
	case 0:
		return "", 0, errors.New(expectedArgsMessage)
	case 1:
		return args[0], protocol.DefaultPort, nil
	case 2:
		port, err := server.ParsePort(args[1])
		if err != nil {
			return "", 0, err
		}
		return args[0], port, nil
	default:
		return "", 0, errors.New("Too many arguments. " + expectedArgsMessage)
	}
}

func promptDisplayName() (string, error) {
	fmt.Print("Display name: ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", errors.New(expectedArgsMessage)
	}
	return strings.TrimSpace(line), nil
}

// listen renders every inbound message as a line of output. A broken
// connection is terminal for the whole program.
func listen(c *client.Client) {
	for {
		msg, err := c.Receive()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Connection lost.")
			os.Exit(1)
		}
		render(msg)
	}
}

func render(msg protocol.Message) {
	switch m := msg.(type) {
	case *protocol.Said:
		sender := senderStyle.Render(m.Sender)
		if m.Room == "" {
			fmt.Printf("%s: %s\n", sender, m.Message)
		} else {
			fmt.Printf("[%s] %s: %s\n", m.Room, sender, m.Message)
		}
	case *protocol.Whispered:
		fmt.Println(whisperStyle.Render(fmt.Sprintf("%s whispers: %s", m.From, m.Message)))
	case *protocol.Notice:
		fmt.Println(noticeStyle.Render(m.Message))
	case *protocol.Error:
		fmt.Println(errorStyle.Render(m.Message))
	case *protocol.Success:
		fmt.Println(successStyle.Render(m.Message))
	case *protocol.RoomList:
		if len(m.Rooms) == 0 {
			fmt.Println("No rooms.")
		} else {
			fmt.Println("Rooms: " + strings.Join(m.Rooms, ", "))
		}
	case *protocol.RoomMemberList:
		if m.Room == "" {
			fmt.Println("Connected clients: " + strings.Join(m.Members, ", "))
		} else {
			fmt.Printf("Members of %s: %s\n", m.Room, strings.Join(m.Members, ", "))
		}
	}
}

// prompt reads stdin and translates each line into a wire message. Plain
// text is said to the default room.
func prompt(c *client.Client) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		var err error
		switch {
		case quitCommand.MatchString(input):
			_ = c.Disconnect()
			return
		case joinCommand.MatchString(input):
			err = c.Join(joinCommand.FindStringSubmatch(input)[1])
		case leaveCommand.MatchString(input):
			err = c.Leave(leaveCommand.FindStringSubmatch(input)[1])
		case roomsCommand.MatchString(input):
			err = c.RequestRoomList()
		case membersCommand.MatchString(input):
			err = c.RequestRoomMembers(membersCommand.FindStringSubmatch(input)[1])
		case sayCommand.MatchString(input):
			parts := sayCommand.FindStringSubmatch(input)
			err = c.Say(parts[1], parts[2])
		case whisperCommand.MatchString(input):
			parts := whisperCommand.FindStringSubmatch(input)
			err = c.Whisper(parts[1], parts[2])
		case strings.HasPrefix(input, "/"):
			fmt.Fprintln(os.Stderr, "Unrecognized command.")
		default:
			err = c.Say("", input)
		}

		if err != nil {
			fmt.Fprintln(os.Stderr, "Connection lost.")
			os.Exit(1)
		}
	}
	_ = c.Disconnect()
}
