// Package cli implements the interactive command-line console for
// oscbridge: inspecting the parameter cache and sending parameter
// updates by hand.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/oscbridge-project/oscbridge/internal/client"
)

// CLI provides an interactive command-line interface.
type CLI struct {
	osc *client.Client
}

// NewCLI creates a new CLI handler.
func NewCLI(osc *client.Client) *CLI {
	return &CLI{osc: osc}
}

// Start begins the interactive CLI loop. It returns when the context is
// cancelled or stdin reaches EOF.
func (c *CLI) Start(ctx context.Context) {
	fmt.Println("\noscbridge console ready. Type 'help' for available commands.")

	reader := bufio.NewReader(os.Stdin)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		fmt.Print("oscbridge> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return
			}
			continue
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		if cmd == "quit" || cmd == "exit" {
			return
		}
		if err := c.execute(cmd, args); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	}
}

func (c *CLI) execute(cmd string, args []string) error {
	switch cmd {
	case "help":
		c.printHelp()
	case "params":
		c.printParams()
	case "get":
		return c.cmdGet(args)
	case "set":
		return c.cmdSet(args)
	case "avatar":
		c.printAvatar()
	default:
		return fmt.Errorf("unknown command %q, type 'help'", cmd)
	}
	return nil
}

func (c *CLI) printHelp() {
	fmt.Println(`Commands:
  params                     show all cached parameters
  get <name>                 show one cached parameter
  set <name> <type> <value>  send a parameter (type: float|int|bool)
  avatar                     show the current avatar id
  help                       show this help
  quit                       exit oscbridge`)
}

func (c *CLI) printParams() {
	snapshot := c.osc.GetAll()

	names := make([]string, 0, len(snapshot))
	for name := range snapshot {
		names = append(names, name)
	}
	sort.Strings(names)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Parameter", "Type", "Value"})
	for _, name := range names {
		v := snapshot[name]
		table.Append([]string{name, v.Kind().String(), v.String()})
	}
	table.Render()
	fmt.Printf("%d parameters cached\n", len(names))
}

func (c *CLI) cmdGet(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: get <name>")
	}
	name := args[0]

	if v, ok := c.osc.TryGetFloat(name); ok {
		fmt.Printf("%s = %g (float32)\n", name, v)
		return nil
	}
	if v, ok := c.osc.TryGetInt(name); ok {
		fmt.Printf("%s = %d (int32)\n", name, v)
		return nil
	}
	if v, ok := c.osc.TryGetBool(name); ok {
		fmt.Printf("%s = %t (bool)\n", name, v)
		return nil
	}
	return fmt.Errorf("parameter %q not cached", name)
}

func (c *CLI) cmdSet(args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: set <name> <type> <value>")
	}
	name, typ, raw := args[0], args[1], args[2]

	switch typ {
	case "float", "float32", "f":
		v, err := strconv.ParseFloat(raw, 32)
		if err != nil {
			return fmt.Errorf("invalid float %q: %w", raw, err)
		}
		return c.osc.SetFloat(name, float32(v))
	case "int", "int32", "i":
		v, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid int %q: %w", raw, err)
		}
		return c.osc.SetInt(name, v)
	case "bool", "b":
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid bool %q: %w", raw, err)
		}
		return c.osc.SetBool(name, v)
	default:
		return fmt.Errorf("unknown type %q (float|int|bool)", typ)
	}
}

func (c *CLI) printAvatar() {
	if id, ok := c.osc.Avatar(); ok {
		fmt.Printf("avatar: %s\n", id)
		return
	}
	fmt.Println("no avatar change received yet")
}
