package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/Triforcey/huion-keydial-mini-uinput/keybind"
	"github.com/Triforcey/huion-keydial-mini-uinput/keydial"
)

func init() {
	rootCmd.AddCommand(consoleCmd)
}

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Interactive shell against the running daemon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runConsole(controlClient(cfg))
	},
}

func filterCtrlZ(r rune) (rune, bool) {
	switch r {
	// block CtrlZ feature
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}

func runConsole(client *keybind.Client) error {
	l, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[1m[keydial]\033[m> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",

		FuncFilterInputRune: filterCtrlZ,
	})
	if err != nil {
		return err
	}
	defer l.Close()

	for {
		line, err := l.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				return nil
			}
			continue
		} else if err == io.EOF {
			return nil
		}

		argv := strings.Fields(line)
		if len(argv) == 0 {
			continue
		}
		meta := findConsoleCommand(argv[0])
		if meta.F == nil {
			fmt.Println("unknown command", argv[0])
			continue
		}
		if meta.quit {
			return nil
		}
		meta.F(client, argv[1:])
	}
}

type consoleCommand struct {
	F       func(*keybind.Client, []string)
	Aliases []string
	Help    string
	quit    bool
}

var consoleCommands []consoleCommand

func addConsoleCommand(F func(*keybind.Client, []string), help string, names ...string) struct{} {
	consoleCommands = append(consoleCommands, consoleCommand{
		F:       F,
		Help:    help,
		Aliases: names,
	})
	return struct{}{}
}

func findConsoleCommand(name string) consoleCommand {
	for _, v := range consoleCommands {
		for _, cName := range v.Aliases {
			if name == cName {
				return v
			}
		}
	}
	return consoleCommand{}
}

var _ = addConsoleCommand(conHelp, "Display this help text.", "help", "?")
var _ = addConsoleCommand(conList, "Show the daemon's live bindings.", "list", "ls", "bindings")
var _ = addConsoleCommand(conActions, "Show the bound ActionIDs.", "actions")
var _ = addConsoleCommand(conBind, "bind <action> <key[+key]> [sticky] - install a binding.", "bind")
var _ = addConsoleCommand(conUnbind, "unbind <action> - remove a binding.", "unbind", "rm")

func init() {
	consoleCommands = append(consoleCommands, consoleCommand{
		Aliases: []string{"exit", "quit", "q"},
		Help:    "Leave the console.",
		F:       func(*keybind.Client, []string) {},
		quit:    true,
	})
}

func conHelp(c *keybind.Client, argv []string) {
	fmt.Println("Commands:")
	for _, v := range consoleCommands {
		fmt.Printf("  %s - %s\n", v.Aliases[0], v.Help)
	}
}

func conList(c *keybind.Client, argv []string) {
	bindings, err := c.GetBindings()
	if err != nil {
		fmt.Println(err)
		return
	}
	ids := make([]string, 0, len(bindings))
	for id := range bindings {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)
	for _, id := range ids {
		a := bindings[keydial.ActionID(id)]
		suffix := ""
		if a.Sticky {
			suffix = "  [sticky]"
		}
		fmt.Printf("%-40s %s%s\n", id, strings.Join(a.Keys, "+"), suffix)
	}
}

func conActions(c *keybind.Client, argv []string) {
	actions, err := c.ListActions()
	if err != nil {
		fmt.Println(err)
		return
	}
	for _, id := range actions {
		fmt.Println(id)
	}
}

func conBind(c *keybind.Client, argv []string) {
	if len(argv) < 2 {
		fmt.Println("usage: bind <action> <key[+key]> [sticky]")
		return
	}
	keys, err := validateChord(argv[1])
	if err != nil {
		fmt.Println(err)
		return
	}
	action := keydial.Action{
		Type:   keydial.ActionKeyboard,
		Keys:   keys,
		Sticky: len(argv) > 2 && argv[2] == "sticky",
	}
	if err := c.SetBinding(argv[0], action); err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println("ok")
}

func conUnbind(c *keybind.Client, argv []string) {
	if len(argv) != 1 {
		fmt.Println("usage: unbind <action>")
		return
	}
	if err := c.RemoveBinding(argv[0]); err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println("ok")
}
