// Command heysandbox is a small demonstration host around package sandbox:
// a REPL that opens one session, evaluates each line (or pasted block) the
// user enters, and prints the three-part result the way the teacher's own
// cmd/hey REPL prints a PHP expression's value. It exists to exercise the
// facade end to end, not as a production embedding example.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/urfave/cli/v3"

	"github.com/wudi/heysandbox/sandbox"
)

func main() {
	var timeoutSeconds float64
	var memoryLimitMB int64

	app := &cli.Command{
		Name:  "heysandbox",
		Usage: "embedded scripting sandbox REPL",
		Flags: []cli.Flag{
			&cli.FloatFlag{
				Name:        "timeout",
				Aliases:     []string{"t"},
				Usage:       "wall-clock timeout in seconds per eval (0 = unlimited)",
				Destination: &timeoutSeconds,
			},
			&cli.IntFlag{
				Name:        "memory-mb",
				Aliases:     []string{"m"},
				Usage:       "peak heap ceiling in megabytes per eval (0 = unlimited)",
				Destination: &memoryLimitMB,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			var memoryLimitBytes uint64
			if memoryLimitMB > 0 {
				memoryLimitBytes = uint64(memoryLimitMB) * 1024 * 1024
			}
			return runREPL(timeoutSeconds, memoryLimitBytes)
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "heysandbox:", err)
		os.Exit(1)
	}
}

func runREPL(timeoutSeconds float64, memoryLimitBytes uint64) error {
	session := sandbox.New(timeoutSeconds, memoryLimitBytes)
	defer session.Close()

	registerDemoTools(session)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "heysandbox> ",
		HistoryFile:     "",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("initializing readline: %w", err)
	}
	defer rl.Close()

	fmt.Println("heysandbox REPL. Ctrl-D to exit, `reset` to clear bindings.")

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt) {
				return nil
			}
			return err
		}

		trimmed := strings.TrimSpace(line)
		switch trimmed {
		case "":
			continue
		case "reset":
			if err := session.Reset(); err != nil {
				fmt.Fprintln(os.Stderr, "reset failed:", err)
			}
			continue
		case "exit", "quit":
			return nil
		}

		result, err := session.Eval(line)
		if result.Output != "" {
			fmt.Print(result.Output)
		}
		switch {
		case result.ErrorKind != sandbox.ErrorKindNone:
			fmt.Printf("%s (%s)\n", result.Error, result.ErrorKind)
		case err != nil:
			fmt.Println("error:", err)
		default:
			fmt.Println("=> " + result.Value)
		}
	}
}

// registerDemoTools wires a couple of illustrative host tools so the REPL
// has something to call beyond puts/print/p out of the box.
func registerDemoTools(session *sandbox.Session) {
	_ = session.DefineFunction("env")
	_ = session.DefineFunction("upcase")
	_ = session.SetCallback(func(name string, args []any) (any, error) {
		switch name {
		case "env":
			if len(args) != 1 {
				return nil, fmt.Errorf("env expects exactly one argument")
			}
			key, ok := args[0].(string)
			if !ok {
				return nil, fmt.Errorf("env expects a string argument")
			}
			return os.Getenv(key), nil
		case "upcase":
			if len(args) != 1 {
				return nil, fmt.Errorf("upcase expects exactly one argument")
			}
			s, ok := args[0].(string)
			if !ok {
				return nil, fmt.Errorf("upcase expects a string argument")
			}
			return strings.ToUpper(s), nil
		default:
			return nil, fmt.Errorf("unregistered tool: %s", name)
		}
	})
}
