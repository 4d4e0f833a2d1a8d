// ABOUTME: Entry point for coven-signin, the command line sign-in client
// ABOUTME: Dispatches login, forgot, logout, status and token subcommands

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/2389/coven-signin/internal/config"
)

const banner = `
  ___ _____   _____ _ __       ___(_) __ _ _ __ (_)_ __
 / __/ _ \ \ / / _ \ '_ \_____/ __| |/ _' | '_ \| | '_ \
| (_| (_) \ V /  __/ | | |_____\__ \ | (_| | | | | | | | |
 \___\___/ \_/ \___|_| |_|     |___/_|\__, |_| |_|_|_| |_|
                                      |___/
`

// streams are the process's standard streams. readPassword is set when stdin
// is a terminal.
type streams struct {
	in           io.Reader
	out          io.Writer
	errOut       io.Writer
	readPassword func(prompt string) (string, error)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	s := streams{
		in:     os.Stdin,
		out:    os.Stdout,
		errOut: os.Stderr,
	}
	if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
		s.readPassword = terminalPassword(fd, os.Stderr)
	}

	code := run(ctx, os.Args[1:], s)

	cancel()
	os.Exit(code)
}

// run executes one subcommand and returns the process exit code.
func run(ctx context.Context, args []string, s streams) int {
	if len(args) < 1 {
		printUsage(s.errOut)
		return 2
	}

	switch args[0] {
	case "help", "-h", "--help":
		printUsage(s.out)
		return 0
	case "login", "forgot", "logout", "status", "token":
	default:
		fmt.Fprintf(s.errOut, "Unknown command: %s\n\n", args[0])
		printUsage(s.errOut)
		return 2
	}

	cfg, err := config.LoadOrDefault(config.DefaultPath())
	if err != nil {
		fmt.Fprintln(s.errOut, color.RedString("Error: %v", err))
		return 1
	}

	a, err := newApp(cfg, s)
	if err != nil {
		fmt.Fprintln(s.errOut, color.RedString("Error: %v", err))
		return 1
	}
	defer a.Close()

	switch args[0] {
	case "login":
		err = a.cmdLogin(ctx, args[1:])
	case "forgot":
		err = a.cmdForgot(ctx, args[1:])
	case "logout":
		err = a.cmdLogout(ctx)
	case "status":
		err = a.cmdStatus(ctx)
	case "token":
		err = a.cmdToken(ctx)
	}

	if err != nil {
		if !errors.Is(err, errWorkflowFailed) {
			fmt.Fprintln(s.errOut, color.RedString("Error: %v", err))
		}
		return 1
	}
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, color.CyanString(banner))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: coven-signin <command> [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  login [--email EMAIL]  Sign in and store the access token")
	fmt.Fprintln(w, "  forgot <email>         Request a password reset email")
	fmt.Fprintln(w, "  logout                 Forget the stored access token")
	fmt.Fprintln(w, "  status                 Show the stored session and server health")
	fmt.Fprintln(w, "  token                  Print the stored access token")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  COVEN_SIGNIN_CONFIG    Path to config file (default: ~/.config/coven/signin.yaml)")
}
