// ABOUTME: Interactive prompts for coven-signin
// ABOUTME: Reads lines from the input stream and passwords from the terminal without echo

package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/term"
)

// prompt writes label to stderr and reads one trimmed line from the input stream.
func (a *app) prompt(label string) (string, error) {
	line, err := a.readLine(label)
	return strings.TrimSpace(line), err
}

// password reads a password with the terminal reader when one is attached,
// otherwise as a line from the input stream so scripts can pipe it in.
func (a *app) password(label string) (string, error) {
	if a.readPassword != nil {
		return a.readPassword(label)
	}
	line, err := a.readLine(label)
	return strings.TrimRight(line, "\r\n"), err
}

func (a *app) readLine(label string) (string, error) {
	fmt.Fprint(a.errOut, label)
	line, err := a.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return line, nil
}

// terminalPassword reads from the terminal fd with echo disabled.
func terminalPassword(fd int, promptOut io.Writer) func(string) (string, error) {
	return func(label string) (string, error) {
		fmt.Fprint(promptOut, label)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(promptOut)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}
