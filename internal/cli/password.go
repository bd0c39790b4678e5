package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"
)

var (
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrPasswordEmpty    = errors.New("password cannot be empty")
)

// stdin is the single buffered reader shared across every readLine call in
// the process. bufio.Reader reads ahead of whatever line it's asked for, so
// a piped two-line password (§6/S2) has its second line already sitting in
// the buffer by the time the first ReadString returns; constructing a fresh
// reader per call would discard that read-ahead and block on EOF.
var stdin = bufio.NewReader(os.Stdin)

// isTerminal returns true if stdin is a terminal (not piped/redirected).
func isTerminal() bool {
	return term.IsTerminal(int(syscall.Stdin))
}

// readLine reads one line from stdin, stripping the trailing LF and any CR
// before it (§6: "trailing CR stripped").
func readLine(prompt string, hidden bool) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	if hidden && isTerminal() {
		pw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(pw), nil
	}

	line, err := stdin.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return line, nil
}

// PromptPassword asks for the password of region name, confirming it with a
// second identical line when confirm is true (the encrypt path, where a typo
// would silently lock the region), per §6's prompting contract. It is only
// invoked for names the driver needs a password for and that -k did not
// supply.
func PromptPassword(name string, confirm bool) (string, error) {
	first, err := readLine(fmt.Sprintf("Password for %q: ", name), true)
	if err != nil {
		return "", err
	}
	if first == "" {
		return "", ErrPasswordEmpty
	}
	if !confirm {
		return first, nil
	}
	second, err := readLine(fmt.Sprintf("Confirm password for %q: ", name), true)
	if err != nil {
		return "", err
	}
	if first != second {
		return "", ErrPasswordMismatch
	}
	return first, nil
}
