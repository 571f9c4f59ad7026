package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// promptSecret reads a value without echoing it. Falls back to an error when
// the command runs non-interactively or stdin is not a terminal.
func promptSecret(rt *runtimeState, label string) (string, error) {
	if rt.nonInteractive {
		return "", fmt.Errorf("%s is required in non-interactive mode", label)
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("%s is required when stdin is not a terminal", label)
	}
	_, _ = fmt.Fprintf(rt.Writer(), "%s: ", label)
	value, err := term.ReadPassword(fd)
	_, _ = fmt.Fprintln(rt.Writer())
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", label, err)
	}
	if len(value) == 0 {
		return "", errors.New(label + " cannot be empty")
	}
	return string(value), nil
}

// promptLine reads a single echoed line, for values like one-time codes.
func promptLine(rt *runtimeState, label string) (string, error) {
	if rt.nonInteractive {
		return "", fmt.Errorf("%s is required in non-interactive mode", label)
	}
	_, _ = fmt.Fprintf(rt.Writer(), "%s: ", label)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", label, err)
	}
	value := strings.TrimSpace(line)
	if value == "" {
		return "", errors.New(label + " cannot be empty")
	}
	return value, nil
}
