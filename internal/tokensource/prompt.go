package tokensource

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// TerminalPrompt returns an InputFunc that reads a token interactively from
// stdin. On a terminal the token is read without echo; otherwise a single
// line is consumed, so tokens can be piped in. The prompt itself goes to
// stderr to keep stdout clean for scripting.
func TerminalPrompt(prompt string) InputFunc {
	return func(ctx context.Context) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		fmt.Fprint(os.Stderr, prompt)

		fd := int(os.Stdin.Fd())
		if term.IsTerminal(fd) {
			raw, err := term.ReadPassword(fd)
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return "", fmt.Errorf("reading token from terminal: %w", err)
			}
			return string(raw), nil
		}

		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("reading token from stdin: %w", err)
		}
		// Strip the line terminator only; the token itself is not trimmed.
		return strings.TrimRight(line, "\r\n"), nil
	}
}
