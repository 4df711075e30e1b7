package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
)

// shellCmd reads commands line by line. Every line, blank or not, counts as
// user activity for the session.
func (a *app) shellCmd(ctx context.Context) error {
	a.goLive(ctx)
	defer a.endLive()

	fmt.Fprintln(a.out, "pmctl shell. Type 'help' for commands, 'exit' to quit.")
	scanner := bufio.NewScanner(a.in)
	for {
		fmt.Fprint(a.out, "pmctl> ")
		if !scanner.Scan() {
			fmt.Fprintln(a.out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		if _, err := a.sessions.RecordActivity(); err != nil {
			a.lg.Warnw("record activity failed", "error", err)
		}

		args, err := splitLine(scanner.Text())
		if err != nil {
			fmt.Fprintf(a.out, "Error: %v\n", err)
			continue
		}
		if len(args) == 0 {
			continue
		}

		switch args[0] {
		case "exit", "quit":
			return nil
		case "shell":
			fmt.Fprintln(a.out, "Already in the shell.")
			continue
		}

		if err := a.run(ctx, args[0], args[1:]); err != nil && !errors.Is(err, errReported) {
			fmt.Fprintf(a.out, "Error: %v\n", err)
		}
	}
}

// splitLine splits on whitespace, keeping single- or double-quoted runs
// together.
func splitLine(line string) ([]string, error) {
	var (
		args    []string
		current strings.Builder
		quote   rune
		inArg   bool
	)
	for _, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			inArg = true
		case r == ' ' || r == '\t':
			if inArg {
				args = append(args, current.String())
				current.Reset()
				inArg = false
			}
		default:
			current.WriteRune(r)
			inArg = true
		}
	}
	if quote != 0 {
		return nil, errors.New("unterminated quote")
	}
	if inArg {
		args = append(args, current.String())
	}
	return args, nil
}
