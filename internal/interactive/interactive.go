// Package interactive runs the prompt loop. Each entered line is split and
// dispatched through a freshly built command tree, so validation, resolution,
// and processing behave identically to one-shot mode and no flag state
// survives from one line to the next.
package interactive

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cita-toolkit/citactl/internal/history"
	"github.com/cita-toolkit/citactl/internal/schema"
)

type Session struct {
	newRoot func() *cobra.Command
	in      io.Reader
	out     io.Writer
	hist    *history.Store
	prompt  string
}

// New wires a session around a root factory. The factory must return a new
// command tree on every call; reusing a tree would let parsed flag values
// leak into the next invocation.
func New(newRoot func() *cobra.Command, in io.Reader, out io.Writer, hist *history.Store) *Session {
	return &Session{
		newRoot: newRoot,
		in:      in,
		out:     out,
		hist:    hist,
		prompt:  newRoot().Name() + "> ",
	}
}

func (s *Session) Run() error {
	scanner := bufio.NewScanner(s.in)
	for {
		fmt.Fprint(s.out, s.prompt)
		if !scanner.Scan() {
			fmt.Fprintln(s.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if s.hist != nil {
			_ = s.hist.Append(line)
		}

		switch line {
		case "exit", "quit":
			return nil
		case "help", "commands":
			for _, path := range schema.Flatten(s.newRoot()) {
				fmt.Fprintln(s.out, strings.Join(path, " "))
			}
			continue
		}

		args, err := SplitLine(line)
		if err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
			continue
		}
		if args[0] == "interactive" {
			fmt.Fprintln(s.out, "already in interactive mode")
			continue
		}

		root := s.newRoot()
		root.SetArgs(args)
		if err := root.Execute(); err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
	}
}

// SplitLine splits a command line on whitespace, honoring single and double
// quotes so quoted arguments (ABI JSON, for one) survive intact.
func SplitLine(line string) ([]string, error) {
	args := []string{}
	var current strings.Builder
	inArg := false
	var quote rune

	for _, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
				continue
			}
			current.WriteRune(r)
		case r == '\'' || r == '"':
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
		return nil, fmt.Errorf("unterminated quote in %q", line)
	}
	if inArg {
		args = append(args, current.String())
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("empty command line")
	}
	return args, nil
}
