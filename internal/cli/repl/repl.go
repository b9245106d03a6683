package repl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/yndnr/pixelflut-go/internal/cli/connection"
)

// maxEcho caps how much of a reply line is printed.
const maxEcho = 160

// Executor runs one protocol line. connection.Client implements it.
type Executor interface {
	Exec(line string) ([]string, error)
}

// REPL represents the Read-Eval-Print Loop.
type REPL struct {
	exec      Executor
	input     io.Reader
	output    io.Writer
	completer *Completer
	history   *History
}

// New creates a REPL reading from in and writing to out.
func New(exec Executor, in io.Reader, out io.Writer, history *History) *REPL {
	if history == nil {
		history = NewHistory("")
	}
	return &REPL{
		exec:      exec,
		input:     in,
		output:    out,
		completer: NewCompleter(),
		history:   history,
	}
}

// Run starts the REPL loop. It returns at EOF, on exit or quit, or when
// the connection fails.
func (r *REPL) Run() error {
	if err := r.history.Load(); err != nil {
		fmt.Fprintf(r.output, "warning: history not loaded: %v\n", err)
	}
	defer func() {
		if err := r.history.Save(); err != nil {
			fmt.Fprintf(r.output, "warning: history not saved: %v\n", err)
		}
	}()

	reader := bufio.NewReader(r.input)
	for {
		fmt.Fprint(r.output, "pixelflut> ")

		line, err := reader.ReadString('\n')
		if err == io.EOF && line == "" {
			fmt.Fprintln(r.output)
			return nil
		}
		if err != nil && err != io.EOF {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.history.Add(line)

		switch line {
		case "exit", "quit":
			return nil
		case "history":
			for i, entry := range r.history.Entries() {
				fmt.Fprintf(r.output, "%4d  %s\n", i+1, entry)
			}
			continue
		}

		if err := r.execute(line); err != nil {
			return err
		}
	}
}

// execute runs line and prints its replies. Only connection failures
// are returned; command errors are printed.
func (r *REPL) execute(line string) error {
	replies, err := r.exec.Exec(line)
	switch {
	case errors.Is(err, connection.ErrMalformed):
		fmt.Fprintf(r.output, "error: %v\n", err)
		word, _, _ := strings.Cut(line, " ")
		if hints := r.completer.Complete(word[:1]); len(hints) > 0 {
			fmt.Fprintf(r.output, "commands: %s\n", strings.Join(hints, ", "))
		}
		return nil
	case isTimeout(err):
		fmt.Fprintf(r.output, "error: %v\n", err)
		return nil
	case err != nil:
		return err
	}

	for _, reply := range replies {
		if len(reply) > maxEcho {
			reply = fmt.Sprintf("%s... (%d bytes)", reply[:maxEcho], len(reply))
		}
		fmt.Fprintln(r.output, reply)
	}
	return nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
