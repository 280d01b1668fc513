package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/librescoot/tempfsm"
	"github.com/librescoot/tempfsm/alarm"
	"github.com/librescoot/tempfsm/graph"
)

// errQuit ends the daemon cleanly when the console user types q
var errQuit = errors.New("quit requested")

// lockedWriter serializes console output from the prompt and from timer
// driven transitions.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, format, args...)
}

// runREPL drives alarm a from console input until q, EOF or ctx cancellation
func runREPL(ctx context.Context, in io.Reader, out io.Writer, a *alarm.Alarm) error {
	console := &lockedWriter{w: out}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	unsubscribe := a.Machine().Subscribe(func(c tempfsm.Change) {
		console.printf("Transitioned from %s to %s via %s.\n", c.From, c.To, c.Command)
	})
	defer unsubscribe()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	console.printf("Alarm console. Type 'h' or 'help' for valid commands.\n")
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := handleLine(ctx, console, a, line); err != nil {
				return err
			}
		}
	}
}

func handleLine(ctx context.Context, console *lockedWriter, a *alarm.Alarm, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	switch fields[0] {
	case "q":
		console.printf("Exiting...\n")
		return errQuit
	case "fire":
		if len(fields) != 2 {
			console.printf("fire requires you to specify the command you want to fire.\n")
			return nil
		}
		cmd, ok := alarm.ParseCommand(fields[1])
		if !ok {
			console.printf("%s is not a valid alarm command.\n", fields[1])
			return nil
		}
		if _, err := a.Execute(ctx, cmd); err != nil {
			switch {
			case errors.Is(err, tempfsm.ErrUndefinedTransition), errors.Is(err, tempfsm.ErrNoMatchingGuard):
				console.printf("%s is not a valid command in state %s.\n", cmd, a.CurrentState())
			default:
				console.printf("%s failed: %v\n", cmd, err)
			}
		}
	case "canfire":
		for _, cmd := range a.PermittedCommands() {
			console.printf("%s\n", cmd)
		}
	case "state":
		console.printf("The current state is %s\n", a.CurrentState())
	case "graph":
		console.printf("%s\n", graph.Export(a.Machine(), graph.UmlDot{}))
	case "h", "help":
		console.printf("Valid commands:\n" +
			"q               - Exit\n" +
			"fire <command>  - Tries to fire the provided command\n" +
			"canfire         - Lists the commands valid in the current state\n" +
			"state           - Shows the current state\n" +
			"graph           - Prints the state machine as a DOT graph\n" +
			"h / help        - Show this again\n")
	default:
		console.printf("Invalid command. Type 'h' or 'help' for valid commands.\n")
	}
	return nil
}
