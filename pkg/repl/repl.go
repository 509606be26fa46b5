// Package repl drives a list through a numbered console menu.
// The first input line holds the initial values; after that every action is a menu number followed by its operands,
// all separated by whitespace. Failed actions are reported and leave the list untouched.
package repl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/nobletooth/twine/pkg/list"
)

// Menu actions.
const (
	actionInsertAtHead = iota + 1
	actionInsertAtTail
	actionInsertAtIndex
	actionDeleteAtHead
	actionDeleteAtTail
	actionDeleteAtIndex
	actionDeleteFirstMatch
	actionExit
)

const menu = `
==> Choose the action to perform:
1. Insert at Head
2. Insert at Tail
3. Insert at Index
4. Delete at Head
5. Delete at Tail
6. Delete at Index
7. Delete First Matching Element
8. Exit
==> Action: `

// ErrInvalidInput is returned when the input holds something other than integers.
var ErrInvalidInput = errors.New("invalid input")

// Options tweaks the console output.
type Options struct {
	Interactive bool // Prints the menu and prompts; meant for terminals.
}

// session is the state threaded through the menu loop.
type session struct {
	arena   *list.Arena[int]
	head    list.Handle
	words   *bufio.Scanner
	out     io.Writer
	options Options
}

// Run reads the initial list and menu actions from `in` until the exit action or the end of input.
func Run(in io.Reader, out io.Writer, options Options) error {
	reader := bufio.NewReader(in)
	s := &session{arena: list.NewArena[int](0), out: out, options: options}

	s.prompt("==> Enter Linked List (e.g., 12 8 7): ")
	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to read the initial list: %w", err)
	}
	initial, err := parseInts(line)
	if err != nil {
		return err
	}
	s.head = s.arena.Build(initial)
	s.printf("==> Linked List: %s\n", s.arena.Format(s.head))

	s.words = bufio.NewScanner(reader)
	s.words.Split(bufio.ScanWords)
	for {
		s.prompt(menu)
		action, err := s.nextInt()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if action == actionExit {
			s.printf("Exiting...\n")
			return nil
		}
		if action < actionInsertAtHead || action > actionExit {
			s.printf("Invalid action %d. Exiting...\n", action)
			return nil
		}
		if err := s.apply(action); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, ErrInvalidInput) {
				return err
			}
			slog.Debug("List action failed.", "action", action, "error", err)
			s.printf("Error: %v\n", err)
			continue
		}
		s.printf("===> New List: %s\n", s.arena.Format(s.head))
	}
}

// apply reads the operands of `action`, runs it and keeps the returned head on success.
func (s *session) apply(action int) error {
	var newHead list.Handle
	var err error
	switch action {
	case actionInsertAtHead, actionInsertAtTail, actionInsertAtIndex, actionDeleteFirstMatch:
		s.prompt("=> Value: ")
		value, readErr := s.nextInt()
		if readErr != nil {
			return readErr
		}
		switch action {
		case actionInsertAtHead:
			newHead, err = s.arena.InsertAtHead(s.head, value)
		case actionInsertAtTail:
			newHead, err = s.arena.InsertAtTail(s.head, value)
		case actionDeleteFirstMatch:
			newHead, err = s.arena.DeleteFirstMatch(s.head, value)
		default:
			s.prompt("=> Index: ")
			index, readErr := s.nextInt()
			if readErr != nil {
				return readErr
			}
			newHead, err = s.arena.InsertAtIndex(s.head, index, value)
		}
	case actionDeleteAtHead:
		newHead, err = s.arena.DeleteAtHead(s.head)
	case actionDeleteAtTail:
		newHead, err = s.arena.DeleteAtTail(s.head)
	case actionDeleteAtIndex:
		s.prompt("=> Index: ")
		index, readErr := s.nextInt()
		if readErr != nil {
			return readErr
		}
		newHead, err = s.arena.DeleteAtIndex(s.head, index)
	}
	if err != nil {
		return err
	}
	s.head = newHead
	return nil
}

// nextInt reads the next whitespace separated integer.
func (s *session) nextInt() (int, error) {
	if !s.words.Scan() {
		if err := s.words.Err(); err != nil {
			return 0, err
		}
		return 0, io.EOF
	}
	value, err := strconv.Atoi(s.words.Text())
	if err != nil {
		return 0, fmt.Errorf("%w: expected an integer, got %q", ErrInvalidInput, s.words.Text())
	}
	return value, nil
}

func (s *session) prompt(text string) {
	if s.options.Interactive {
		_, _ = io.WriteString(s.out, text)
	}
}

func (s *session) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(s.out, format, args...)
}

// parseInts parses a line of whitespace separated integers.
func parseInts(line string) ([]int, error) {
	fields := strings.Fields(line)
	values := make([]int, 0, len(fields))
	for _, field := range fields {
		value, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("%w: expected an integer, got %q", ErrInvalidInput, field)
		}
		values = append(values, value)
	}
	return values, nil
}
