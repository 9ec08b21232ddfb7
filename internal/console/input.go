package console

import (
	"bufio"
	"errors"
	"io"

	"github.com/chzyer/readline"

	"dagger/pkg/types"
)

// bufferedReader reads lines from any io.Reader. It is the default input
// source and what tests drive the loop with.
type bufferedReader struct {
	s *bufio.Scanner
}

// NewBufferedReader wraps r into a LineReader that returns one line per call
// and io.EOF when r is exhausted.
func NewBufferedReader(r io.Reader) types.LineReader {
	return &bufferedReader{s: bufio.NewScanner(r)}
}

func (b *bufferedReader) ReadLine() (string, error) {
	if b.s.Scan() {
		return b.s.Text(), nil
	}
	if err := b.s.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

// ReadlineReader supplies operator input through chzyer/readline, giving the
// interactive session line editing and in-memory history.
type ReadlineReader struct {
	rl *readline.Instance
}

// NewReadlineReader creates a readline-backed LineReader on the terminal.
func NewReadlineReader() (*ReadlineReader, error) {
	rl, err := readline.New(Prompt)
	if err != nil {
		return nil, err
	}
	return &ReadlineReader{rl: rl}, nil
}

// SetPrompt changes the displayed prompt. The console calls this once at
// session start, which also tells it not to print its own prompt.
func (r *ReadlineReader) SetPrompt(prompt string) {
	r.rl.SetPrompt(prompt)
}

// ReadLine blocks for one line of input. Ctrl-C and Ctrl-D both surface as
// io.EOF so the session ends cleanly instead of leaving a half-closed
// terminal behind.
func (r *ReadlineReader) ReadLine() (string, error) {
	line, err := r.rl.Readline()
	if err != nil {
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		return "", err
	}
	return line, nil
}

// Close releases the terminal.
func (r *ReadlineReader) Close() error {
	return r.rl.Close()
}
