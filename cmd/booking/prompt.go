package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

var errPINMismatch = errors.New("pins do not match")

// pinReader reads a PIN from BOOKING_PIN, a terminal without echo, or a
// plain line of input, in that order.
type pinReader struct {
	in     io.Reader
	out    io.Writer
	getenv func(string) string
	lines  *bufio.Reader
}

func newPINReader(in io.Reader, out io.Writer, getenv func(string) string) *pinReader {
	if getenv == nil {
		getenv = os.Getenv
	}
	return &pinReader{in: in, out: out, getenv: getenv}
}

// Read returns the PIN. Interactive terminals are asked twice.
func (p *pinReader) Read() (string, error) {
	if pin := p.getenv("BOOKING_PIN"); pin != "" {
		return pin, nil
	}

	if fd, ok := terminalFD(p.in); ok {
		pin, err := p.readHidden(fd, "Enter PIN:   ")
		if err != nil {
			return "", err
		}
		confirm, err := p.readHidden(fd, "Confirm PIN: ")
		if err != nil {
			return "", err
		}
		if pin != confirm {
			return "", errPINMismatch
		}
		return pin, nil
	}

	return p.readLine()
}

func (p *pinReader) readHidden(fd int, prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("read pin: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

func (p *pinReader) readLine() (string, error) {
	if p.lines == nil {
		p.lines = bufio.NewReader(p.in)
	}
	line, err := p.lines.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read pin: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func terminalFD(r io.Reader) (int, bool) {
	file, ok := r.(*os.File)
	if !ok {
		return 0, false
	}
	fd := int(file.Fd())
	return fd, term.IsTerminal(fd)
}
