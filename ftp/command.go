package ftp

import (
	"bufio"
	"errors"
	"strings"
)

// maxLineLength bounds a single command line
const maxLineLength = 4096

var errLineTooLong = errors.New("command line too long")

// Request is one parsed command line
type Request struct {
	// Verb is upper-cased, empty for a blank line
	Verb Command
	// Argument is every token after the verb joined with single spaces
	Argument string
}

// ParseCommand splits a line into verb and argument.
// The trailing CRLF is optional.
func ParseCommand(line string) Request {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Request{}
	}
	return Request{
		Verb:     strings.ToUpper(fields[0]),
		Argument: strings.Join(fields[1:], " "),
	}
}

// ReadCommand reads and parses the next command line.
// io.EOF means the peer closed the connection, a partial last line is dropped.
func ReadCommand(r *bufio.Reader) (Request, error) {
	line, err := r.ReadSlice('\n')
	if errors.Is(err, bufio.ErrBufferFull) || len(line) > maxLineLength {
		// drop the rest of the oversized line so the next read starts on a command
		for errors.Is(err, bufio.ErrBufferFull) {
			_, err = r.ReadSlice('\n')
		}
		if err != nil {
			return Request{}, err
		}
		return Request{}, errLineTooLong
	}
	if err != nil {
		return Request{}, err
	}
	return ParseCommand(string(line)), nil
}
