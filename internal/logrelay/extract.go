package logrelay

import (
	"bufio"
	"errors"
	"io"
	"iter"
	"strings"
)

const (
	markerReceive = "onReceiveMessage"
	markerMethod  = "method"
	markerReport  = "res/report"

	separator = ">>"

	// maxLineSize bounds a single log line. Longer lines are skipped.
	maxLineSize = 256 * 1024

	readBufferSize = 4096
)

// Extract returns the report payload carried by line.
//
// A line qualifies when it contains all three report markers. The payload is
// the text between the first and second ">>" separators, trimmed, up to the
// first space. ok is false for lines that do not qualify, lack a separator or
// yield an empty payload.
func Extract(line string) (payload string, ok bool) {
	if !strings.Contains(line, markerReceive) ||
		!strings.Contains(line, markerMethod) ||
		!strings.Contains(line, markerReport) {
		return "", false
	}

	_, rest, found := strings.Cut(line, separator)
	if !found {
		return "", false
	}
	field, _, _ := strings.Cut(rest, separator)

	payload, _, _ = strings.Cut(strings.TrimSpace(field), " ")
	if payload == "" {
		return "", false
	}
	return payload, true
}

// Payloads yields the payload of every qualifying line read from r.
// Lines longer than maxLineSize are skipped. The sequence ends at EOF or on
// a read error and cannot be restarted.
func Payloads(r io.Reader) iter.Seq[string] {
	return func(yield func(string) bool) {
		br := bufio.NewReaderSize(r, readBufferSize)

		for {
			line, err := readLine(br)
			if payload, ok := Extract(line); ok {
				if !yield(payload) {
					return
				}
			}
			if err != nil {
				return
			}
		}
	}
}

// readLine returns the next line without its terminator. An over-long line
// is consumed up to its newline and returned empty.
func readLine(br *bufio.Reader) (string, error) {
	var (
		line     []byte
		overflow bool
	)
	for {
		chunk, err := br.ReadSlice('\n')
		if !overflow {
			if len(line)+len(chunk) > maxLineSize+1 {
				overflow = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return strings.TrimRight(string(line), "\r\n"), err
	}
}
