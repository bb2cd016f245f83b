/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

var (
	errNoResponse      = errors.New("no response from printer")
	errPrinterResponse = errors.New("printer reported an error")
)

type lineReader interface {
	ReadLine() ([]byte, error)
}

// waitOK reads printer output until an "ok" line and returns everything
// read, the ok line included. Each empty read is one read timeout; after
// maxIdle of them in a row the printer is considered gone.
func waitOK(r lineReader, maxIdle int, echo func(string)) ([]string, error) {
	var lines []string
	idle := 0
	for {
		raw, err := r.ReadLine()
		if err != nil {
			return lines, err
		}
		line := strings.TrimRight(string(raw), "\r\n")
		if line == "" {
			idle++
			if idle >= maxIdle {
				return lines, errNoResponse
			}
			continue
		}
		idle = 0
		lines = append(lines, line)
		if echo != nil {
			echo(line)
		}

		switch {
		case line == "ok" || strings.HasPrefix(line, "ok "):
			return lines, nil
		case strings.HasPrefix(line, "Error"), strings.HasPrefix(line, "!!"):
			return lines, fmt.Errorf("%w: %s", errPrinterResponse, line)
		}
	}
}

// idleReads is how many empty reads of d add up to wait
func idleReads(wait, d time.Duration) int {
	if d <= 0 {
		return 1
	}
	return max(int(wait/d), 1)
}

// commandLines returns the G-code lines of r, without comments and blank
// lines
func commandLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, ';'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}
