// Package gcode parses G-code lines and encodes them into the binary frames
// M3D firmware accepts in G-code processing mode.
//
// The frame layout follows the Repetier binary protocol: a little-endian
// parameter bitfield, the present values in a fixed order, and a Fletcher-16
// checksum.
package gcode

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrEmptyCommand     = errors.New("gcode: empty command")
	ErrUnknownParameter = errors.New("gcode: unsupported parameter")
	ErrInvalidValue     = errors.New("gcode: invalid parameter value")
	ErrValueOutOfRange  = errors.New("gcode: value out of range")
)

// Letter is a G-code word letter such as 'G' or 'X'.
type Letter byte

// Field order inside a frame, and in the display string.
var fieldOrder = []Letter{
	'N', 'M', 'G', 'X', 'Y', 'Z', 'E', 'F', 'T', 'S', 'P',
	'I', 'J', 'R', 'D', 'C', 'H', 'A', 'B', 'K', 'L', 'O',
}

// Letters encoded as integers in a frame
var integerLetters = map[Letter]bool{'N': true, 'M': true, 'G': true, 'T': true}

// Commands whose remainder is a free text argument
var textCommands = map[int]bool{
	23: true, 28: true, 29: true, 30: true, 32: true, 117: true,
}

type word struct {
	raw   string
	value float64
}

// Command is one parsed line
type Command struct {
	words map[Letter]word
	text  string
}

// Parse reads a single line. Comments after ';' or in parentheses and a
// trailing "*NN" checksum are ignored. A line with nothing left yields
// ErrEmptyCommand.
func Parse(line string) (*Command, error) {
	line = stripComments(line)

	cmd := &Command{words: make(map[Letter]word)}
	i := 0
	for i < len(line) {
		c := line[i]
		if c == ' ' || c == '\t' {
			i++
			continue
		}
		if !isLetter(c) {
			return nil, fmt.Errorf("%w: unexpected %q", ErrInvalidValue, c)
		}

		letter := Letter(toUpper(c))
		if !knownLetter(letter) {
			return nil, fmt.Errorf("%w: %c", ErrUnknownParameter, letter)
		}

		i++
		start := i
		for i < len(line) && !isLetter(line[i]) && line[i] != ' ' && line[i] != '\t' {
			i++
		}
		raw := line[start:i]

		value := 0.0
		if raw != "" {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %c%s", ErrInvalidValue, letter, raw)
			}
			value = v
		}
		if integerLetters[letter] && value != math.Trunc(value) {
			return nil, fmt.Errorf("%w: %c%s is not a whole number", ErrInvalidValue, letter, raw)
		}
		cmd.words[letter] = word{raw: raw, value: value}

		if letter == 'M' && textCommands[int(value)] {
			cmd.text = strings.Trim(strings.TrimSpace(line[i:]), `"`)
			break
		}
	}

	if len(cmd.words) == 0 {
		return nil, ErrEmptyCommand
	}
	return cmd, nil
}

func stripComments(line string) string {
	if i := strings.IndexByte(line, ';'); i >= 0 {
		line = line[:i]
	}
	if i := strings.IndexByte(line, '*'); i >= 0 {
		line = line[:i]
	}
	for {
		open := strings.IndexByte(line, '(')
		if open < 0 {
			break
		}
		end := strings.IndexByte(line[open:], ')')
		if end < 0 {
			line = line[:open]
			break
		}
		line = line[:open] + " " + line[open+end+1:]
	}
	return strings.TrimSpace(line)
}

func knownLetter(l Letter) bool {
	for _, f := range fieldOrder {
		if f == l {
			return true
		}
	}
	return false
}

func isLetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func toUpper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - ('a' - 'A')
	}
	return c
}

// Has reports whether the letter appeared in the line
func (c *Command) Has(l Letter) bool {
	_, ok := c.words[l]
	return ok
}

// Value returns the numeric value of a word, or 0 when absent
func (c *Command) Value(l Letter) float64 {
	return c.words[l].value
}

// Text returns the free text argument of M23/M28/M117 style commands
func (c *Command) Text() string {
	return c.text
}

// SetLineNumber sets or replaces the N word
func (c *Command) SetLineNumber(n uint16) {
	c.words['N'] = word{raw: strconv.Itoa(int(n)), value: float64(n)}
}

// ASCII renders the command in canonical order, keeping each value as written
func (c *Command) ASCII() string {
	var b strings.Builder
	for _, l := range fieldOrder {
		w, ok := c.words[l]
		if !ok {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteByte(byte(l))
		b.WriteString(w.raw)
	}
	if c.text != "" {
		b.WriteByte(' ')
		b.WriteString(c.text)
	}
	return b.String()
}

func (c *Command) String() string {
	return c.ASCII()
}
