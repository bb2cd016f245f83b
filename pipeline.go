package m3d

import (
	"fmt"

	"github.com/allbin/go-m3d/rewrite"
)

// LineWriter is the write side of a Conn
type LineWriter interface {
	WriteLine(line string) error
}

// Pipeline runs outgoing commands through a Transformer before they reach
// the connection. A nil Transformer passes everything through.
type Pipeline struct {
	Transformer *rewrite.Transformer
	Conn        LineWriter
}

// Send writes the commands cmd expands to, in order, stopping at the first
// failure. It returns how many were written.
func (p *Pipeline) Send(cmd rewrite.Command) (int, error) {
	out := p.Transformer.Transform(cmd)
	for i, c := range out {
		if err := p.Conn.WriteLine(c.Line); err != nil {
			return i, fmt.Errorf("command %d of %d for %q: %w", i+1, len(out), cmd.Line, err)
		}
	}
	return len(out), nil
}

// SendLine is Send for an untagged line
func (p *Pipeline) SendLine(line string) (int, error) {
	return p.Send(rewrite.Command{Line: line})
}
