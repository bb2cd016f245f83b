package rewrite

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransformNoMatchPassesThrough(t *testing.T) {
	tr := New(ZigZag())
	cmd := Command{Line: "G28", Tag: "home"}
	require.Equal(t, []Command{cmd}, tr.Transform(cmd))
}

func TestTransformZigZag(t *testing.T) {
	tr := New(ZigZag())
	got := tr.Transform(Command{Line: "G1 X1.0000 F1946", Tag: "source"})
	require.Equal(t, []Command{
		{Line: "G1 Y10.0000 F1946"},
		{Line: "G1 Y-10.0000 F1946"},
		{Line: "G1 X1.0000 F1946"},
	}, got)
}

func TestTransformExactMatchOnly(t *testing.T) {
	tr := New(ZigZag())
	for _, line := range []string{"G1 X1.0000 F1946\n", "g1 x1.0000 f1946", "G1 X1.0 F1946"} {
		got := tr.Transform(Command{Line: line})
		require.Equal(t, []Command{{Line: line}}, got, line)
	}
}

func TestTransformDrop(t *testing.T) {
	tr := New(Rule{Match: "M300"})
	require.Empty(t, tr.Transform(Command{Line: "M300"}))
}

func TestTransformFirstRuleWins(t *testing.T) {
	tr := New(
		Rule{Match: "M84", Output: []Command{{Line: "M18"}}},
		Rule{Match: "M84", Output: []Command{{Line: "M115"}}},
	)
	require.Equal(t, []Command{{Line: "M18"}}, tr.Transform(Command{Line: "M84"}))
}

func TestTransformerIsImmutable(t *testing.T) {
	rule := ZigZag()
	tr := New(rule)
	rule.Output[0].Line = "changed"

	out := tr.Transform(Command{Line: "G1 X1.0000 F1946"})
	require.Equal(t, "G1 Y10.0000 F1946", out[0].Line)

	out[1].Line = "also changed"
	again := tr.Transform(Command{Line: "G1 X1.0000 F1946"})
	require.Equal(t, "G1 Y-10.0000 F1946", again[1].Line)

	rules := tr.Rules()
	rules[0].Output[2].Line = "nope"
	require.Equal(t, "G1 X1.0000 F1946", tr.Rules()[0].Output[2].Line)
}

func TestNilTransformer(t *testing.T) {
	var tr *Transformer
	cmd := Command{Line: "M105"}
	require.Equal(t, []Command{cmd}, tr.Transform(cmd))
	require.Nil(t, tr.Rules())
}

func TestTransformConcurrent(t *testing.T) {
	tr := New(ZigZag())
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				assert.Len(t, tr.Transform(Command{Line: "G1 X1.0000 F1946"}), 3)
			}
		}()
	}
	wg.Wait()
}

func TestLoadRules(t *testing.T) {
	const doc = `
rules:
  - match: "G1 X1.0000 F1946"
    output:
      - "G1 Y10.0000 F1946"
      - "G1 X1.0000 F1946"
  - match: "M300"
    output: []
`
	rules, err := LoadRules(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, rules, 2)
	require.Equal(t, "G1 X1.0000 F1946", rules[0].Match)
	require.Equal(t, []Command{{Line: "G1 Y10.0000 F1946"}, {Line: "G1 X1.0000 F1946"}}, rules[0].Output)
	require.Empty(t, rules[1].Output)

	tr := New(rules...)
	require.Empty(t, tr.Transform(Command{Line: "M300"}))
}

func TestLoadRulesErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty match", "rules:\n  - output: [\"M115\"]\n"},
		{"unknown key", "rules:\n  - match: M84\n    replace: [\"M115\"]\n"},
		{"not yaml", "rules: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadRules(strings.NewReader(tt.doc))
			require.Error(t, err)
		})
	}
}
