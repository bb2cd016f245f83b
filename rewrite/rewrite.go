// Package rewrite expands or replaces outgoing commands before they are
// encoded and written to the printer.
package rewrite

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v2"
)

// Command is one outgoing line and the host's opaque tag for it.
type Command struct {
	Line string
	Tag  string
}

// Rule replaces a command whose Line equals Match with Output, in order.
// An empty Output drops the command.
type Rule struct {
	Match  string
	Output []Command
}

// Transformer applies an immutable rule set. The first matching rule wins.
// It is safe for concurrent use.
type Transformer struct {
	rules []Rule
}

// New copies rules so later changes by the caller have no effect.
func New(rules ...Rule) *Transformer {
	t := &Transformer{rules: make([]Rule, len(rules))}
	for i, r := range rules {
		t.rules[i] = Rule{Match: r.Match, Output: append([]Command(nil), r.Output...)}
	}
	return t
}

// Transform returns the commands to send in place of cmd. A command no rule
// matches is returned unchanged, tag included.
func (t *Transformer) Transform(cmd Command) []Command {
	if t != nil {
		for _, r := range t.rules {
			if r.Match == cmd.Line {
				return append(make([]Command, 0, len(r.Output)), r.Output...)
			}
		}
	}
	return []Command{cmd}
}

// Rules returns a copy of the rule set
func (t *Transformer) Rules() []Rule {
	if t == nil {
		return nil
	}
	out := make([]Rule, len(t.rules))
	for i, r := range t.rules {
		out[i] = Rule{Match: r.Match, Output: append([]Command(nil), r.Output...)}
	}
	return out
}

// ZigZag expands a single X move into a Y back-and-forth before it.
func ZigZag() Rule {
	return Rule{
		Match: "G1 X1.0000 F1946",
		Output: []Command{
			{Line: "G1 Y10.0000 F1946"},
			{Line: "G1 Y-10.0000 F1946"},
			{Line: "G1 X1.0000 F1946"},
		},
	}
}

type ruleFile struct {
	Rules []struct {
		Match  string   `yaml:"match"`
		Output []string `yaml:"output"`
	} `yaml:"rules"`
}

// LoadRules reads rules from YAML:
//
//	rules:
//	  - match: "G1 X1.0000 F1946"
//	    output:
//	      - "G1 Y10.0000 F1946"
//	      - "G1 X1.0000 F1946"
//	  - match: "M300"
//	    output: []
func LoadRules(r io.Reader) ([]Rule, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}

	var f ruleFile
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}

	rules := make([]Rule, 0, len(f.Rules))
	for i, fr := range f.Rules {
		if fr.Match == "" {
			return nil, fmt.Errorf("rule %d: empty match", i+1)
		}
		rule := Rule{Match: fr.Match, Output: make([]Command, 0, len(fr.Output))}
		for _, line := range fr.Output {
			rule.Output = append(rule.Output, Command{Line: line})
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
