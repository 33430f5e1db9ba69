package ffmpeg

import (
	"fmt"
	"strings"
)

// The filter graph is built as typed stages and serialized once at the
// process boundary, so escaping lives in exactly one place instead of being
// repeated wherever a filter string is assembled.

// Arg is one parameter of a filter stage. Key may be empty for positional
// parameters.
type Arg struct {
	Key   string
	Value string
}

// KV constructs a named filter parameter.
func KV(key, value string) Arg {
	return Arg{Key: key, Value: value}
}

// KVf constructs a named filter parameter from a format string.
func KVf(key, format string, args ...interface{}) Arg {
	return Arg{Key: key, Value: fmt.Sprintf(format, args...)}
}

// Stage is a single named filter with its parameters and pad labels.
type Stage struct {
	Name    string
	Args    []Arg
	Inputs  []string
	Outputs []string
}

func (s Stage) serialize() string {
	var b strings.Builder
	for _, in := range s.Inputs {
		fmt.Fprintf(&b, "[%s]", in)
	}
	b.WriteString(s.Name)
	if len(s.Args) > 0 {
		b.WriteByte('=')
		parts := make([]string, 0, len(s.Args))
		for _, a := range s.Args {
			if a.Key == "" {
				parts = append(parts, a.Value)
			} else {
				parts = append(parts, a.Key+"="+a.Value)
			}
		}
		b.WriteString(strings.Join(parts, ":"))
	}
	for _, out := range s.Outputs {
		fmt.Fprintf(&b, "[%s]", out)
	}
	return b.String()
}

// Graph is an ordered list of filter stages forming a -filter_complex
// expression.
type Graph struct {
	stages []Stage
}

// Add appends a stage to the graph.
func (g *Graph) Add(stage Stage) *Graph {
	g.stages = append(g.stages, stage)
	return g
}

// Empty reports whether the graph has no stages.
func (g *Graph) Empty() bool {
	return len(g.stages) == 0
}

// String serializes the graph, one stage per chain, joined by semicolons.
func (g *Graph) String() string {
	parts := make([]string, 0, len(g.stages))
	for _, s := range g.stages {
		parts = append(parts, s.serialize())
	}
	return strings.Join(parts, ";")
}

// Chain is a linear -vf filter list without pad labels.
type Chain struct {
	stages []Stage
}

// Add appends a stage to the chain. Pad labels on the stage are ignored.
func (c *Chain) Add(name string, args ...Arg) *Chain {
	c.stages = append(c.stages, Stage{Name: name, Args: args})
	return c
}

// Empty reports whether the chain has no stages.
func (c *Chain) Empty() bool {
	return len(c.stages) == 0
}

// String serializes the chain joined by commas.
func (c *Chain) String() string {
	parts := make([]string, 0, len(c.stages))
	for _, s := range c.stages {
		parts = append(parts, Stage{Name: s.Name, Args: s.Args}.serialize())
	}
	return strings.Join(parts, ",")
}

// ScalePad returns the scale + letterbox-pad + fps stages fitting any input
// onto the canonical canvas.
func ScalePad(canvas Canvas) []Stage {
	return []Stage{
		{Name: "scale", Args: []Arg{
			KVf("", "%d:%d", canvas.Width, canvas.Height),
			KV("force_original_aspect_ratio", "decrease"),
		}},
		{Name: "pad", Args: []Arg{
			KVf("", "%d:%d", canvas.Width, canvas.Height),
			KV("", "(ow-iw)/2"),
			KV("", "(oh-ih)/2"),
		}},
		{Name: "fps", Args: []Arg{KVf("", "%g", canvas.FPS)}},
	}
}

// EscapeFilterValue escapes a literal string for use as a filter parameter
// value: backslashes first, then the characters the filter parser treats as
// structure.
func EscapeFilterValue(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	for _, c := range []string{"'", ":", ",", ";", "[", "]", "="} {
		s = strings.ReplaceAll(s, c, `\`+c)
	}
	return s
}
