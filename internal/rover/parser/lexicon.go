package parser

import (
	"regexp"

	"github.com/voicerover-io/voicerover/internal/rover/command"
)

// Tie-break classes. When two patterns match at the same offset, the lower
// class wins; within a class, registration order wins.
const (
	classRotateExplicit = iota
	classIntermediate
	classPrimitive
)

var classNames = map[int]string{
	classRotateExplicit: "rotate-explicit",
	classIntermediate:   "intermediate",
	classPrimitive:      "primitive",
}

// resolveFunc turns a pattern's submatches into a command kind plus any
// parameters captured directly by the pattern.
type resolveFunc func(groups []string) (command.Kind, map[string]any)

type pattern struct {
	expr    string
	re      *regexp.Regexp
	class   int
	resolve resolveFunc
}

// modifier maps a speed phrase to its table value. Longer phrases are
// preferred when several fall inside the same attachment window.
type modifier struct {
	phrase string
	re     *regexp.Regexp
	value  float64
}

// Lexicon is the static table of command patterns, speed modifiers, size
// adjectives and transition words. It is immutable after construction and
// safe for concurrent readers.
type Lexicon struct {
	patterns  []pattern
	modifiers []modifier
	sizes     map[string]float64
}

// fixed registers a pattern that always resolves to one kind.
func fixed(kind command.Kind, expr string) pattern {
	return pattern{
		expr: expr,
		re:   regexp.MustCompile(expr),
		resolve: func([]string) (command.Kind, map[string]any) {
			return kind, map[string]any{}
		},
	}
}

// NewLexicon builds the default command lexicon.
func NewLexicon() *Lexicon {
	lx := &Lexicon{
		sizes: map[string]float64{
			"tiny":  0.2,
			"small": 0.3,
			"large": 0.8,
			"huge":  1.0,
		},
	}

	// Explicit-angle rotate forms rank first: "turn 68 degrees",
	// "rotate right 90 degrees". A missing qualifier defaults to
	// counterclockwise.
	lx.add(classRotateExplicit, pattern{
		expr: `(?:turn|rotate|spin)\s+(?:(left|right|clockwise|counter\s*clockwise|anti\s*clockwise)\s+)?(\d+(?:\.\d+)?)\s*degrees\b`,
		re:   regexp.MustCompile(`(?:turn|rotate|spin)\s+(?:(left|right|clockwise|counter\s*clockwise|anti\s*clockwise)\s+)?(\d+(?:\.\d+)?)\s*degrees\b`),
		resolve: func(groups []string) (command.Kind, map[string]any) {
			kind := command.KindRotateCounterClockwise
			switch groups[1] {
			case "right", "clockwise":
				kind = command.KindRotateClockwise
			}
			params := map[string]any{}
			if angle, ok := parseNumber(groups[2]); ok {
				params["angle"] = angle
			}
			return kind, params
		},
	})

	// Intermediate kinds.
	lx.add(classIntermediate,
		fixed(command.KindTurnLeft, `turn\s+(?:to\s+the\s+)?left\b`),
		fixed(command.KindTurnRight, `turn\s+(?:to\s+the\s+)?right\b`),
		fixed(command.KindMakeSquare, `(?:make|draw|trace|do)\s+(?:a\s+)?square\b`),
		fixed(command.KindMakeSquare, `\bsquare\b`),
		fixed(command.KindMakeCircle, `(?:make|draw|trace|do)\s+(?:a\s+)?circle\b`),
		fixed(command.KindMakeCircle, `\bcircle\b`),
		fixed(command.KindMakeStar, `(?:make|draw|trace|do)\s+(?:a\s+)?star\b`),
		fixed(command.KindMakeStar, `\bstar\b`),
		fixed(command.KindZigzag, `zig\s*zag\b`),
		pattern{
			// "spin left"/"spin right" are rotations; bare "spin" and
			// "spin around" are the spin trick. RE2 has no lookahead, so
			// one pattern resolves all four forms.
			expr: `\bspin(?:\s+(left|right|around))?\b`,
			re:   regexp.MustCompile(`\bspin(?:\s+(left|right|around))?\b`),
			resolve: func(groups []string) (command.Kind, map[string]any) {
				switch groups[1] {
				case "left":
					return command.KindRotateCounterClockwise, map[string]any{}
				case "right":
					return command.KindRotateClockwise, map[string]any{}
				}
				return command.KindSpin, map[string]any{}
			},
		},
		fixed(command.KindDance, `\bdance\b`),
	)

	// Primitive kinds.
	lx.add(classPrimitive,
		fixed(command.KindMoveForward, `(?:move|go)\s+forwards?\b|\bforwards?\b`),
		fixed(command.KindMoveBackward, `(?:move|go)\s+backwards?\b|\bbackwards?\b|\bback\s+up\b|\breverse\b`),
		fixed(command.KindRotateClockwise, `rotate\s+clockwise\b|\bclockwise\b`),
		fixed(command.KindRotateCounterClockwise, `rotate\s+(?:counter|anti)\s*clockwise\b|\b(?:counter|anti)\s*clockwise\b`),
		fixed(command.KindStop, `\bemergency\s+stop\b|\bstop\b|\bhalt\b`),
	)

	for _, m := range []struct {
		phrase string
		value  float64
	}{
		{"very slowly", 0.1},
		{"very slow", 0.1},
		{"very quickly", 0.9},
		{"very fast", 0.9},
		{"slowly", 0.2},
		{"slow", 0.2},
		{"quickly", 0.7},
		{"fast", 0.7},
	} {
		lx.modifiers = append(lx.modifiers, modifier{
			phrase: m.phrase,
			re:     regexp.MustCompile(`\b` + regexp.QuoteMeta(m.phrase) + `\b`),
			value:  m.value,
		})
	}

	return lx
}

func (lx *Lexicon) add(class int, ps ...pattern) {
	for _, p := range ps {
		p.class = class
		lx.patterns = append(lx.patterns, p)
	}
}

// stopRE recognizes the emergency-stop forms on their own, used for the
// wake-word-independent STOP fast path.
var stopRE = regexp.MustCompile(`\bemergency\s+stop\b|\bstop\b|\bhalt\b`)

// ContainsStop reports whether the text mentions an emergency stop.
func (lx *Lexicon) ContainsStop(text string) bool {
	return stopRE.MatchString(text)
}

// SizeAdjective looks up a size word ("large", "tiny", ...) in the closed
// adjective table.
func (lx *Lexicon) SizeAdjective(word string) (float64, bool) {
	v, ok := lx.sizes[word]
	return v, ok
}

// Entry describes one registered pattern, for diagnostic listings.
type Entry struct {
	Kind    string
	Class   string
	Pattern string
}

// Entries returns the registered patterns in tie-break order. Patterns that
// resolve dynamically report the kind they most commonly produce.
func (lx *Lexicon) Entries() []Entry {
	entries := make([]Entry, 0, len(lx.patterns))
	for _, p := range lx.patterns {
		kind, _ := p.resolve(make([]string, p.re.NumSubexp()+1))
		entries = append(entries, Entry{
			Kind:    string(kind),
			Class:   classNames[p.class],
			Pattern: p.expr,
		})
	}
	return entries
}
