// Package parser turns normalized utterance text into typed rover commands.
//
// Matching is greedy and iterative: within each segment the left-most
// pattern occurrence wins, its span absorbs trailing parameter syntax, and
// the scan resumes after it. Unrecognized sub-spans are skipped, because
// voice input is noisy and partial recognition beats rejecting the whole
// utterance.
package parser

import (
	"regexp"
	"strings"

	"github.com/voicerover-io/voicerover/internal/rover/command"
)

// Config carries the tunables the parser needs. No ambient state: every
// value arrives through the constructor.
type Config struct {
	// WakeWord gates the utterance; text without it parses to nothing
	// (except the emergency stop, which always gets through).
	WakeWord string

	// AttachmentWindow is the character width searched on both sides of a
	// match span for speed modifiers and shape sizes.
	AttachmentWindow int

	// DefaultSpeed applies to general motion, SpinSpeed to the spin trick.
	DefaultSpeed float64
	SpinSpeed    float64

	// DefaultAngle applies to left/right turns without an explicit angle.
	DefaultAngle float64
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		WakeWord:         "jarvis",
		AttachmentWindow: 12,
		DefaultSpeed:     0.4,
		SpinSpeed:        0.5,
		DefaultAngle:     90,
	}
}

// Parser is pure and CPU-bound: it performs no I/O, never blocks, and is
// safe for concurrent use.
type Parser struct {
	cfg    Config
	lex    *Lexicon
	wakeRE *regexp.Regexp
}

// New builds a Parser over the default lexicon.
func New(cfg Config) *Parser {
	if cfg.WakeWord == "" {
		cfg = DefaultConfig()
	}
	wake := regexp.QuoteMeta(strings.ToLower(cfg.WakeWord))
	return &Parser{
		cfg:    cfg,
		lex:    NewLexicon(),
		wakeRE: regexp.MustCompile(`^(?:hey[,\s]+)?` + wake + `\b[,\s]*`),
	}
}

// Lexicon exposes the pattern table for diagnostic listings.
func (p *Parser) Lexicon() *Lexicon { return p.lex }

// Parse converts free text into commands, in left-to-right segment order.
// A nil result means nothing was recognized; callers log and discard. It is
// never an error condition.
func (p *Parser) Parse(text string) []command.Command {
	norm := normalize(text)
	if norm == "" {
		return nil
	}

	stripped, woken := p.stripWakeWord(norm)
	if !woken {
		// The emergency stop is honored with or without the wake word.
		if p.lex.ContainsStop(norm) {
			return []command.Command{command.Stop()}
		}
		return nil
	}
	if stripped == "" {
		return nil
	}

	var out []command.Command
	for _, seg := range segments(stripped) {
		out = append(out, p.buildSegment(seg)...)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// buildSegment matches one segment and assembles its commands.
func (p *Parser) buildSegment(seg string) []command.Command {
	matches := p.lex.matchSegment(seg)
	if len(matches) == 0 {
		return nil
	}
	mods := assignModifiers(p.lex.findModifiers(seg), matches, p.cfg.AttachmentWindow)

	var out []command.Command
	for i, m := range matches {
		if m.kind == command.KindStop {
			out = append(out, command.Stop())
			continue
		}

		cmd, err := p.buildCommand(seg, m, mods[i])
		if err != nil {
			continue
		}
		out = append(out, cmd)
	}
	return out
}

// buildCommand resolves a match's parameters into a validated Command.
func (p *Parser) buildCommand(seg string, m match, mod modifierHit) (command.Command, error) {
	kind := m.kind
	params := map[string]any{}

	// Speed resolution order: explicit "speed N" (clamped), modifier table
	// value, then kind default.
	switch {
	case has(m.params, "speed"):
		params["speed"] = clamp01(m.params["speed"].(float64))
	case mod.phrase != "":
		params["speed"] = mod.value
	case kind == command.KindSpin:
		params["speed"] = p.cfg.SpinSpeed
	default:
		params["speed"] = p.cfg.DefaultSpeed
	}

	switch kind {
	case command.KindMoveForward, command.KindMoveBackward:
		if has(m.params, "duration") {
			params["duration"] = m.params["duration"]
			if kind == command.KindMoveForward {
				kind = command.KindMoveForwardForTime
			} else {
				kind = command.KindMoveBackwardForTime
			}
		}

	case command.KindTurnLeft, command.KindTurnRight:
		params["angle"] = p.cfg.DefaultAngle
		if has(m.params, "angle") {
			params["angle"] = m.params["angle"]
		}

	case command.KindRotateClockwise, command.KindRotateCounterClockwise:
		if has(m.params, "angle") {
			params["angle"] = m.params["angle"]
		}

	case command.KindSpin:
		if has(m.params, "angle") {
			params["angle"] = m.params["angle"]
		}

	case command.KindMakeSquare, command.KindMakeCircle, command.KindMakeStar, command.KindZigzag:
		p.fillShapeSize(seg, m, kind, params)
	}

	if has(m.params, "duration") && !has(params, "duration") {
		params["duration"] = m.params["duration"]
	}

	return command.New(kind, params, command.PriorityNormal)
}

// shapeDefaults: parameter key and fallback magnitude per shape kind.
var shapeDefaults = map[command.Kind]struct {
	key string
	def float64
}{
	command.KindMakeSquare: {"side", 0.5},
	command.KindMakeCircle: {"radius", 0.5},
	command.KindMakeStar:   {"size", 0.5},
	command.KindZigzag:     {"segment", 0.3},
}

func (p *Parser) fillShapeSize(seg string, m match, kind command.Kind, params map[string]any) {
	shape := shapeDefaults[kind]
	win := window(seg, m, p.cfg.AttachmentWindow)

	params[shape.key] = shape.def
	if v, ok := p.lex.scanShapeSize(win); ok {
		params[shape.key] = v
	}
	if kind == command.KindMakeStar {
		if points, ok := scanStarPoints(win); ok {
			params["points"] = points
		}
	}
}

// stripWakeWord removes a leading wake word (optionally prefixed with
// "hey", optionally followed by a comma) and reports whether it was there.
func (p *Parser) stripWakeWord(text string) (string, bool) {
	loc := p.wakeRE.FindStringIndex(text)
	if loc == nil {
		return text, false
	}
	return strings.TrimSpace(text[loc[1]:]), true
}

// normalize lowercases, trims and collapses whitespace. Upstream speech
// recognition usually does this already; doing it again keeps the parser
// total over raw input.
func normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

func has(m map[string]any, key string) bool {
	_, ok := m[key]
	return ok
}
