package parser

import (
	"regexp"

	"github.com/voicerover-io/voicerover/internal/rover/command"
)

// match is one recognized command pattern inside a segment, with its
// (possibly extended) span and any parameters captured so far.
type match struct {
	kind   command.Kind
	class  int
	start  int
	end    int
	params map[string]any
}

// Span-extension forms: parameter syntax that immediately follows a match
// is absorbed into its span so the trailing text cannot seed another match.
var (
	extAngleRE    = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)\s*degrees\b`)
	extDurationRE = regexp.MustCompile(`^\s*for\s+(\d+(?:\.\d+)?)\s*(?:seconds?|secs?)\b`)
	extSpeedRE    = regexp.MustCompile(`^\s*(?:at\s+)?speed\s+(\d+(?:\.\d+)?)\b`)
)

// matchSegment repeatedly finds the left-most pattern occurrence in the
// unconsumed suffix of the segment. The earliest start offset wins; offset
// ties fall to the lower tie-break class, then to registration order.
// Unmatched sub-spans are skipped silently.
func (lx *Lexicon) matchSegment(seg string) []match {
	var out []match

	offset := 0
	rest := seg
	for rest != "" {
		bestIdx := -1
		var bestLoc []int
		for i, p := range lx.patterns {
			loc := p.re.FindStringSubmatchIndex(rest)
			if loc == nil {
				continue
			}
			if bestIdx < 0 || loc[0] < bestLoc[0] {
				bestIdx, bestLoc = i, loc
			}
		}
		if bestIdx < 0 {
			break
		}

		p := lx.patterns[bestIdx]
		groups := submatches(rest, p.re, bestLoc)
		kind, params := p.resolve(groups)

		consumed := bestLoc[1]
		consumed += extendSpan(rest[consumed:], params)

		out = append(out, match{
			kind:   kind,
			class:  p.class,
			start:  offset + bestLoc[0],
			end:    offset + consumed,
			params: params,
		})

		offset += consumed
		rest = rest[consumed:]
	}

	return out
}

// extendSpan absorbs trailing "N degrees", "for N seconds" and
// "at speed N" forms, in any order, returning the number of bytes consumed.
func extendSpan(tail string, params map[string]any) int {
	consumed := 0
	for {
		advanced := false
		for _, ext := range []struct {
			re  *regexp.Regexp
			key string
		}{
			{extAngleRE, "angle"},
			{extDurationRE, "duration"},
			{extSpeedRE, "speed"},
		} {
			loc := ext.re.FindStringSubmatchIndex(tail[consumed:])
			if loc == nil {
				continue
			}
			if _, taken := params[ext.key]; !taken {
				if v, ok := parseNumber(tail[consumed+loc[2] : consumed+loc[3]]); ok {
					params[ext.key] = v
				}
			}
			consumed += loc[1]
			advanced = true
		}
		if !advanced {
			return consumed
		}
	}
}

// submatches extracts the submatch strings for an index set, with empty
// strings for groups that did not participate.
func submatches(s string, re *regexp.Regexp, loc []int) []string {
	groups := make([]string, re.NumSubexp()+1)
	for i := 0; i <= re.NumSubexp(); i++ {
		if 2*i < len(loc) && loc[2*i] >= 0 {
			groups[i] = s[loc[2*i]:loc[2*i+1]]
		}
	}
	return groups
}
