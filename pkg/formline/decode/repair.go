package decode

import (
	"regexp"
	"strconv"
	"strings"
)

// Text extraction sometimes glues neighbouring run fields together or splits
// one field in two. Each repair below is a local rewrite of the token list,
// applied in order before the run grammar.

var (
	typePrizePattern      = regexp.MustCompile(`^([FHCB][hnmsg]*)(\d+(?:\.\d+)?)$`)
	weightJockeyPattern   = regexp.MustCompile(`^(\d{1,2}-\d{1,2})([A-Z].*)$`)
	positionBeatenPattern = regexp.MustCompile(`^(=?\d{1,2}|\d{1,2}p\d{1,2})(nse|shd|sh|hd|snk|nk|dht|dist|\d*[½¼¾])$`)
	nonFinisherBase       = regexp.MustCompile(`^(f|pu|ur|bd|ro|su|ref|co|rr|rtr|dis)$`)
)

const (
	typeSlot   = 1
	ranSlot    = 4
	weightSlot = 5
)

type repair struct {
	name string
	fn   func([]string) ([]string, bool)
}

var repairs = []repair{
	{"split-type-prize", splitTypePrize},
	{"split-weight-jockey", splitWeightJockey},
	{"split-position-beaten", splitPositionBeaten},
	{"rejoin-non-finisher", rejoinNonFinisher},
}

// Repair returns a repaired copy of toks and the names of the repairs that
// changed it.
func Repair(toks []string) ([]string, []string) {
	out := append([]string(nil), toks...)
	var applied []string
	for _, r := range repairs {
		var ok bool
		if out, ok = r.fn(out); ok {
			applied = append(applied, r.name)
		}
	}
	return out, applied
}

// splitTypePrize turns "Hh8" into "Hh" "8".
func splitTypePrize(toks []string) ([]string, bool) {
	if len(toks) <= typeSlot {
		return toks, false
	}
	m := typePrizePattern.FindStringSubmatch(toks[typeSlot])
	if m == nil {
		return toks, false
	}
	return splice(toks, typeSlot, 1, m[1], m[2]), true
}

// splitWeightJockey turns "11-10R" into "11-10" "R".
func splitWeightJockey(toks []string) ([]string, bool) {
	if len(toks) <= weightSlot {
		return toks, false
	}
	m := weightJockeyPattern.FindStringSubmatch(toks[weightSlot])
	if m == nil {
		return toks, false
	}
	return splice(toks, weightSlot, 1, m[1], m[2]), true
}

// splitPositionBeaten turns "2nk" into "2" "nk". A two-digit placing larger
// than the declared field gives up its last digit to the distance, so "11½"
// in a field of nine reads as "1" "1½".
func splitPositionBeaten(toks []string) ([]string, bool) {
	slot := positionSlot(toks)
	if slot < 0 {
		return toks, false
	}
	m := positionBeatenPattern.FindStringSubmatch(toks[slot])
	if m == nil {
		return toks, false
	}
	placing, beaten := m[1], m[2]
	digits := strings.TrimPrefix(placing, "=")
	if len(digits) == 2 && !strings.Contains(digits, "p") {
		rank, _ := strconv.Atoi(digits)
		if ran, err := strconv.Atoi(toks[ranSlot]); err == nil && rank > ran {
			placing = placing[:len(placing)-1]
			beaten = digits[1:] + beaten
		}
	}
	return splice(toks, slot, 1, placing, beaten), true
}

// rejoinNonFinisher turns "pu" "c" back into "puc".
func rejoinNonFinisher(toks []string) ([]string, bool) {
	slot := positionSlot(toks)
	if slot < 0 || slot+1 >= len(toks) {
		return toks, false
	}
	if !nonFinisherBase.MatchString(toks[slot]) {
		return toks, false
	}
	if next := toks[slot+1]; next != "h" && next != "c" {
		return toks, false
	}
	return splice(toks, slot, 2, toks[slot]+toks[slot+1]), true
}

// positionSlot finds the index of the finishing-position field: the first
// token after the jockey's name that starts with a digit or "=", or is a
// non-finisher code. It returns -1 when no jockey precedes such a token.
func positionSlot(toks []string) int {
	i := weightSlot + 1
	if i < len(toks) && headgearPattern.MatchString(toks[i]) {
		i++
	}
	if i < len(toks) && allowancePattern.MatchString(toks[i]) {
		i++
	}
	for j := i; j < len(toks); j++ {
		t := toks[j]
		if t == "" {
			continue
		}
		if t[0] == '=' || (t[0] >= '0' && t[0] <= '9') || nonFinisherPattern.MatchString(t) {
			if j == i {
				return -1
			}
			return j
		}
	}
	return -1
}

func splice(toks []string, at, n int, with ...string) []string {
	out := make([]string, 0, len(toks)-n+len(with))
	out = append(out, toks[:at]...)
	out = append(out, with...)
	return append(out, toks[at+n:]...)
}
