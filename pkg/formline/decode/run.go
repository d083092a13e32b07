package decode

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cognicore/formline/pkg/formline/ingest"
)

var (
	raceTypePattern    = regexp.MustCompile(`^([FHCB])([hnmsg]*)$`)
	prizePattern       = regexp.MustCompile(`^\d+(?:\.\d+)?$`)
	coursePattern      = regexp.MustCompile(`^[A-Z][a-z]{1,4}$`)
	ranPattern         = regexp.MustCompile(`^\d{1,2}$`)
	weightPattern      = regexp.MustCompile(`^(\d{1,2})-(\d{1,2})$`)
	headgearPattern    = regexp.MustCompile(`^(?:[bvhtp]{1,3}|e/s)$`)
	allowancePattern   = regexp.MustCompile(`^\d{1,2}$`)
	finisherPattern    = regexp.MustCompile(`^(=?)(\d{1,2})$`)
	placedPattern      = regexp.MustCompile(`^(\d{1,2})p(\d{1,2})$`)
	nonFinisherPattern = regexp.MustCompile(`^(f|pu|ur|bd|ro|su|ref|co|rr|rtr|dis)([hc])?$`)
	beatenPattern      = regexp.MustCompile(`^(\d+)?([½¼¾])?$`)
	timeRatingPattern  = regexp.MustCompile(`^\d{1,3}$`)
	distGoingPattern   = regexp.MustCompile(`^((?:(\d+)m)?(?:(\d+)(½)?f)?)(GF|GS|Sd|Sl|Fs|F|G|Y|S|H)$`)
	ratingPattern      = regexp.MustCompile(`^(\d{1,3})[+?]?$`)
)

var beatenWords = map[string]float64{
	"dht":  0,
	"nse":  0.05,
	"sh":   0.1,
	"shd":  0.1,
	"hd":   0.2,
	"snk":  0.25,
	"nk":   0.3,
	"dist": 30,
}

var fractions = map[string]float64{"½": 0.5, "¼": 0.25, "¾": 0.75}

// DecodeRun repairs the buffered tokens and applies the run line grammar
//
//	DATE TYPE PRIZE COURSE RAN WEIGHT [HEADGEAR] [ALLOWANCE] JOCKEY+ POSITION
//	[BEATEN] [TIMERATING] DISTGOING [RATING]
func DecodeRun(raw []string) (Run, error) {
	r, _, err := decodeRun(raw)
	return r, err
}

func decodeRun(raw []string) (Run, []string, error) {
	toks, applied := Repair(raw)
	r, err := parseRun(raw, toks)
	return r, applied, err
}

func parseRun(raw, toks []string) (Run, error) {
	if len(toks) < 9 {
		return Run{}, runErr(raw, "too few fields")
	}

	var r Run
	var err error
	if r.Date, err = ingest.ParseRaceDate(toks[0]); err != nil {
		return Run{}, runErr(raw, "bad date %q", toks[0])
	}
	if r.Type, err = parseRaceType(toks[1]); err != nil {
		return Run{}, runErr(raw, "bad race type %q", toks[1])
	}
	if !prizePattern.MatchString(toks[2]) {
		return Run{}, runErr(raw, "bad prize %q", toks[2])
	}
	r.Prize, _ = strconv.ParseFloat(toks[2], 64)
	if !coursePattern.MatchString(toks[3]) {
		return Run{}, runErr(raw, "bad course %q", toks[3])
	}
	r.Course = toks[3]
	if !ranPattern.MatchString(toks[4]) {
		return Run{}, runErr(raw, "bad field size %q", toks[4])
	}
	r.Ran, _ = strconv.Atoi(toks[4])
	if r.Ran == 0 {
		return Run{}, runErr(raw, "zero field size")
	}
	if r.Weight, err = parseWeight(toks[5]); err != nil {
		return Run{}, runErr(raw, "bad weight %q", toks[5])
	}
	r.WeightCode = toks[5]

	i := 6
	if i < len(toks) && headgearPattern.MatchString(toks[i]) {
		r.Headgear = toks[i]
		i++
	}
	if i < len(toks) && allowancePattern.MatchString(toks[i]) {
		r.Allowance, _ = strconv.Atoi(toks[i])
		i++
	}

	p := i
	for p < len(toks) {
		if _, ok := parsePosition(toks[p]); ok {
			break
		}
		p++
	}
	if p == i {
		return Run{}, runErr(raw, "missing jockey")
	}
	if p == len(toks) {
		return Run{}, runErr(raw, "missing position")
	}
	r.Jockey = strings.Join(toks[i:p], " ")
	r.Position, _ = parsePosition(toks[p])

	g := p + 1
	for g < len(toks) && !isDistGoing(toks[g]) {
		g++
	}
	if g == len(toks) {
		return Run{}, runErr(raw, "missing distance/going")
	}
	if err := r.readMargins(toks[p+1 : g]); err != nil {
		return Run{}, runErr(raw, "%v", err)
	}
	r.DistanceCode, r.Distance, r.Going = parseDistGoing(toks[g])

	switch rest := toks[g+1:]; len(rest) {
	case 0:
	case 1:
		m := ratingPattern.FindStringSubmatch(rest[0])
		if m == nil {
			return Run{}, runErr(raw, "bad form rating %q", rest[0])
		}
		v, _ := strconv.Atoi(m[1])
		r.Rating = &v
	default:
		return Run{}, runErr(raw, "trailing tokens %v", rest)
	}
	return r, nil
}

// readMargins reads the optional beaten distance and time rating between the
// position and the distance/going field.
func (r *Run) readMargins(toks []string) error {
	switch len(toks) {
	case 0:
		return nil
	case 1:
		if r.Position.Finisher {
			b, ok := parseBeaten(toks[0])
			if !ok {
				return fmt.Errorf("bad beaten distance %q", toks[0])
			}
			r.Beaten = &b
			return nil
		}
		if !timeRatingPattern.MatchString(toks[0]) {
			return fmt.Errorf("bad time rating %q", toks[0])
		}
		v, _ := strconv.Atoi(toks[0])
		r.TimeRating = &v
		return nil
	case 2:
		if !r.Position.Finisher {
			return fmt.Errorf("beaten distance on non-finisher %q", toks[0])
		}
		b, ok := parseBeaten(toks[0])
		if !ok {
			return fmt.Errorf("bad beaten distance %q", toks[0])
		}
		if !timeRatingPattern.MatchString(toks[1]) {
			return fmt.Errorf("bad time rating %q", toks[1])
		}
		v, _ := strconv.Atoi(toks[1])
		r.Beaten, r.TimeRating = &b, &v
		return nil
	}
	return fmt.Errorf("unexpected tokens %v before distance", toks)
}

func parseRaceType(code string) (RaceType, error) {
	m := raceTypePattern.FindStringSubmatch(code)
	if m == nil {
		return RaceType{}, errors.New("unknown race type")
	}
	t := RaceType{Code: code, Discipline: Discipline(m[1])}
	for _, f := range m[2] {
		switch f {
		case 'h':
			t.Handicap = true
		case 'n':
			t.Novice = true
		case 'm':
			t.Maiden = true
		case 's':
			t.Seller = true
		case 'g':
			t.Graded = true
		}
	}
	return t, nil
}

func parseWeight(code string) (int, error) {
	m := weightPattern.FindStringSubmatch(code)
	if m == nil {
		return 0, fmt.Errorf("weight %q", code)
	}
	st, _ := strconv.Atoi(m[1])
	lb, _ := strconv.Atoi(m[2])
	if lb >= 14 {
		return 0, fmt.Errorf("weight %q", code)
	}
	return st*14 + lb, nil
}

// ParsePosition parses a finishing-position code.
func ParsePosition(code string) (Position, bool) {
	return parsePosition(code)
}

func parsePosition(code string) (Position, bool) {
	if m := finisherPattern.FindStringSubmatch(code); m != nil {
		rank, _ := strconv.Atoi(m[2])
		if rank == 0 {
			return Position{}, false
		}
		return Position{Code: code, Finisher: true, Rank: rank, Tied: m[1] == "="}, true
	}
	if m := placedPattern.FindStringSubmatch(code); m != nil {
		rank, _ := strconv.Atoi(m[1])
		placed, _ := strconv.Atoi(m[2])
		if rank == 0 {
			return Position{}, false
		}
		return Position{Code: code, Finisher: true, Rank: rank, PlacedAs: placed}, true
	}
	if m := nonFinisherPattern.FindStringSubmatch(code); m != nil {
		return Position{Code: code, Jump: m[2]}, true
	}
	return Position{}, false
}

func parseBeaten(code string) (float64, bool) {
	if v, ok := beatenWords[code]; ok {
		return v, true
	}
	m := beatenPattern.FindStringSubmatch(code)
	if m == nil || code == "" {
		return 0, false
	}
	var v float64
	if m[1] != "" {
		n, _ := strconv.Atoi(m[1])
		v = float64(n)
	}
	v += fractions[m[2]]
	return v, true
}

func isDistGoing(code string) bool {
	m := distGoingPattern.FindStringSubmatch(code)
	return m != nil && m[1] != ""
}

func parseDistGoing(code string) (dist string, furlongs float64, going string) {
	m := distGoingPattern.FindStringSubmatch(code)
	if m == nil {
		return "", 0, ""
	}
	if m[2] != "" {
		miles, _ := strconv.Atoi(m[2])
		furlongs += float64(miles * 8)
	}
	if m[3] != "" {
		f, _ := strconv.Atoi(m[3])
		furlongs += float64(f)
	}
	if m[4] != "" {
		furlongs += 0.5
	}
	return m[1], furlongs, m[5]
}
