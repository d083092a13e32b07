package ingest

import (
	"regexp"
	"time"
)

// Kind is the class of a token as seen by the decoder.
type Kind int

const (
	Data Kind = iota
	HorseName
	RaceDate
	TitleMarker
	Continuation
)

func (k Kind) String() string {
	switch k {
	case HorseName:
		return "horse-name"
	case RaceDate:
		return "race-date"
	case TitleMarker:
		return "title-marker"
	case Continuation:
		return "continuation"
	default:
		return "data"
	}
}

// DateLayout is the layout of race-date tokens, e.g. 12Mar24.
const DateLayout = "2Jan06"

var raceDatePattern = regexp.MustCompile(`^\d{1,2}(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\d{2}$`)

// Classifier assigns a Kind to each token. The markers are literals that come
// from the decoder configuration.
type Classifier struct {
	TitleMarker        string
	ContinuationMarker string
}

// Classify returns the kind of a single token. Marker checks come first so a
// marker that looks like a horse name is still treated as a marker.
func (c Classifier) Classify(text string) Kind {
	switch {
	case c.TitleMarker != "" && text == c.TitleMarker:
		return TitleMarker
	case c.ContinuationMarker != "" && text == c.ContinuationMarker:
		return Continuation
	case IsRaceDate(text):
		return RaceDate
	case IsHorseName(text):
		return HorseName
	}
	return Data
}

// IsHorseName reports whether text is an all-capitals name word. Apostrophes
// and hyphens are allowed, and a full stop may follow a letter as in MR. At
// least two letters are required so that single capital initials of trainers
// and jockeys do not qualify.
func IsHorseName(text string) bool {
	letters := 0
	prev := rune(0)
	for _, r := range text {
		switch {
		case r >= 'A' && r <= 'Z':
			letters++
		case r == '\'' || r == '-':
		case r == '.' && prev >= 'A' && prev <= 'Z':
		default:
			return false
		}
		prev = r
	}
	return letters >= 2
}

// IsRaceDate reports whether text is a race-date token.
func IsRaceDate(text string) bool {
	if !raceDatePattern.MatchString(text) {
		return false
	}
	_, err := ParseRaceDate(text)
	return err == nil
}

// ParseRaceDate parses a race-date token such as 12Mar24.
func ParseRaceDate(text string) (time.Time, error) {
	return time.Parse(DateLayout, text)
}
