package decode

import (
	"fmt"
	"time"
)

// Horse is a decoded horse header together with the runs decoded so far.
// A Horse handed to an EmitFunc is owned by the receiver.
type Horse struct {
	Name        string
	Country     string
	Year        int // foaling year
	Trainer     string
	TrainerForm string // e.g. "18%", empty when not printed
	PrizeCode   string // career prize-money code as printed, e.g. "£45,600"
	PrizeMoney  int    // PrizeCode in pounds
	Runs        []Run
}

// Identity is the (name, country, year) merge key of a horse.
func (h Horse) Identity() string {
	return fmt.Sprintf("%s|%s|%d", h.Name, h.Country, h.Year)
}

// Discipline is the first letter of a race-type code.
type Discipline string

const (
	Flat   Discipline = "F"
	Hurdle Discipline = "H"
	Chase  Discipline = "C"
	Bumper Discipline = "B"
)

// RaceType is a parsed race-type code such as "Hh" (handicap hurdle).
type RaceType struct {
	Code       string
	Discipline Discipline
	Handicap   bool
	Novice     bool
	Maiden     bool
	Seller     bool
	Graded     bool
}

// Position is a parsed finishing-position code.
type Position struct {
	Code     string
	Finisher bool
	Rank     int  // 0 for non-finishers
	Tied     bool // "=N"
	PlacedAs int  // Y of an "XpY" code
	Jump     string
}

// Run is one decoded run line.
type Run struct {
	Date         time.Time
	Type         RaceType
	Prize        float64 // winner's prize, £ thousands
	Course       string
	Ran          int // declared field size
	WeightCode   string
	Weight       int // pounds
	Headgear     string
	Allowance    int
	Jockey       string
	Position     Position
	Beaten       *float64 // lengths; winning margin for the winner
	TimeRating   *int
	DistanceCode string
	Distance     float64 // furlongs
	Going        string
	Rating       *int // form rating
}

// AdjustedRating is the form rating less carried weight and allowance. ok is
// false when the run has no form rating.
func (r Run) AdjustedRating() (float64, bool) {
	if r.Rating == nil {
		return 0, false
	}
	return float64(*r.Rating - (r.Weight + r.Allowance)), true
}
