package reconcile

import (
	"fmt"
	"strconv"
	"time"

	"github.com/cognicore/formline/pkg/formline/decode"
)

// RaceKey is the identity a run line implies for its race. Divided races on
// the same card share a key, so one key can hold runners of several races.
type RaceKey struct {
	Date       string // 2006-01-02
	Discipline decode.Discipline
	TypeCode   string
	Course     string
	Ran        int
	Distance   float64 // furlongs
	Going      string
}

// KeyOf derives the race key of a run.
func KeyOf(r decode.Run) RaceKey {
	return RaceKey{
		Date:       r.Date.Format("2006-01-02"),
		Discipline: r.Type.Discipline,
		TypeCode:   r.Type.Code,
		Course:     r.Course,
		Ran:        r.Ran,
		Distance:   r.Distance,
		Going:      r.Going,
	}
}

func (k RaceKey) String() string {
	return fmt.Sprintf("%s %s %s %sf %s ran=%d", k.Date, k.Course, k.TypeCode,
		strconv.FormatFloat(k.Distance, 'f', -1, 64), k.Going, k.Ran)
}

// Runner is one horse's run in a race. Runners are never modified once
// submitted.
type Runner struct {
	HorseID string // decode.Horse.Identity
	Name    string
	Country string
	Year    int
	Trainer string
	Run     decode.Run
}

// NewRunner pairs a horse with one of its runs.
func NewRunner(h decode.Horse, r decode.Run) Runner {
	return Runner{
		HorseID: h.Identity(),
		Name:    h.Name,
		Country: h.Country,
		Year:    h.Year,
		Trainer: h.Trainer,
		Run:     r,
	}
}

// Finisher reports whether the runner completed the race.
func (r Runner) Finisher() bool {
	return r.Run.Position.Finisher
}

// Rank is the finishing rank, 0 for non-finishers.
func (r Runner) Rank() int {
	return r.Run.Position.Rank
}

// Race is a finalized race: the declared attributes and the runners in
// finishing order, non-finishers last.
type Race struct {
	ID       string
	Key      RaceKey
	Date     time.Time
	Course   string
	Type     decode.RaceType
	Prize    float64
	Distance float64
	Going    string
	Ran      int
	Runners  []Runner
}
