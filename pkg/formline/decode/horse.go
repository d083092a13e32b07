package decode

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/cognicore/formline/pkg/formline/ingest"
)

var (
	countryPattern     = regexp.MustCompile(`^\(([A-Z]{2,3})\)$`)
	agePattern         = regexp.MustCompile(`^\d{1,2}$`)
	trainerFormPattern = regexp.MustCompile(`^\d{1,3}%$`)
	careerPrizePattern = regexp.MustCompile(`^£(\d{1,3}(?:,\d{3})*|\d+)$`)
)

// DecodeHorse applies the horse header grammar
//
//	NAME+ [(CC)] AGE TRAINER+ [FORM%] PRIZE
//
// to the buffered tokens. The foaling year is epoch minus age.
func DecodeHorse(toks []string, epoch int, defaultCountry string) (Horse, error) {
	i := 0
	for i < len(toks) && ingest.IsHorseName(toks[i]) {
		i++
	}
	if i == 0 {
		return Horse{}, horseErr(toks, "no name")
	}
	h := Horse{Name: strings.Join(toks[:i], " "), Country: defaultCountry}

	if i < len(toks) {
		if m := countryPattern.FindStringSubmatch(toks[i]); m != nil {
			h.Country = m[1]
			i++
		}
	}

	if i >= len(toks) || !agePattern.MatchString(toks[i]) {
		return Horse{}, horseErr(toks, "missing age")
	}
	age, _ := strconv.Atoi(toks[i])
	h.Year = epoch - age
	i++

	end := len(toks) - 1
	if end < i {
		return Horse{}, horseErr(toks, "missing trainer and prize money")
	}
	m := careerPrizePattern.FindStringSubmatch(toks[end])
	if m == nil {
		return Horse{}, horseErr(toks, "bad prize money %q", toks[end])
	}
	h.PrizeCode = toks[end]
	h.PrizeMoney, _ = strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))

	if end-1 >= i && trainerFormPattern.MatchString(toks[end-1]) {
		h.TrainerForm = toks[end-1]
		end--
	}
	if end <= i {
		return Horse{}, horseErr(toks, "missing trainer")
	}
	h.Trainer = strings.Join(toks[i:end], " ")
	return h, nil
}
