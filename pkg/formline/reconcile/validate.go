package reconcile

import (
	"fmt"
	"math"
	"sort"
)

// rejection explains why a candidate runner set is not a race. Intrinsic
// rejections depend only on the candidate and are safe to memoize; the rest
// depend on what else is pending under the key.
type rejection struct {
	reason    string
	intrinsic bool
}

func (r *rejection) Error() string { return r.reason }

func intrinsic(format string, args ...any) *rejection {
	return &rejection{reason: fmt.Sprintf(format, args...), intrinsic: true}
}

func contextual(format string, args ...any) *rejection {
	return &rejection{reason: fmt.Sprintf(format, args...)}
}

// validate checks cand as a complete race drawn from a pool whose other
// runners are excluded. It returns nil when cand is valid.
func validate(cand, excluded []Runner, tolerance float64) *rejection {
	fin := finishersByRank(cand)
	if rej := checkRanks(fin); rej != nil {
		return rej
	}
	if rej := checkRatings(fin); rej != nil {
		return rej
	}
	if rej := checkMargins(fin, tolerance); rej != nil {
		return rej
	}
	return checkLeftover(cand, fin, excluded)
}

// finishersByRank returns the finishers of rs ordered by rank; runners of
// equal rank keep their submission order.
func finishersByRank(rs []Runner) []Runner {
	var fin []Runner
	for _, r := range rs {
		if r.Finisher() {
			fin = append(fin, r)
		}
	}
	sort.SliceStable(fin, func(i, j int) bool { return fin[i].Rank() < fin[j].Rank() })
	return fin
}

// rankGroups splits rank-ordered finishers into runs of equal rank.
func rankGroups(fin []Runner) [][]Runner {
	var groups [][]Runner
	for i := 0; i < len(fin); {
		j := i + 1
		for j < len(fin) && fin[j].Rank() == fin[i].Rank() {
			j++
		}
		groups = append(groups, fin[i:j])
		i = j
	}
	return groups
}

// nextRankOK reports whether rank may follow prev. Dead heats collapse to
// one rank, so "=4 =4" is followed by 5.
func nextRankOK(prev, rank int) bool {
	return rank == prev+1
}

func checkRanks(fin []Runner) *rejection {
	groups := rankGroups(fin)
	prev := 0
	for _, g := range groups {
		rank := g[0].Rank()
		if !nextRankOK(prev, rank) {
			return intrinsic("rank %d follows %d", rank, prev)
		}
		if len(g) == 1 && g[0].Run.Position.Tied {
			return intrinsic("lone tie at %d", rank)
		}
		for _, r := range g {
			if len(g) > 1 && !r.Run.Position.Tied {
				return intrinsic("rank %d shared without tie mark", rank)
			}
		}
		prev = rank
	}
	return nil
}

// checkRatings requires adjusted ratings to be non-increasing in finishing
// order. Dead-heated runners are compared as a group. Skipped unless every
// finisher is rated.
func checkRatings(fin []Runner) *rejection {
	for _, r := range fin {
		if r.Run.Rating == nil {
			return nil
		}
	}
	groups := rankGroups(fin)
	for i := 1; i < len(groups); i++ {
		lo, _ := adjustedRange(groups[i-1])
		_, hi := adjustedRange(groups[i])
		if hi > lo {
			return intrinsic("rating rises at rank %d", groups[i][0].Rank())
		}
	}
	return nil
}

func adjustedRange(g []Runner) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, r := range g {
		v, _ := r.Run.AdjustedRating()
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	return lo, hi
}

// checkMargins requires the rating lost per length to be roughly constant
// through the field. The winner to runner-up pair is skipped because the
// winner's margin is the distance it won by.
func checkMargins(fin []Runner, tolerance float64) *rejection {
	type point struct {
		rank   int
		rating float64
		beaten float64
	}
	var pts []point
	for _, r := range fin {
		v, ok := r.Run.AdjustedRating()
		if !ok || r.Run.Beaten == nil {
			continue
		}
		pts = append(pts, point{r.Rank(), v, *r.Run.Beaten})
	}
	if len(pts) < 3 {
		return nil
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for i := 0; i+1 < len(pts); i++ {
		a, b := pts[i], pts[i+1]
		if a.rank == 1 {
			continue
		}
		dd := b.beaten - a.beaten
		if dd == 0 {
			continue
		}
		ratio := (a.rating - b.rating) / dd
		lo, hi = math.Min(lo, ratio), math.Max(hi, ratio)
	}
	if hi-lo > tolerance {
		return intrinsic("rating per length spread %.2f exceeds %.2f", hi-lo, tolerance)
	}
	return nil
}

// checkLeftover rejects candidates padded with non-finishers that leave out
// the finisher continuing their ranking. A full set of finishers is complete
// on its own, so whatever it excludes belongs to another race.
func checkLeftover(cand, fin, excluded []Runner) *rejection {
	if len(excluded) == 0 || len(fin) == len(cand) {
		return nil
	}

	prev := 0
	if len(fin) > 0 {
		prev = fin[len(fin)-1].Rank()
	}
	for _, r := range excluded {
		if r.Finisher() && nextRankOK(prev, r.Rank()) {
			return contextual("excludes %s placed %d", r.HorseID, r.Rank())
		}
	}
	return nil
}
