package reconcile

import (
	"sort"
	"strings"
)

// Result splits a pending pool into a complete race, in finishing order, and
// the runners still waiting for theirs.
type Result struct {
	Complete []Runner
	Todo     []Runner
}

// memo holds the identity sets of candidates already rejected for a key.
type memo map[string]struct{}

func identity(rs []Runner) string {
	ids := make([]string, len(rs))
	for i, r := range rs {
		ids[i] = r.HorseID
	}
	sort.Strings(ids)
	return strings.Join(ids, "\x00")
}

// checker searches one pool for a valid size-n subset.
type checker struct {
	pool      []Runner
	n         int
	tolerance float64
	memo      memo

	fin []int // pool indexes of finishers, by rank
	non []int // pool indexes of non-finishers

	tested   int
	memoHits int
}

func newChecker(pool []Runner, n int, tolerance float64, m memo) *checker {
	c := &checker{pool: pool, n: n, tolerance: tolerance, memo: m}
	for i, r := range pool {
		if r.Finisher() {
			c.fin = append(c.fin, i)
		} else {
			c.non = append(c.non, i)
		}
	}
	sort.SliceStable(c.fin, func(i, j int) bool {
		return pool[c.fin[i]].Rank() < pool[c.fin[j]].Rank()
	})
	return c
}

// check returns the first valid candidate, or nil.
func (c *checker) check() []int {
	if len(c.pool) < c.n {
		return nil
	}
	if len(c.fin) == c.n {
		if c.try(c.fin) {
			return c.fin
		}
	}
	return c.search()
}

// search enumerates rank-consistent finisher chains starting at a winner,
// longest first, padding short chains with non-finishers. Candidates made
// only of non-finishers come last.
func (c *checker) search() []int {
	hasWinner := len(c.fin) > 0 && c.pool[c.fin[0]].Rank() == 1
	if !hasWinner && len(c.non) < c.n {
		return nil
	}

	var found []int
	if hasWinner {
		for k := min(c.n, len(c.fin)); k >= 1 && found == nil; k-- {
			if c.n-k > len(c.non) {
				continue
			}
			c.chains(k, func(chain []int) bool {
				return c.combine(chain, c.n-k, func(cand []int) bool {
					if c.try(cand) {
						found = append([]int(nil), cand...)
						return true
					}
					return false
				})
			})
		}
	}
	if found == nil && len(c.non) >= c.n {
		c.combine(nil, c.n, func(cand []int) bool {
			if c.try(cand) {
				found = append([]int(nil), cand...)
				return true
			}
			return false
		})
	}
	return found
}

// chains calls fn with every chain of k finishers that starts at rank 1 and
// grows by the next rank or by a dead heat with its last runner. fn returns
// true to stop.
func (c *checker) chains(k int, fn func([]int) bool) {
	chain := make([]int, 0, k)
	var grow func(from int) bool
	grow = func(from int) bool {
		if len(chain) == k {
			return fn(chain)
		}
		last := c.pool[chain[len(chain)-1]]
		for j := from; j < len(c.fin); j++ {
			next := c.pool[c.fin[j]]
			switch {
			case next.Rank() == last.Rank():
				if !last.Run.Position.Tied || !next.Run.Position.Tied {
					continue
				}
			case nextRankOK(last.Rank(), next.Rank()):
			default:
				return false
			}
			chain = append(chain, c.fin[j])
			stop := grow(j + 1)
			chain = chain[:len(chain)-1]
			if stop {
				return true
			}
		}
		return false
	}
	for j, i := range c.fin {
		if c.pool[i].Rank() != 1 {
			break
		}
		chain = append(chain[:0], i)
		if grow(j + 1) {
			return
		}
	}
}

// combine calls fn with base extended by every m-subset of the non-finishers.
func (c *checker) combine(base []int, m int, fn func([]int) bool) bool {
	cand := append(make([]int, 0, len(base)+m), base...)
	var pick func(from, left int) bool
	pick = func(from, left int) bool {
		if left == 0 {
			return fn(cand)
		}
		for j := from; j <= len(c.non)-left; j++ {
			cand = append(cand, c.non[j])
			stop := pick(j+1, left-1)
			cand = cand[:len(cand)-1]
			if stop {
				return true
			}
		}
		return false
	}
	return pick(0, m)
}

// try validates one candidate, consulting and feeding the memo.
func (c *checker) try(idx []int) bool {
	cand := c.runners(idx)
	id := identity(cand)
	if _, seen := c.memo[id]; seen {
		c.memoHits++
		return false
	}
	c.tested++

	rej := validate(cand, c.excluded(idx), c.tolerance)
	if rej == nil {
		return true
	}
	if rej.intrinsic {
		c.memo[id] = struct{}{}
	}
	return false
}

func (c *checker) runners(idx []int) []Runner {
	out := make([]Runner, len(idx))
	for i, j := range idx {
		out[i] = c.pool[j]
	}
	return out
}

func (c *checker) excluded(idx []int) []Runner {
	in := make(map[int]bool, len(idx))
	for _, j := range idx {
		in[j] = true
	}
	var out []Runner
	for i, r := range c.pool {
		if !in[i] {
			out = append(out, r)
		}
	}
	return out
}

// split orders the chosen runners for the race record and returns the rest
// of the pool in submission order.
func (c *checker) split(idx []int) Result {
	cand := c.runners(idx)
	complete := finishersByRank(cand)
	for _, r := range cand {
		if !r.Finisher() {
			complete = append(complete, r)
		}
	}
	return Result{Complete: complete, Todo: c.excluded(idx)}
}
