package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/cognicore/formline/pkg/formline"
	"github.com/cognicore/formline/pkg/formline/reconcile"
	"github.com/cognicore/formline/pkg/formline/store"
)

var (
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	titleStyle  = lipgloss.NewStyle().Bold(true)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...)
}

func renderIngest(s formline.Stats, took time.Duration) string {
	t := newTable("DOCUMENTS", "HORSES", "RUNS", "FAILURES", "ORPHANS", "REPAIRS", "RACES", "TIME").
		Row(
			strconv.Itoa(s.Documents),
			strconv.Itoa(s.Horses),
			strconv.Itoa(s.Runs),
			strconv.Itoa(s.HorseFailures+s.RunFailures),
			strconv.Itoa(s.OrphanRuns),
			strconv.Itoa(s.Repairs),
			strconv.Itoa(s.Races),
			took.Round(time.Millisecond).String(),
		)
	return t.String()
}

func renderUnresolved(rep reconcile.Report) string {
	t := newTable("DATE", "COURSE", "TYPE", "DIST", "GOING", "RAN", "PENDING", "HORSES")
	for _, u := range rep.Unresolved {
		t.Row(
			u.Key.Date,
			u.Key.Course,
			u.Key.TypeCode,
			formatFurlongs(u.Key.Distance),
			u.Key.Going,
			strconv.Itoa(u.Key.Ran),
			strconv.Itoa(u.Pending),
			horseNames(u.Horses),
		)
	}
	return titleStyle.Render(fmt.Sprintf("Unresolved races: %d", len(rep.Unresolved))) + "\n" + t.String()
}

func renderRace(r reconcile.Race) string {
	title := fmt.Sprintf("%s %s %s %s %s  ran %d  £%.1fk  [%s]",
		r.Key.Date, r.Course, r.Type.Code, formatFurlongs(r.Distance), r.Going, r.Ran, r.Prize, r.ID)

	t := newTable("POS", "HORSE", "FOALED", "WEIGHT", "JOCKEY", "BEATEN", "RATING")
	for _, rn := range r.Runners {
		run := rn.Run
		t.Row(
			run.Position.Code,
			rn.Name+countrySuffix(rn.Country),
			strconv.Itoa(rn.Year),
			run.WeightCode,
			run.Jockey,
			optFloat(run.Beaten),
			optInt(run.Rating),
		)
	}
	return titleStyle.Render(title) + "\n" + t.String()
}

func renderRaceList(races []reconcile.Race) string {
	t := newTable("ID", "COURSE", "TYPE", "DIST", "GOING", "RAN", "WINNER")
	for _, r := range races {
		winner := ""
		if len(r.Runners) > 0 {
			winner = r.Runners[0].Name
		}
		t.Row(r.ID, r.Course, r.Type.Code, formatFurlongs(r.Distance), r.Going, strconv.Itoa(r.Ran), winner)
	}
	return t.String()
}

func renderCounts(c store.Counts) string {
	return newTable("HORSES", "RUNS", "RACES").
		Row(strconv.Itoa(c.Horses), strconv.Itoa(c.Runs), strconv.Itoa(c.Races)).
		String()
}

// formatFurlongs prints a distance the way form books do, e.g. 2m4½f.
func formatFurlongs(f float64) string {
	whole := int(f)
	half := f-float64(whole) >= 0.5
	var b strings.Builder
	if m := whole / 8; m > 0 {
		fmt.Fprintf(&b, "%dm", m)
	}
	if rem := whole % 8; rem > 0 || half {
		if rem > 0 {
			b.WriteString(strconv.Itoa(rem))
		}
		if half {
			b.WriteString("½")
		}
		b.WriteString("f")
	}
	return b.String()
}

// horseNames strips the country and year from runner identities.
func horseNames(ids []string) string {
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i], _, _ = strings.Cut(id, "|")
	}
	return strings.Join(names, ", ")
}

func countrySuffix(cc string) string {
	if cc == "" || cc == "GB" {
		return ""
	}
	return " (" + cc + ")"
}

func optFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func optInt(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}
