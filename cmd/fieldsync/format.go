package main

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"fieldsync/internal/api"
	"fieldsync/internal/backend"
	"fieldsync/internal/session"
)

var titleCaser = cases.Title(language.English)

// formatLabel turns identifiers such as dead_letter or check-in into
// "Dead Letter" and "Check In".
func formatLabel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	value = strings.NewReplacer("_", " ", "-", " ").Replace(value)
	return titleCaser.String(strings.ToLower(value))
}

func formatDistance(meters float64) string {
	if meters >= 1000 {
		return fmt.Sprintf("%s km", humanize.FormatFloat("#,###.#", meters/1000))
	}
	return fmt.Sprintf("%d m", int(math.Round(meters)))
}

// formatAge renders a queue timestamp relative to now.
func formatAge(value string) string {
	t, err := api.ParseTime(value)
	if err != nil || t.IsZero() {
		return strings.TrimSpace(value)
	}
	return humanize.Time(t)
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04")
}

func sortedTasks(tasks []backend.Task) []backend.Task {
	sorted := slices.Clone(tasks)
	slices.SortStableFunc(sorted, func(a, b backend.Task) int {
		return cmp.Compare(a.Order, b.Order)
	})
	return sorted
}

func visitLabel(v *session.ActiveVisit) string {
	if v == nil {
		return ""
	}
	name := v.StoreName
	if name == "" {
		name = v.StoreID
	}
	label := fmt.Sprintf("%s since %s", name, formatTimestamp(v.CheckedInAt))
	if v.VisitID == "" {
		label += " (check-in queued)"
	}
	return label
}
