package main

import (
	"maps"
	"slices"
	"strconv"
	"unicode/utf8"

	"fieldsync/internal/api"
)

func buildQueueStatusRows(stats api.QueueStats) [][]string {
	if stats.Pending == 0 && stats.DeadLetter == 0 {
		return nil
	}
	rows := [][]string{
		{"Pending", strconv.Itoa(stats.Pending)},
		{"Dead Letter", strconv.Itoa(stats.DeadLetter)},
	}
	for _, kind := range slices.Sorted(maps.Keys(stats.ByKind)) {
		rows = append(rows, []string{"  " + formatLabel(kind), strconv.Itoa(stats.ByKind[kind])})
	}
	return rows
}

// buildQueueListRows keeps the input order, which is replay order.
func buildQueueListRows(items []api.QueueItem) [][]string {
	if len(items) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		summary := item.Summary
		if summary == "" {
			summary = "-"
		}
		rows = append(rows, []string{
			item.ID,
			formatLabel(item.Kind),
			summary,
			formatLabel(item.Status),
			strconv.Itoa(item.Attempts),
			formatAge(item.CreatedAt),
			truncate(item.LastError, 48),
		})
	}
	return rows
}

func truncate(value string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(value) <= limit {
		return value
	}
	runes := []rune(value)
	return string(runes[:limit-1]) + "…"
}
