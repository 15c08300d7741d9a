package main

import (
	"fmt"
	"io"
	"slices"
	"text/tabwriter"
	"time"

	"deslab/internal/storage"
)

// loadHistory returns up to limit runs, newest first. since and until bound
// the start time when set; a date without a time covers the whole day.
func loadHistory(store *storage.Store, since, until string, limit int) ([]storage.RunRecord, error) {
	if since == "" && until == "" {
		return store.ListRuns(limit)
	}

	start, end := time.Unix(0, 0), time.Now()
	if since != "" {
		t, _, err := parseHistoryTime(since)
		if err != nil {
			return nil, fmt.Errorf("invalid --since: %w", err)
		}
		start = t
	}
	if until != "" {
		t, dateOnly, err := parseHistoryTime(until)
		if err != nil {
			return nil, fmt.Errorf("invalid --until: %w", err)
		}
		if dateOnly {
			t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		end = t
	}
	if end.Before(start) {
		return nil, fmt.Errorf("--until %s is before --since %s", until, since)
	}

	runs, err := store.RunsBetween(start, end)
	if err != nil {
		return nil, err
	}
	slices.Reverse(runs)
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// parseHistoryTime accepts RFC 3339 timestamps and local dates (2006-01-02).
func parseHistoryTime(v string) (time.Time, bool, error) {
	if t, err := time.ParseInLocation(time.DateOnly, v, time.Local); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	return t, false, err
}

// printHistory writes one line per run with its best method.
func printHistory(w io.Writer, runs []storage.RunRecord) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs recorded.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tID\tDATASET\tSAMPLES\tPOOL\tBEST\tACCURACY")
	for _, r := range runs {
		best, acc := "-", "-"
		if m, ok := bestMethod(r.Results); ok {
			best, acc = m.Name, fmt.Sprintf("%.4f", m.Accuracy)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.4f\t%s\t%s\n",
			r.StartedAt.Local().Format(time.DateTime), shortID(r.ID), r.Dataset,
			r.Samples, r.PoolAccuracy, best, acc)
	}
	return tw.Flush()
}

func bestMethod(results []storage.MethodResult) (storage.MethodResult, bool) {
	if len(results) == 0 {
		return storage.MethodResult{}, false
	}
	best := results[0]
	for _, m := range results[1:] {
		if m.Accuracy > best.Accuracy {
			best = m
		}
	}
	return best, true
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
