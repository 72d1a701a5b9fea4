package agenda

// Lines formats up to limit entries (all of them if limit <= 0) as
// "Mon 02 15:04 Summary", or "Mon 02 all-day Summary".
func Lines(entries []Entry, limit int) []string {
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		when := e.Start.Format("15:04")
		if e.AllDay {
			when = "all-day"
		}
		summary := e.Summary
		if summary == "" {
			summary = "(no title)"
		}
		lines = append(lines, e.Start.Format("Mon 02")+" "+when+" "+summary)
	}
	return lines
}
