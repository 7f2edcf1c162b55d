package mcpserver

// DocumentFormatContract describes the document format that LLM consumers
// should follow when reading or editing workspace documents.
const DocumentFormatContract = `# GTD Space Document Format Contract

Every document is a UTF-8 Markdown file. Prose is free-form; structured
fields are carried by inline tags. The file on disk is the only source of
truth, so edit fields through the tools instead of rewriting whole files.

## Layout

` + "```" + `markdown
# Title

Optional intro prose.

## Status
[!singleselect:status:in-progress]

## Focus Date
[!datetime:focus_date_time:2024-06-04T09:00:00]

## Due Date
[!datetime:due_date:2024-06-05]

## Effort
[!singleselect:effort:medium]

## References
[!references:references:Goals/Run a marathon.md,Areas of Focus/Health.md]

## Notes
Free prose. Use [[wikilinks]] or [[target|alias]] to point at documents.
` + "```" + `

## Tag grammar

- A tag is ` + "`" + `[!<type>:<key>:<value>]` + "`" + `. Types: checkbox, singleselect,
  multiselect, datetime, text, references.
- Dates are ` + "`" + `YYYY-MM-DD` + "`" + `; datetimes are ` + "`" + `YYYY-MM-DDTHH:MM:SS` + "`" + ` in local
  wall-clock time without an offset.
- Reference lists are written comma-joined with forward-slash paths. JSON
  arrays are read but never written.
- Keys by document kind:
  - action: status (in-progress, waiting, completed), focus_date_time,
    due_date, effort (small, medium, large, extra-large), references
  - project (` + "`" + `Projects/<name>/README.md` + "`" + `): project-status, due_date, created_date
  - habit (` + "`" + `Habits/<name>.md` + "`" + `): habit-status (true/false), habit-frequency
    (5-minute, daily, weekdays, every-other-day, twice-weekly, weekly,
    biweekly, monthly), focus_date_time (time of day), created_date
  - areas, goals, vision, purpose: <horizon>-references lists

## History ledger

Habit documents keep an append-only table under ` + "`" + `## History` + "`" + `:

` + "```" + `markdown
| Date | Time | Status | Action | Notes |
|------|------|--------|--------|-------|
| 2024-06-03 | 7:00 AM | Complete | Manual | Marked as complete |
| 2024-06-04 | 12:00 AM | To Do | Auto-Reset | New period started |
` + "```" + `

- Status is one of To Do, Complete, Missed.
- Action is one of Created, Manual, Auto-Reset.
- Line breaks inside a cell are written as ` + "`" + `<br>` + "`" + `; a literal ` + "`" + `|` + "`" + ` is written as ` + "`" + `\|` + "`" + `.
- Never edit or remove existing rows. Use the set_habit_status tool.

## Scheduling

- move_entry changes due_date or focus_date_time of the source document.
  Habit occurrences and external events cannot be moved.
- resize_entry maps a duration onto the nearest effort bucket
  (small 30m, medium 60m, large 120m, extra-large 180m).
`
