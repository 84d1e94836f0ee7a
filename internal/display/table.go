package display

import (
	"strconv"

	"github.com/pterm/pterm"

	"github.com/backmassage/posepipe/internal/batch"
	"github.com/backmassage/posepipe/internal/history"
)

// ReportTable renders the per-item results of a finalized report.
func ReportTable(r *batch.Report) (string, error) {
	data := pterm.TableData{{"#", "ID", "Status", "Exit", "Duration", "Message"}}
	for i, res := range r.Results {
		exit := ""
		if res.Status == batch.StatusFailed {
			exit = strconv.Itoa(res.ExitCode)
		}
		dur := ""
		if res.Duration > 0 {
			dur = FormatDuration(res.Duration)
		}
		data = append(data, []string{
			strconv.Itoa(i + 1), res.Identifier, statusLabel(res.Status), exit, dur, res.Message,
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
}

// RunsTable renders recorded runs, newest first.
func RunsTable(runs []history.Run) (string, error) {
	data := pterm.TableData{{"Run", "Stage", "Started", "Duration", "Total", "OK", "Up to date", "Skipped", "Failed", "Flags"}}
	for _, r := range runs {
		flags := ""
		if r.DryRun {
			flags += "dry-run "
		}
		if r.Interrupted {
			flags += "interrupted"
		}
		data = append(data, []string{
			shortID(r.ID), r.Stage, r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			FormatDuration(r.FinishedAt.Sub(r.StartedAt)),
			strconv.Itoa(r.Total), strconv.Itoa(r.Succeeded), strconv.Itoa(r.UpToDate),
			strconv.Itoa(r.Skipped), strconv.Itoa(r.Failed), flags,
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
}

// ItemsTable renders the recorded items of one run.
func ItemsTable(items []history.Item) (string, error) {
	data := pterm.TableData{{"#", "ID", "Status", "Exit", "Duration", "Message"}}
	for _, it := range items {
		data = append(data, []string{
			strconv.Itoa(it.Position + 1), it.Identifier, statusLabel(it.Status),
			strconv.Itoa(it.ExitCode), FormatDuration(it.Duration), it.Message,
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func statusLabel(s batch.Status) string {
	switch s {
	case batch.StatusSucceeded:
		return pterm.Green(string(s))
	case batch.StatusUpToDate:
		return pterm.Cyan(string(s))
	case batch.StatusSkippedMissingInput:
		return pterm.Yellow(string(s))
	case batch.StatusFailed:
		return pterm.Red(string(s))
	}
	return string(s)
}
