package plan

import (
	"fmt"
	"io"
	"strings"

	"github.com/brimdata/conclave/job"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
)

// agree reports how two parties' plans of the same protocol differ.
// The plans may differ only in which jobs each party skips.
func agree(a, b []*job.Job) error {
	if len(a) != len(b) {
		return fmt.Errorf("%d jobs and %d jobs", len(a), len(b))
	}
	for k := range a {
		if a[k].Name != b[k].Name || a[k].Framework != b[k].Framework || !a[k].Owners.Equal(b[k].Owners) {
			return fmt.Errorf("job %d is %s and %s", k, a[k], b[k])
		}
	}
	return nil
}

// render writes plans, which agree, as a markdown table with one row per
// job and one column per party telling whether the party runs the job.
// MPC frameworks are highlighted.
func render(w io.Writer, plans [][]*job.Job, pids []int) error {
	if len(plans) == 0 {
		return nil
	}
	headers := []string{"JOB", "FRAMEWORK", "OWNERS", "INPUTS"}
	for _, pid := range pids {
		headers = append(headers, fmt.Sprintf("PARTY %d", pid))
	}
	var b strings.Builder
	table := tablewriter.NewTable(&b,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)
	table.Header(headers)
	for k, j := range plans[0] {
		framework := j.Framework
		if len(j.Owners) > 1 {
			framework = color.CyanString(framework)
		}
		row := []string{j.Name, framework, j.Owners.String(), j.Inputs.String()}
		for _, plan := range plans {
			row = append(row, runs(plan[k]))
		}
		table.Append(row)
	}
	table.Render()
	_, err := io.WriteString(w, b.String())
	return err
}

func runs(j *job.Job) string {
	if j.Skip {
		return "skip"
	}
	return color.GreenString("run")
}
