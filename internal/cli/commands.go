package cli

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/AngelCh415/dmlab/internal/export"
	"github.com/AngelCh415/dmlab/internal/kpi"
	"github.com/AngelCh415/dmlab/internal/metrics"
	"github.com/AngelCh415/dmlab/internal/persist"
)

// Filters are the log criteria shared by report and export.
type Filters struct {
	Account    string `help:"Account id."`
	Campaign   string `help:"Campaign tag."`
	Experiment string `help:"Experiment id."`
	Variant    string `help:"Variant id."`
	Start      string `help:"First date, YYYY-MM-DD."`
	End        string `help:"Last date, YYYY-MM-DD."`
	OldLeads   string `help:"Old-leads lane: include, exclude or only."`
}

func (f Filters) criteria() (kpi.Criteria, error) {
	return metrics.CriteriaFromQuery(url.Values{
		"accountId":    {f.Account},
		"campaignTag":  {f.Campaign},
		"experimentId": {f.Experiment},
		"variantId":    {f.Variant},
		"start":        {f.Start},
		"end":          {f.End},
		"oldLeads":     {f.OldLeads},
	})
}

type ReportCmd struct {
	Filters
	By string `help:"Break down by account, campaign, date, experiment or variant."`
}

func (c *ReportCmd) Run(ctx *Context) error {
	crit, err := c.criteria()
	if err != nil {
		return err
	}
	if c.By != "" {
		page, err := ctx.Service.Breakdown(ctx.Ctx, metrics.Dimension(c.By), crit, 1000, 0)
		if err != nil {
			return err
		}
		return ctx.printJSON(page)
	}
	rep, err := ctx.Service.Report(ctx.Ctx, crit)
	if err != nil {
		return err
	}
	return ctx.printJSON(rep)
}

type EvaluateCmd struct {
	Filters
	ExperimentID string `arg:"" help:"Experiment id."`
	JSON         bool   `help:"Print the full evaluation as JSON."`
}

func (c *EvaluateCmd) Run(ctx *Context) error {
	crit, err := c.criteria()
	if err != nil {
		return err
	}
	ev, err := ctx.Service.Evaluate(ctx.Ctx, c.ExperimentID, crit)
	if err != nil {
		return err
	}
	if c.JSON {
		return ctx.printJSON(ev)
	}
	tw := tabwriter.NewWriter(ctx.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "VARIANT\tNAME\tSEEN\tVALID\t%s\n", ev.PrimaryMetric)
	for _, v := range ev.VariantStats {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%t\t%s\n", v.VariantID, v.Name, v.Seen, v.IsValid, pct(v.MetricValue))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if ev.InsufficientSample() {
		_, err = fmt.Fprintf(ctx.Out, "insufficient sample (need %d seen per variant)\n", ev.RequiredSampleSizeSeen)
		return err
	}
	_, err = fmt.Fprintf(ctx.Out, "winner: %s (%s %s)\n", ev.Winner.VariantID, ev.PrimaryMetric, pct(ev.Winner.MetricValue))
	return err
}

func pct(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f%%", *v*100)
}

// MigrateCmd rewrites the state at the current schema version.
type MigrateCmd struct {
	Out string `help:"Write to this path instead of rewriting the state file." type:"path"`
}

func (c *MigrateCmd) Run(ctx *Context) error {
	var err error
	if c.Out != "" {
		env, _ := ctx.Store.Envelope(time.Now())
		err = persist.NewFileStore(c.Out).Save(ctx.Ctx, env)
	} else {
		err = ctx.Manager.Save(ctx.Ctx)
	}
	if err != nil {
		return err
	}
	if !ctx.Report.Migrated() {
		_, err = fmt.Fprintf(ctx.Out, "state already at schema v%d\n", ctx.Report.DetectedVersion)
		return err
	}
	_, err = fmt.Fprintf(ctx.Out, "migrated from schema v%d (%s)\n", ctx.Report.DetectedVersion, strings.Join(ctx.Report.Migrations, ", "))
	return err
}

type ExportCmd struct {
	Filters
	Out string `help:"CSV destination; stdout when empty." type:"path"`
}

func (c *ExportCmd) Run(ctx *Context) error {
	crit, err := c.criteria()
	if err != nil {
		return err
	}
	logs := kpi.Filter(ctx.Store.Snapshot().Logs, crit)
	if c.Out == "" {
		return export.WriteCSV(ctx.Out, logs)
	}
	f, err := os.Create(c.Out)
	if err != nil {
		return err
	}
	if err := export.WriteCSV(f, logs); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

type ImportCmd struct {
	Path string `arg:"" help:"CSV file to append as logs." type:"existingfile"`
}

func (c *ImportCmd) Run(ctx *Context) error {
	f, err := os.Open(c.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	logs, _, err := export.ReadCSV(f)
	if err != nil {
		return fmt.Errorf("read %s: %w", c.Path, err)
	}
	added, err := ctx.Store.ImportLogs(logs)
	if err != nil {
		return err
	}
	if err := ctx.Manager.Save(ctx.Ctx); err != nil {
		return err
	}
	_, err = fmt.Fprintf(ctx.Out, "imported %d logs\n", len(added))
	return err
}
