// Command pulse-generate runs one discover-and-analyze cycle and exits.
// It exits 1 when no report was published, so a CI job fails visibly.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/bobmcallan/pulse/internal/app"
	"github.com/bobmcallan/pulse/internal/clients/gemini"
	"github.com/bobmcallan/pulse/internal/common"
	"github.com/bobmcallan/pulse/internal/models"
)

// runTimeout bounds the whole run including retries.
const runTimeout = 30 * time.Minute

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run parses args, generates one report and prints its summary as JSON.
func run(args []string, stdout, stderr io.Writer, opts ...app.Option) int {
	fs := flag.NewFlagSet("pulse-generate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Configuration file path (default: PULSE_CONFIG, then pulse.toml beside the binary)")
	market := fs.String("market", "", "Market to cover: KR or US (default: chosen by the current Seoul time)")
	ticker := fs.String("ticker", "", "Analyze this ticker instead of letting the model pick one")
	scheduled := fs.Bool("scheduled", false, "Apply the weekday gate: skip Saturday and Sunday")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	a, err := app.NewApp(*configPath, opts...)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to initialize app: %v\n", err)
		return 1
	}
	defer a.Close()

	if *scheduled && a.Config.Schedule.WeekdaysOnly && a.Clock.IsWeekend(a.Clock.Now()) {
		a.Logger.Info().Msg("Weekend: skipping scheduled generation")
		return 0
	}

	req := models.GenerateRequest{
		Market:  models.Market(strings.ToUpper(strings.TrimSpace(*market))),
		Ticker:  strings.ToUpper(strings.TrimSpace(*ticker)),
		Trigger: "cli",
	}
	if *scheduled {
		req.Trigger = "schedule"
	}

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	report, err := a.Analysis.Generate(ctx, req)
	if err != nil {
		class := gemini.Classify(err)
		fmt.Fprintf(stderr, "%s\n%v\n", models.StatusMessage(class), err)
		return 1
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report.Summarize()); err != nil {
		fmt.Fprintf(stderr, "Failed to write summary: %v\n", err)
		return 1
	}

	a.Logger.Info().
		Str("report_id", report.ID).
		Str("ticker", report.Ticker).
		Str("version", common.GetVersion()).
		Msg("Report published")
	return 0
}
