package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	flags "github.com/jessevdk/go-flags"
	"github.com/mbtcdash/peerscope"
	"github.com/mbtcdash/peerscope/asdiv"
	"github.com/mbtcdash/peerscope/feed"
	"github.com/mbtcdash/peerscope/signal"
	"github.com/urfave/cli"
)

var runCommand = cli.Command{
	Name:            "run",
	Usage:           "Run the peerscope daemon",
	ArgsUsage:       "[daemon options]",
	SkipFlagParsing: true,
	Description: `
	Poll the configured peer snapshot source, maintain the operator
	diversity analysis and log score movements until interrupted.

	Daemon options are parsed separately from this command's own
	arguments and may also come from the configuration file; pass
	--help after the command to list them.`,
	Action: runDaemon,
}

func runDaemon(ctx *cli.Context) error {
	// Load the configuration, and parse the remaining command line
	// options. This function will also set up logging properly.
	cfg, err := peerscope.LoadConfig(ctx.Args())
	if err != nil {
		// Help output has already been printed by the config
		// parser.
		var flagErr *flags.Error
		if errors.As(err, &flagErr) &&
			flagErr.Type == flags.ErrHelp {

			return nil
		}

		return err
	}

	// Hook interceptor for os signals.
	interceptor, err := signal.Intercept()
	if err != nil {
		return err
	}

	return peerscope.Main(cfg, interceptor)
}

// snapshotFlags are shared by the one-shot analysis commands.
var snapshotFlags = []cli.Flag{
	cli.StringFlag{
		Name: "feedurl",
		Usage: "HTTP endpoint serving the peer snapshot " +
			"contract (/api/peers).",
	},
	cli.StringFlag{
		Name:  "feedfile",
		Usage: "Path to a JSON peer snapshot file.",
	},
	cli.IntFlag{
		Name:  "topproviders",
		Value: asdiv.DefaultMaxSegments,
		Usage: "Number of providers ranked on their own before " +
			"the rest folds into Others.",
	},
}

var analyzeCommand = cli.Command{
	Name:      "analyze",
	Usage:     "Analyze one peer snapshot and print the provider table",
	ArgsUsage: "[snapshot file]",
	Description: `
	Fetch a single peer snapshot, classify the peers by operator and
	print the ranked provider table together with the diversity
	score.`,
	Flags:  snapshotFlags,
	Action: analyzeSnapshot,
}

var scoreCommand = cli.Command{
	Name:      "score",
	Usage:     "Print the diversity score of one peer snapshot",
	ArgsUsage: "[snapshot file]",
	Flags:     snapshotFlags,
	Action:    scoreSnapshot,
}

// fetchAnalysis resolves the snapshot source selected by the command
// line and runs one aggregation pass over it.
func fetchAnalysis(ctx *cli.Context) (*asdiv.Analysis, error) {
	var source feed.Source
	switch {
	case ctx.String("feedurl") != "":
		source = feed.NewWebSource(ctx.String("feedurl"))

	case ctx.String("feedfile") != "":
		source = feed.NewFileSource(ctx.String("feedfile"))

	case ctx.NArg() > 0:
		source = feed.NewFileSource(ctx.Args().First())

	default:
		return nil, errors.New("no snapshot source, set feedurl, " +
			"feedfile or pass a snapshot file path")
	}

	recs, err := source.FetchPeers()
	if err != nil {
		return nil, err
	}

	aggregator := asdiv.NewAggregator(asdiv.AggregatorConfig{
		MaxSegments: ctx.Int("topproviders"),
	})

	return aggregator.Aggregate(recs), nil
}

func analyzeSnapshot(ctx *cli.Context) error {
	analysis, err := fetchAnalysis(ctx)
	if err != nil {
		return err
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{
		"#", "AS", "Provider", "Peers", "Share", "In", "Out",
		"Risk", "Hosting", "Avg Ping",
	})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Peers", Align: text.AlignRight},
		{Name: "Share", Align: text.AlignRight},
		{Name: "In", Align: text.AlignRight},
		{Name: "Out", Align: text.AlignRight},
		{Name: "Avg Ping", Align: text.AlignRight},
	})

	for i, agg := range analysis.Segments {
		as := "-"
		if !agg.Others {
			as = fmt.Sprintf("AS%d", agg.Provider.ID)
		}

		ping := "-"
		if agg.AvgPing > 0 {
			ping = agg.AvgPing.String()
		}

		tw.AppendRow(table.Row{
			i + 1, as, agg.Provider.Name, agg.PeerCount,
			fmt.Sprintf("%.1f%%", agg.Share), agg.Inbound,
			agg.Outbound, agg.Risk.Label(), agg.Hosting, ping,
		})
	}
	tw.AppendFooter(table.Row{
		"", "", "analyzable", analysis.AnalyzableCount, "100.0%",
	})
	tw.Render()

	fmt.Println()
	printScore(analysis)
	if analysis.NoASCount > 0 || analysis.DroppedCount > 0 {
		fmt.Printf("Unattributed peers: %d, dropped records: %d\n",
			analysis.NoASCount, analysis.DroppedCount)
	}

	return nil
}

func scoreSnapshot(ctx *cli.Context) error {
	analysis, err := fetchAnalysis(ctx)
	if err != nil {
		return err
	}

	printScore(analysis)

	return nil
}

// printScore writes the diversity grade of an aggregation pass to
// stdout, spelling out the case where no peer carries operator data.
func printScore(analysis *asdiv.Analysis) {
	score, err := asdiv.ScoreAnalysis(analysis)
	if err != nil {
		fmt.Println("Score: n/a (no analyzable peers)")
		return
	}

	fmt.Printf("Score: %v\n", score)
}
