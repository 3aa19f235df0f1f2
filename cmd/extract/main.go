package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/wolfman30/solarbill-ai-platform/internal/extraction"
	"github.com/wolfman30/solarbill-ai-platform/internal/intake"
	"github.com/wolfman30/solarbill-ai-platform/internal/qualification"
)

type options struct {
	minAmount float64
	threshold int
	today     string
	compact   bool
}

func newRootCmd(stdin io.Reader, stdout io.Writer) *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "extract [file]",
		Short: "Extract and score fields from OCR'd electricity bill text",
		Long: "Reads bill text from a file, or stdin when no file is given, and prints the " +
			"extraction report with validation and qualification as JSON.",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := stdin
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open input: %w", err)
				}
				defer f.Close()
				in = f
			}
			return run(in, stdout, opts)
		},
	}
	cmd.Flags().Float64Var(&opts.minAmount, "min-amount", qualification.DefaultMinAmount, "minimum monthly bill in BRL to qualify")
	cmd.Flags().IntVar(&opts.threshold, "threshold", qualification.DefaultScoreThreshold, "minimum score to qualify")
	cmd.Flags().StringVar(&opts.today, "today", "", "validation date as YYYY-MM-DD (defaults to now)")
	cmd.Flags().BoolVar(&opts.compact, "compact", false, "print single-line JSON")
	return cmd
}

func run(in io.Reader, out io.Writer, opts options) error {
	raw, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	now := time.Now
	if opts.today != "" {
		day, err := time.Parse("2006-01-02", opts.today)
		if err != nil {
			return fmt.Errorf("invalid --today: %w", err)
		}
		now = func() time.Time { return day }
	}

	analyzer := intake.NewAnalyzer(
		extraction.NewExtractor(),
		extraction.NewValidator(now),
		qualification.NewScorer(
			qualification.WithMinAmount(opts.minAmount),
			qualification.WithScoreThreshold(opts.threshold),
		),
	)
	analysis, err := analyzer.Analyze(string(raw))
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	if !opts.compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(analysis.Report())
}

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "extract:", err)
		os.Exit(1)
	}
}
