/*
adscheck validates seller references against the ads.txt and app-ads.txt
files publishers actually serve.

Operators supply target sites and the reference lines they expect to find
(`domain, id[, type[, cert]]`). adscheck fetches each target's
authorization files concurrently, matches every reference against every
file, and renders one classified row per (target, file, reference) as
CSV and/or XLSX.

Usage:

	adscheck check --targets-file sites.txt --refs-file refs.txt -o reports/
	adscheck check -t example.com -r "google.com, pub-123, DIRECT"
*/
package main

/*
adscheck — ads.txt / app-ads.txt validation tool in Go
Copyright (C) 2026  adscheck authors

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"adscheck/internal/adstxt"
	"adscheck/internal/client"
	"adscheck/internal/core"
	"adscheck/internal/metrics"
	"adscheck/internal/report"
	"adscheck/internal/util"
)

// Flags for the check command.
var (
	checkTargets     []string
	checkTargetsFile string
	checkRefs        []string
	checkRefsFile    string
	outputDir        string
	outputFormat     string
	workers          int
	policyName       string
	fileSelection    string
	requestTimeout   time.Duration
	dnsPreflight     bool
	enableMetrics    bool
	metricsPort      int
)

var rootCmd = &cobra.Command{
	Use:   "adscheck",
	Short: "adscheck - bulk ads.txt / app-ads.txt verification against seller references",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if enableMetrics {
			metrics.EnableMetrics()
			if err := metrics.StartMetricsServer(fmt.Sprintf(":%d", metricsPort)); err != nil {
				log.Printf("Failed to start metrics server: %v", err)
			}
		}
	},
}

var checkCmd = &cobra.Command{
	Use:   "check [targets...]",
	Short: "Check reference lines against targets' authorization files",
	Long: `Fetches ads.txt and/or app-ads.txt from every target and classifies each
reference line against each file. Targets come from positional arguments,
--target, and --targets-file combined; references from --ref and --refs-file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCheck(cmd.Context(), args)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&enableMetrics, "metrics", false, "Expose Prometheus metrics while running")
	rootCmd.PersistentFlags().IntVar(&metricsPort, "metrics-port", 9090, "Prometheus metrics port")

	checkCmd.Flags().StringSliceVarP(&checkTargets, "target", "t", nil, "Target site to check (repeatable)")
	checkCmd.Flags().StringVar(&checkTargetsFile, "targets-file", "", "File with target sites, one per line")
	checkCmd.Flags().StringSliceVarP(&checkRefs, "ref", "r", nil, "Reference line 'domain, id[, type[, cert]]' (repeatable)")
	checkCmd.Flags().StringVar(&checkRefsFile, "refs-file", "", "File with reference lines, one per line")
	checkCmd.Flags().StringVarP(&outputDir, "output", "o", "reports", "Output directory for report files")
	checkCmd.Flags().StringVar(&outputFormat, "format", "csv", "Report format: csv, xlsx, or both")
	checkCmd.Flags().IntVarP(&workers, "workers", "w", core.DefaultWorkers, "Number of concurrent check workers")
	checkCmd.Flags().StringVar(&policyName, "type-mismatch", "strict", "Type mismatch policy: strict (Partially matched) or lenient (Valid)")
	checkCmd.Flags().StringVar(&fileSelection, "files", "both", "Which files to check: ads, app-ads, or both")
	checkCmd.Flags().DurationVar(&requestTimeout, "timeout", client.DefaultRequestTimeout, "Per-request HTTP timeout")
	checkCmd.Flags().BoolVar(&dnsPreflight, "dns-preflight", false, "Resolve targets before fetching to fail fast on dead names")

	rootCmd.AddCommand(checkCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if serr := metrics.ShutdownMetricsServer(shutdownCtx); serr != nil {
		log.Printf("Metrics server shutdown: %v", serr)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runCheck(ctx context.Context, args []string) error {
	targets := append([]string{}, args...)
	targets = append(targets, checkTargets...)
	if checkTargetsFile != "" {
		fromFile, err := util.ReadLines(checkTargetsFile)
		if err != nil {
			return err
		}
		targets = append(targets, fromFile...)
	}
	if len(targets) == 0 {
		return fmt.Errorf("no targets given (use arguments, --target, or --targets-file)")
	}

	refs := append([]string{}, checkRefs...)
	if checkRefsFile != "" {
		fromFile, err := util.ReadLines(checkRefsFile)
		if err != nil {
			return err
		}
		refs = append(refs, fromFile...)
	}
	if len(refs) == 0 {
		return fmt.Errorf("no reference lines given (use --ref or --refs-file)")
	}

	policy, err := adstxt.ParseMatchPolicy(policyName)
	if err != nil {
		return err
	}
	files, err := selectedFiles(fileSelection)
	if err != nil {
		return err
	}
	if outputFormat != "csv" && outputFormat != "xlsx" && outputFormat != "both" {
		return fmt.Errorf("unknown format %q (want csv, xlsx, or both)", outputFormat)
	}

	engine := core.NewEngine(core.Config{
		Workers:      workers,
		Policy:       policy,
		Files:        files,
		HTTP:         client.Config{RequestTimeout: requestTimeout},
		DNSPreflight: dnsPreflight,
	})

	res, err := engine.Run(ctx, targets, refs)
	if err != nil {
		return err
	}

	for _, line := range res.SkippedReferences {
		fmt.Fprintf(os.Stderr, "warning: skipped malformed reference line: %q\n", line)
	}

	if err := saveReports(res); err != nil {
		return err
	}

	fmt.Println(report.Summarize(res.Outcomes).String())
	return nil
}

func selectedFiles(sel string) ([]string, error) {
	switch sel {
	case "ads":
		return []string{adstxt.FileAds}, nil
	case "app-ads":
		return []string{adstxt.FileAppAds}, nil
	case "both":
		return nil, nil // engine default: both
	default:
		return nil, fmt.Errorf("unknown file selection %q (want ads, app-ads, or both)", sel)
	}
}

func saveReports(res *core.RunResult) error {
	base := util.SanitizeFilename("adscheck_" + res.RunID)
	if outputFormat == "csv" || outputFormat == "both" {
		path := filepath.Join(outputDir, base+".csv")
		if err := report.SaveCSV(path, res.Outcomes); err != nil {
			return err
		}
		log.Printf("CSV report written to %s", path)
	}
	if outputFormat == "xlsx" || outputFormat == "both" {
		path := filepath.Join(outputDir, base+".xlsx")
		if err := report.SaveXLSX(path, res.Outcomes); err != nil {
			return err
		}
		log.Printf("XLSX report written to %s", path)
	}
	return nil
}
