package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/complyscan/pkg/analysis"
	"github.com/user/complyscan/pkg/budget"
	"github.com/user/complyscan/pkg/cache"
	"github.com/user/complyscan/pkg/config"
	"github.com/user/complyscan/pkg/engine"
	"github.com/user/complyscan/pkg/knowledge"
	"github.com/user/complyscan/pkg/logging"
	"github.com/user/complyscan/pkg/remedy"
	"github.com/user/complyscan/pkg/scanner"
	"github.com/user/complyscan/pkg/vulnfeed"
)

var (
	fixFlag      bool
	noPushFlag   bool
	outputFlag   string
	maxCallsFlag int
	maxCostFlag  float64
	timeoutFlag  time.Duration
)

// Exit codes: 0 clean, 1 CRITICAL findings present, 2 run aborted.
var scanCmd = &cobra.Command{
	Use:   "scan [paths...]",
	Short: "Scan files for security and compliance violations",
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := logging.New(DebugMode)
		if err != nil {
			return err
		}
		defer log.Sync()

		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if maxCallsFlag > 0 {
			cfg.MaxCalls = maxCallsFlag
		}
		if maxCostFlag > 0 {
			cfg.MaxCostUSD = maxCostFlag
		}
		if outputFlag != "" {
			cfg.ReportPath = outputFlag
		}
		autoFix := fixFlag || cfg.AutoFix
		push := cfg.PushAfterFix && !noPushFlag

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if timeoutFlag > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeoutFlag)
			defer cancel()
		}

		// Cache backend: local files on a workstation, remote object store
		// inside pipelines whose filesystems are discarded between runs.
		var backend cache.Backend
		if cfg.InPipeline() && cfg.RemoteCacheURL != "" {
			backend = cache.NewRemoteBackend(cfg.RemoteCacheURL)
		} else {
			dir, err := cfg.CacheDirectory()
			if err != nil {
				return err
			}
			backend, err = cache.NewLocalBackend(dir)
			if err != nil {
				return err
			}
		}

		rules, err := vulnfeed.DefaultRules()
		if err != nil {
			return err
		}
		if cfg.RulesFile != "" {
			rules, err = vulnfeed.LoadRules(cfg.RulesFile)
			if err != nil {
				return fmt.Errorf("loading rules file: %w", err)
			}
		}

		gov := budget.New(cfg.MaxCalls, cfg.MaxCostUSD)

		var invoker *analysis.Invoker
		var fixer *remedy.Engine
		apiKey := cfg.GetAPIKey(cfg.SelectedProvider)
		if apiKey == "" && cfg.SelectedProvider == "gemini" {
			apiKey = os.Getenv("GOOGLE_API_KEY")
		}
		if apiKey != "" {
			provider, err := analysis.NewGeminiProvider(ctx, apiKey, cfg.SelectedModel, cfg.AIEndpoint, analysis.DefaultMaxOutputTokens)
			if err != nil {
				log.Warnw("AI backend unavailable, scanning with pattern rules only", "error", err)
			} else {
				defer provider.Close()
				invoker = analysis.NewInvoker(provider, analysis.DefaultPricing, 0, log)
				fixer = remedy.New(invoker, log)
			}
		} else {
			log.Warnw("no API key configured, scanning with pattern rules only")
		}

		files, err := scanner.Discover(args, cfg.MaxFileBytes, log)
		if err != nil {
			return fmt.Errorf("discovering files: %w", err)
		}
		log.Infof("Scanning %d files (budget: %d calls, $%.2f)", len(files), cfg.MaxCalls, cfg.MaxCostUSD)

		orch := &scanner.Orchestrator{
			Cache:      cache.New(backend, cache.DefaultHorizon, log),
			Retriever:  knowledge.New(cfg.KnowledgeEndpoint, cfg.KnowledgeBaseID, knowledge.DefaultTTL, log),
			Correlator: vulnfeed.New(rules, cfg.VulnFeedEndpoint, log),
			Invoker:    invoker,
			Remedy:     fixer,
			Governor:   gov,
			Workers:    cfg.Workers,
			AutoFix:    autoFix,
			Log:        log,
		}

		report := engine.NewReport(cfg.SelectedModel, cfg.KnowledgeBaseID)
		orch.Run(ctx, files, report)

		if err := report.Save(cfg.ReportPath); err != nil {
			return fmt.Errorf("saving report: %w", err)
		}
		printSummary(report, cfg.ReportPath, autoFix, push)

		switch {
		case report.Inconclusive:
			os.Exit(2)
		case report.HasCritical():
			os.Exit(1)
		}
		return nil
	},
}

func printSummary(r *engine.Report, reportPath string, autoFix, push bool) {
	fmt.Println("==============================================")
	fmt.Println("Compliance Scan Results")
	fmt.Println("==============================================")
	fmt.Printf("Files scanned: %d\n", r.FilesScanned)
	fmt.Printf("Issues found:  %d\n", len(r.Findings))
	fmt.Printf("AI calls:      %d\n", r.AICalls)
	fmt.Printf("Cost:          $%.4f\n", r.CostUSD)
	if autoFix {
		fmt.Printf("Fixed:         %d files", len(r.FixedFiles))
		if len(r.FixedFiles) > 0 && push {
			fmt.Print(" (push delegated to pipeline)")
		}
		fmt.Println()
	}
	if r.Partial {
		fmt.Println("NOTE: scan was interrupted; report is partial")
	}
	if r.Inconclusive {
		fmt.Println("NOTE: scan is INCONCLUSIVE; no collaborator was reachable")
	}

	for _, sev := range []engine.Severity{engine.SevCritical, engine.SevHigh, engine.SevMedium, engine.SevLow} {
		if n := r.BySeverity[sev]; n > 0 {
			fmt.Printf("  %s: %d\n", sev, n)
		}
	}
	if len(r.Compliance) > 0 {
		fmt.Println("\nCompliance violations:")
		for std, s := range r.Compliance {
			fmt.Printf("  %s: %d issues in %d files\n", std, s.Issues, len(s.Files))
		}
	}
	fmt.Printf("\nReport: %s\n", reportPath)
}

func init() {
	scanCmd.Flags().BoolVar(&fixFlag, "fix", false, "Apply validated automatic fixes")
	scanCmd.Flags().BoolVar(&noPushFlag, "no-push", false, "Do not mark fixed files for pipeline push")
	scanCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Report output path (default from config)")
	scanCmd.Flags().IntVar(&maxCallsFlag, "max-calls", 0, "Override maximum AI call count")
	scanCmd.Flags().Float64Var(&maxCostFlag, "max-cost", 0, "Override maximum cost ceiling in USD")
	scanCmd.Flags().DurationVar(&timeoutFlag, "timeout", 0, "Wall-clock timeout for the whole run")
	rootCmd.AddCommand(scanCmd)
}
