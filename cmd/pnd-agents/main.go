// pnd-agents runs the agent pipeline orchestration engine from the command
// line.
//
// Usage:
//
//	pnd-agents run --task "generate weekly report"   # classify, build, execute
//	pnd-agents plan --task "..."                     # show the pipeline only
//	pnd-agents resume                                # continue the saved workflow
//	pnd-agents status                                # summarize the saved workflow
//	pnd-agents clear                                 # drop the saved workflow
//	pnd-agents version                               # show version information
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/shvee-pandora/pnd-agents-sub001/config"
	"github.com/shvee-pandora/pnd-agents-sub001/internal/metrics"
	"github.com/shvee-pandora/pnd-agents-sub001/internal/telemetry"
	"github.com/shvee-pandora/pnd-agents-sub001/persistence"
	"github.com/shvee-pandora/pnd-agents-sub001/workflow"
)

// Version information, injected at build time.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runRun(os.Args[2:])
	case "plan":
		runPlan(os.Args[2:])
	case "resume":
		runResume(os.Args[2:])
	case "status":
		runStatus(os.Args[2:])
	case "clear":
		runClear(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// app bundles everything a command needs.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	engine *workflow.Engine
	store  workflow.SnapshotStore
	otel   *telemetry.Providers
}

// commonFlags registers the flags shared by every command.
func commonFlags(fs *flag.FlagSet) *string {
	return fs.String("config", "", "Path to config file (YAML)")
}

// newApp wires the engine from configuration.
func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := config.BuildLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	otelProviders, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}

	store, err := persistence.New(cfg.Snapshot, logger)
	if err != nil {
		return nil, fmt.Errorf("snapshot store: %w", err)
	}

	pipelines, err := workflow.NewPipelineBuilder(cfg.Pipelines.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("pipeline rules: %w", err)
	}

	registry := workflow.NewRegistry(logger)
	registerDemoHandlers(registry)

	var opts []workflow.EngineOption
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		collector := metrics.NewCollector(cfg.Metrics.Namespace, reg)
		opts = append(opts, workflow.WithMetrics(collector))
		startMetricsServer(cfg.Metrics.Addr, reg, logger)
	}
	if otelProviders.Enabled() {
		opts = append(opts, workflow.WithTracer(otelProviders.Tracer("pnd-agents")))
	}

	engine := workflow.NewEngine(
		workflow.NewDefaultClassifier(),
		pipelines,
		registry,
		store,
		logger,
		opts...,
	)

	return &app{
		cfg:    cfg,
		logger: logger,
		engine: engine,
		store:  store,
		otel:   otelProviders,
	}, nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if a.otel != nil {
		if err := a.otel.Shutdown(ctx); err != nil {
			a.logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("snapshot store close failed", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := commonFlags(fs)
	task := fs.String("task", "", "Task description to classify and execute")
	continueOnError := fs.Bool("continue-on-error", false, "Keep executing after a stage failure")
	fs.Parse(args)

	if *task == "" {
		fmt.Fprintln(os.Stderr, "run: --task is required")
		os.Exit(1)
	}

	a, err := newApp(*configPath)
	if err != nil {
		fatal(err)
	}
	defer a.close()

	ctx, cancel := signalContext()
	defer cancel()

	wf, err := a.engine.CreateWorkflow(ctx, *task, nil)
	if err != nil {
		fatal(err)
	}

	wf, err = a.engine.RunSequential(ctx, wf, workflow.RunOptions{
		ContinueOnError: *continueOnError,
		Emitter:         consoleEmitter(),
	})
	if err != nil {
		fatal(err)
	}

	printJSON(workflow.Summarize(wf))
	if wf.Status == workflow.WorkflowStatusFailed {
		os.Exit(1)
	}
}

func runPlan(args []string) {
	fs := flag.NewFlagSet("plan", flag.ExitOnError)
	configPath := commonFlags(fs)
	task := fs.String("task", "", "Task description to classify")
	fs.Parse(args)

	if *task == "" {
		fmt.Fprintln(os.Stderr, "plan: --task is required")
		os.Exit(1)
	}

	a, err := newApp(*configPath)
	if err != nil {
		fatal(err)
	}
	defer a.close()

	printJSON(a.engine.GetPlan(*task))
}

func runResume(args []string) {
	fs := flag.NewFlagSet("resume", flag.ExitOnError)
	configPath := commonFlags(fs)
	continueOnError := fs.Bool("continue-on-error", false, "Keep executing after a stage failure")
	fs.Parse(args)

	a, err := newApp(*configPath)
	if err != nil {
		fatal(err)
	}
	defer a.close()

	ctx, cancel := signalContext()
	defer cancel()

	wf, err := a.engine.Resume(ctx, workflow.RunOptions{
		ContinueOnError: *continueOnError,
		Emitter:         consoleEmitter(),
	})
	if err != nil {
		fatal(err)
	}
	if wf == nil {
		fmt.Println("no saved workflow to resume")
		return
	}

	printJSON(workflow.Summarize(wf))
	if wf.Status == workflow.WorkflowStatusFailed {
		os.Exit(1)
	}
}

func runStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := commonFlags(fs)
	fs.Parse(args)

	a, err := newApp(*configPath)
	if err != nil {
		fatal(err)
	}
	defer a.close()

	ctx, cancel := signalContext()
	defer cancel()

	summary, err := a.engine.GetStatus(ctx)
	if err != nil {
		fatal(err)
	}
	if summary == nil {
		fmt.Println("no saved workflow")
		return
	}
	printJSON(summary)
}

func runClear(args []string) {
	fs := flag.NewFlagSet("clear", flag.ExitOnError)
	configPath := commonFlags(fs)
	fs.Parse(args)

	a, err := newApp(*configPath)
	if err != nil {
		fatal(err)
	}
	defer a.close()

	ctx, cancel := signalContext()
	defer cancel()

	if err := a.engine.Clear(ctx); err != nil {
		fatal(err)
	}
	fmt.Println("workflow snapshot cleared")
}

// registerDemoHandlers installs a placeholder handler for every built-in stage
// so the CLI can execute any pipeline end to end. Real deployments replace
// these with agent-backed handlers.
func registerDemoHandlers(registry *workflow.Registry) {
	stages := []string{
		"task_analyzer", "task_executor", "result_reporter",
		"figma_reader", "placement_mapper", "content_builder",
		"product_searcher", "product_enricher",
		"data_collector", "report_generator",
		"sonar_checker",
		"ticket_reader", "ticket_updater",
	}
	for _, name := range stages {
		registry.Register(name, workflow.HandlerFunc(func(ctx context.Context, in workflow.HandlerInput) workflow.StageResult {
			return workflow.Success(map[string]any{
				"stage":   in.StageName,
				"summary": fmt.Sprintf("%s handled %q", in.StageName, in.TaskDescription),
			})
		}))
	}
}

// consoleEmitter prints a one-line progress note per event.
func consoleEmitter() workflow.EventEmitter {
	return func(ev workflow.Event) {
		if ev.Stage != "" {
			fmt.Printf("[%s] %s %s\n", ev.Type, ev.Stage, ev.Status)
			return
		}
		fmt.Printf("[%s] %s\n", ev.Type, ev.Status)
	}
}

func startMetricsServer(addr string, reg *prometheus.Registry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	logger.Info("metrics server listening", zap.String("addr", addr))
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fatal(err)
	}
	fmt.Println(string(data))
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func printVersion() {
	fmt.Printf("pnd-agents %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`pnd-agents - agent pipeline orchestration engine

Usage:
  pnd-agents <command> [options]

Commands:
  run       Classify a task, build its pipeline and execute it
  plan      Show the pipeline a task description would run
  resume    Continue the saved workflow from its first incomplete stage
  status    Summarize the saved workflow
  clear     Delete the saved workflow snapshot
  version   Show version information
  help      Show this help message

Common options:
  --config <path>   Path to configuration file (YAML)

Options for 'run' and 'resume':
  --continue-on-error   Keep executing after a stage failure

Options for 'run' and 'plan':
  --task <text>         Task description (required)

Examples:
  pnd-agents run --task "generate the weekly sales report"
  pnd-agents plan --task "update figma.com/file/abc placements"
  pnd-agents resume
  pnd-agents status
  pnd-agents clear`)
}
