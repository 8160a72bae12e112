// flowrun loads a compiled flow asset and runs its page flow on a tick loop.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/flowvm/alloc"
	"github.com/chazu/flowvm/asset"
	"github.com/chazu/flowvm/config"
	"github.com/chazu/flowvm/flow"
)

var log = commonlog.GetLogger("flowvm.run")

type options struct {
	configPath string
	ticks      int
	interval   time.Duration
	page       int
	debugOut   string
	verbosity  int
	assetPath  string
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Path to flow.toml (default: search upwards from the asset directory)")
	flag.IntVar(&opts.ticks, "ticks", 0, "Stop after this many ticks (0 = until the script stops)")
	flag.DurationVar(&opts.interval, "interval", 16*time.Millisecond, "Time between ticks")
	flag.IntVar(&opts.page, "page", 0, "Index of the page flow to start")
	flag.StringVar(&opts.debugOut, "debug-out", "", "Write debugger messages to this file")
	flag.IntVar(&opts.verbosity, "v", -1, "Log verbosity (overrides the config file)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: flowrun [flags] asset.bin\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	opts.assetPath = flag.Arg(0)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(opts options) (*config.Config, error) {
	if opts.configPath != "" {
		return config.Load(filepath.Dir(opts.configPath))
	}
	cfg, err := config.FindAndLoad(filepath.Dir(opts.assetPath))
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default()
		if err := cfg.ApplyEnv(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func run(ctx context.Context, opts options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	verbosity := cfg.Log.Verbosity
	if opts.verbosity >= 0 {
		verbosity = opts.verbosity
	}
	var logPath *string
	if cfg.Log.Path != "" {
		logPath = &cfg.Log.Path
	}
	commonlog.Configure(verbosity, logPath)

	if cfg.Runtime.ArenaSize > 0 {
		restore := alloc.Use(alloc.NewArena(cfg.Runtime.ArenaSize))
		defer restore()
		log.Infof("using %d byte arena", cfg.Runtime.ArenaSize)
	}

	assets, err := asset.LoadFile(opts.assetPath)
	if err != nil {
		return err
	}

	e, err := flow.NewEngine(assets, cfg.Engine())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hooks := e.Hooks()
	hooks.StopScript = cancel
	hooks.OnFlowError = func(fs *flow.FlowState, ci int, message string) {
		fmt.Fprintf(os.Stderr, "flow error: %s\n", message)
	}
	hooks.ReplacePage = func(index int) {
		log.Infof("show page %d", index)
	}

	debugOut := opts.debugOut
	if debugOut == "" && cfg.Debugger.Enabled {
		debugOut = cfg.Debugger.Output
	}
	if debugOut != "" {
		f, err := os.Create(debugOut)
		if err != nil {
			return fmt.Errorf("cannot create debugger output: %w", err)
		}
		defer f.Close()
		hooks.WriteDebuggerBytes = func(p []byte) {
			if _, err := f.Write(p); err != nil {
				log.Errorf("debugger output: %s", err.Error())
			}
		}
	}
	e.SetHooks(hooks)

	if debugOut != "" {
		if cfg.Debugger.StartPaused {
			log.Warningf("start_paused ignored: flowrun has no debugger control channel")
		}
		e.AttachDebugger(false)
	}

	if _, err := e.ShowPage(opts.page); err != nil {
		return err
	}

	err = tickLoop(ctx, e, opts)
	reportStats(e)
	if e.Stats().FatalErrors > 0 {
		return errors.New("script stopped on an unhandled flow error")
	}
	return err
}

func tickLoop(ctx context.Context, e *flow.Engine, opts options) error {
	ticker := time.NewTicker(opts.interval)
	defer ticker.Stop()

	for n := 0; opts.ticks == 0 || n < opts.ticks; n++ {
		e.Tick()
		if e.IsStopped() {
			return nil
		}
		select {
		case <-ctx.Done():
			if e.IsStopped() {
				return nil
			}
			log.Infof("interrupted after %d ticks", n+1)
			return nil
		case <-ticker.C:
		}
	}
	return nil
}

func reportStats(e *flow.Engine) {
	s := e.Stats()
	log.Infof("ticks=%d tasks=%d overruns=%d max-queue=%d flow-states=%d/%d",
		s.Ticks, s.TasksExecuted, s.BudgetOverruns, s.MaxQueueDepth,
		s.FlowStatesAlive, s.FlowStatesCreated)
	for t, n := range s.Executions {
		log.Debugf("  %s: %d", flow.ComponentTypeName(t), n)
	}
}
