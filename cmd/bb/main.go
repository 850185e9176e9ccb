// Command bb bridges a beads-enabled workspace to a view layer: it
// discovers projects, keeps one live daemon connection, polls for
// mutations, and speaks the typed view protocol as newline-delimited JSON
// on stdin/stdout.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/vanderheijden86/beadbridge/pkg/bridge"
	"github.com/vanderheijden86/beadbridge/pkg/config"
	"github.com/vanderheijden86/beadbridge/pkg/model"
	"github.com/vanderheijden86/beadbridge/pkg/version"
	"github.com/vanderheijden86/beadbridge/pkg/workspace"
)

func main() {
	configPath := flag.String("config", "", "Config file path (default: XDG config dir)")
	scanPath := flag.String("path", "", "Workspace root to scan (repeatable via comma, default: cwd)")
	project := flag.String("project", "", "Project to activate (id prefix or directory name)")
	interval := flag.Duration("interval", 0, "Mutation poll interval override")
	serve := flag.Bool("serve", false, "Speak the view protocol on stdin/stdout (NDJSON)")
	verbose := flag.Bool("verbose", false, "Log lifecycle events to stderr")
	help := flag.Bool("help", false, "Show help")
	versionFlag := flag.Bool("version", false, "Show version")
	flag.Parse()

	if *help {
		fmt.Println("Usage: bb [options]")
		fmt.Println("\nA workspace bridge for the beads issue tracker.")
		flag.PrintDefaults()
		os.Exit(0)
	}
	if *versionFlag {
		fmt.Printf("bb %s\n", version.Version)
		os.Exit(0)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *interval > 0 {
		cfg.Poll.Interval = *interval
	}

	roots := scanRoots(*scanPath, cfg)
	logger := log.New(os.Stderr, "bb: ", log.LstdFlags)
	if !*verbose {
		logger.SetOutput(io.Discard)
	}

	m := newManager(cfg, logger)
	defer m.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	projects, err := m.Discover(ctx, roots, cfg.Discovery.MaxDepth)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error scanning workspace: %v\n", err)
		os.Exit(1)
	}
	if len(projects) == 0 {
		fmt.Fprintln(os.Stderr, "No projects found. Initialize one with 'bd init'.")
		os.Exit(1)
	}

	target, err := pickProject(projects, *project)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := m.SetActive(ctx, target.ID); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %s is not reachable: %v\n", target.Name, err)
	}

	// Rediscover when marker directories appear or vanish.
	watcher := workspace.NewMarkerWatcher(roots, cfg.Discovery.MaxDepth,
		workspace.WithOnMarkerChange(func() {
			if _, err := m.Discover(ctx, roots, cfg.Discovery.MaxDepth); err != nil {
				logger.Printf("rescan failed: %v", err)
			}
		}),
		workspace.WithOnWatchError(func(err error) {
			logger.Printf("marker watcher: %v", err)
		}),
	)
	if err := watcher.Start(); err != nil {
		logger.Printf("marker watcher unavailable: %v", err)
	} else {
		defer watcher.Stop()
	}

	if *serve {
		runBridge(ctx, m, cfg)
		return
	}
	runMonitor(ctx, m)
}

func loadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

func scanRoots(flagValue string, cfg config.Config) []string {
	if flagValue != "" {
		return strings.Split(flagValue, ",")
	}
	if len(cfg.Discovery.ScanPaths) > 0 {
		return cfg.Discovery.ScanPaths
	}
	cwd, err := os.Getwd()
	if err != nil {
		return []string{"."}
	}
	return []string{cwd}
}

func newManager(cfg config.Config, logger *log.Logger) *workspace.Manager {
	actor := cfg.ResolveActor()
	bin := cfg.Tracker.Path

	var factory workspace.ClientFactory
	switch cfg.Tracker.Transport {
	case config.TransportSocket:
		factory = workspace.SocketFactory(actor, cfg.Tracker.CallTimeout)
	case config.TransportCLI:
		factory = workspace.CLIFactory(bin, actor)
	default:
		factory = workspace.AutoFactory(bin, actor, cfg.Tracker.CallTimeout)
	}

	return workspace.NewManager(
		workspace.WithClientFactory(factory),
		workspace.WithDaemonStarter(workspace.ExecStarter(bin)),
		workspace.WithDaemonStopper(workspace.ExecStopper(bin)),
		workspace.WithAutoStart(cfg.AutoStart()),
		workspace.WithPollInterval(cfg.Poll.Interval),
		workspace.WithPollMaxDelay(cfg.Poll.MaxDelay),
		workspace.WithManagerLogger(logger),
	)
}

// pickProject resolves the -project selector, defaulting to the first
// discovered project.
func pickProject(projects []model.Project, selector string) (model.Project, error) {
	if selector == "" {
		return projects[0], nil
	}
	for _, p := range projects {
		if p.Name == selector || strings.HasPrefix(p.ID, selector) {
			return p, nil
		}
	}
	return model.Project{}, fmt.Errorf("no project matches %q", selector)
}

// runBridge speaks the view protocol: outbound messages as NDJSON on
// stdout, inbound messages read line by line from stdin.
func runBridge(ctx context.Context, m *workspace.Manager, cfg config.Config) {
	out := bufio.NewWriter(os.Stdout)
	sink := func(msg bridge.Outbound) {
		data, err := bridge.Encode(msg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "encode: %v\n", err)
			return
		}
		out.Write(data)
		out.WriteByte('\n')
		out.Flush()
	}

	d := bridge.NewDispatcher(m, sink,
		bridge.WithMaxItems(cfg.MaxItems),
		bridge.WithActor(cfg.ResolveActor()),
		bridge.WithSettings(bridge.SetSettings{
			Actor:          cfg.ResolveActor(),
			PollIntervalMs: cfg.Poll.Interval.Milliseconds(),
			MaxItems:       cfg.MaxItems,
		}),
	)

	// Push state changes as they happen.
	defer m.Projects.Subscribe(func([]model.Project) { d.PushProjects() })()
	defer m.Active.Subscribe(func(model.Project) { d.PushActive() })()
	defer m.Data.Subscribe(func([]model.MutationEvent) { d.PushData(ctx) })()

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			msg, err := bridge.DecodeInbound([]byte(line))
			if err != nil {
				sink(bridge.SetError{Message: err.Error()})
				continue
			}
			d.Handle(ctx, msg)
		}
	}
}

// runMonitor streams mutation events as human-readable lines until
// interrupted.
func runMonitor(ctx context.Context, m *workspace.Manager) {
	cancel := m.Data.Subscribe(func(events []model.MutationEvent) {
		for _, ev := range events {
			fmt.Printf("%s %s %s\n",
				ev.Timestamp.Format(time.RFC3339), ev.Kind, ev.IssueID)
		}
	})
	defer cancel()

	statusCancel := m.Active.Subscribe(func(p model.Project) {
		if p.ID == "" {
			fmt.Println("-- no active project")
			return
		}
		fmt.Printf("-- %s: %s\n", p.Name, p.Connection)
	})
	defer statusCancel()

	<-ctx.Done()
}
