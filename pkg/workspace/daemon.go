package workspace

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/vanderheijden86/beadbridge/pkg/debug"
	"github.com/vanderheijden86/beadbridge/pkg/model"
	"github.com/vanderheijden86/beadbridge/pkg/tracker"
)

// DefaultDaemonTimeout bounds daemon start/stop invocations.
const DefaultDaemonTimeout = 15 * time.Second

// ExecStarter returns a DaemonStarter that runs `<bin> daemon start` in the
// project root. The daemon backgrounds itself; the command returning zero
// means the socket should come up shortly.
func ExecStarter(bin string) DaemonStarter {
	if bin == "" {
		bin = "bd"
	}
	return func(ctx context.Context, p model.Project) error {
		return runDaemonCommand(ctx, bin, p.RootPath, "daemon", "start")
	}
}

// ExecStopper returns a stop hook mirroring ExecStarter.
func ExecStopper(bin string) DaemonStarter {
	if bin == "" {
		bin = "bd"
	}
	return func(ctx context.Context, p model.Project) error {
		return runDaemonCommand(ctx, bin, p.RootPath, "daemon", "stop")
	}
}

func runDaemonCommand(ctx context.Context, bin, dir string, argv ...string) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultDaemonTimeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, bin, argv...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	debug.LogTiming(bin+" "+argv[0]+" "+argv[1], time.Since(start))

	if err != nil {
		msg := string(bytes.TrimSpace(out))
		if msg == "" {
			msg = err.Error()
		}
		return fmt.Errorf("%s %s %s: %s", bin, argv[0], argv[1], msg)
	}
	return nil
}

// SocketFactory dials the daemon socket inside the project's marker dir.
func SocketFactory(actor string, timeout time.Duration) ClientFactory {
	return func(ctx context.Context, p model.Project) (tracker.Client, error) {
		opts := []tracker.SocketOption{
			tracker.WithActor(actor),
			tracker.WithCwd(p.RootPath),
		}
		if timeout > 0 {
			opts = append(opts, tracker.WithTimeout(timeout))
		}
		return tracker.DialSocket(p.MarkerDir, opts...)
	}
}

// CLIFactory spawns the tracker binary per call, rooted at the project.
func CLIFactory(bin, actor string) ClientFactory {
	return func(ctx context.Context, p model.Project) (tracker.Client, error) {
		return tracker.NewCLIClient(bin, p.RootPath, tracker.WithCLIActor(actor)), nil
	}
}

// AutoFactory prefers the daemon socket and falls back to the CLI when the
// socket cannot be dialed. The socket session is canonical; the CLI keeps
// read paths working on hosts without a daemon.
func AutoFactory(bin, actor string, timeout time.Duration) ClientFactory {
	socket := SocketFactory(actor, timeout)
	cli := CLIFactory(bin, actor)
	return func(ctx context.Context, p model.Project) (tracker.Client, error) {
		c, err := socket(ctx, p)
		if err == nil {
			return c, nil
		}
		if !tracker.IsConnectionError(err) {
			return nil, err
		}
		return cli(ctx, p)
	}
}
