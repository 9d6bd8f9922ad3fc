// Command simkernel-replay runs a plain-text actor trace against a
// simkernel.Kernel from the shell, exercising the replay harness end to
// end: zero exit on clean termination, non-zero on deadlock or an
// unhandled actor exception.
package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/joeycumines/go-simkernel"
	"github.com/joeycumines/go-simkernel/replay"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// logLevelFlag adapts simkernel.LogLevel to pflag.Value, so --log-level
// accepts the same debug/info/warn/error names the Logger interface uses
// rather than a bare integer.
type logLevelFlag struct {
	level *simkernel.LogLevel
}

func (f logLevelFlag) String() string {
	if f.level == nil {
		return simkernel.LevelInfo.String()
	}
	return f.level.String()
}

func (f logLevelFlag) Set(s string) error {
	switch strings.ToLower(s) {
	case "debug":
		*f.level = simkernel.LevelDebug
	case "info":
		*f.level = simkernel.LevelInfo
	case "warn", "warning":
		*f.level = simkernel.LevelWarn
	case "error":
		*f.level = simkernel.LevelError
	default:
		return fmt.Errorf("unknown log level %q (want debug, info, warn, or error)", s)
	}
	return nil
}

func (f logLevelFlag) Type() string { return "level" }

var _ pflag.Value = logLevelFlag{}

func newRootCmd() *cobra.Command {
	level := simkernel.LevelInfo
	root := &cobra.Command{
		Use:           "simkernel-replay",
		Short:         "Run actor traces against the simkernel runtime",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().Var(logLevelFlag{level: &level}, "log-level", "minimum severity logged: debug, info, warn, or error")
	root.AddCommand(newReplayCmd(&level))
	return root
}

func newReplayCmd(level *simkernel.LogLevel) *cobra.Command {
	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a trace file",
	}
	replayCmd.AddCommand(newRunCmd(level))
	return replayCmd
}

func newRunCmd(level *simkernel.LogLevel) *cobra.Command {
	var workers int
	var strict bool

	cmd := &cobra.Command{
		Use:   "run <trace-file-or-dir>",
		Short: "Execute a trace file (or directory of per-actor trace files) against a fresh kernel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(args[0], workers, strict, *level)
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 1, "worker pool size for the parallel context factory (1 = serial)")
	cmd.Flags().BoolVar(&strict, "strict", false, "drain the kernel future ready list after every actor resumption")
	return cmd
}

func runTrace(path string, workers int, strict bool, level simkernel.LogLevel) error {
	opts := []simkernel.KernelOption{
		simkernel.WithLogger(simkernel.NewDefaultLogger(level, log.Default())),
		simkernel.WithMetrics(true),
	}
	if workers > 1 {
		opts = append(opts, simkernel.WithWorkerCount(workers))
	}
	if strict {
		opts = append(opts, simkernel.WithStrictMicrotaskOrdering(true))
	}

	k, err := simkernel.NewKernel(opts...)
	if err != nil {
		return fmt.Errorf("simkernel-replay: %w", err)
	}

	reg := buildRegistry(newResources())
	names, err := replay.SpawnPath(k, reg, path)
	if err != nil {
		return fmt.Errorf("simkernel-replay: %w", err)
	}
	log.Printf("simkernel-replay: spawned %d actor(s) from %s", len(names), path)

	if err := k.Run(); err != nil {
		return fmt.Errorf("simkernel-replay: %w", err)
	}

	m := k.Metrics()
	log.Printf("simkernel-replay: clean exit at t=%s after %d round(s), %d event(s)", k.Now(), m.Rounds, m.EventsFired)
	return nil
}

// resources holds the named simulation objects (mutexes, condition
// variables, one-shot mailboxes) a trace's actions address by string key.
// It is touched from actor goroutines, which may run concurrently under
// the parallel context factory, so lazy creation is guarded by a real
// (non-simulated) mutex.
type resources struct {
	mu      sync.Mutex
	mutexes map[string]*simkernel.Mutex
	conds   map[string]*simkernel.Cond
	mailbox map[string]*mailboxState
}

type mailboxState struct {
	satisfied bool
	value     string
	waiters   []*simkernel.Promise[string]
}

func newResources() *resources {
	return &resources{
		mutexes: make(map[string]*simkernel.Mutex),
		conds:   make(map[string]*simkernel.Cond),
		mailbox: make(map[string]*mailboxState),
	}
}

func (r *resources) mutex(name string) *simkernel.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.mutexes[name]
	if !ok {
		m = simkernel.NewMutex()
		r.mutexes[name] = m
	}
	return m
}

func (r *resources) cond(name string) *simkernel.Cond {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conds[name]
	if !ok {
		c = simkernel.NewCond()
		r.conds[name] = c
	}
	return c
}

func (r *resources) box(name string) *mailboxState {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.mailbox[name]
	if !ok {
		b = &mailboxState{}
		r.mailbox[name] = b
	}
	return b
}

// buildRegistry registers the demonstration actions a trace file may use:
// sleep, lock/unlock, wait/notify/notify_all, and send/recv (a one-shot
// named mailbox), each a thin adapter from string trace arguments onto the
// corresponding simkernel primitive.
func buildRegistry(r *resources) *replay.Registry {
	reg := replay.NewRegistry()

	reg.Register("sleep", func(ac *simkernel.ActorContext, actorName string, args []string) error {
		if len(args) != 1 {
			return fmt.Errorf("sleep: expected 1 arg (seconds), got %d", len(args))
		}
		seconds, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("sleep: %w", err)
		}
		return ac.Sleep(simkernel.Duration(seconds))
	})

	reg.Register("lock", func(ac *simkernel.ActorContext, actorName string, args []string) error {
		if len(args) != 1 {
			return fmt.Errorf("lock: expected 1 arg (mutex name), got %d", len(args))
		}
		return r.mutex(args[0]).Lock(ac)
	})

	reg.Register("unlock", func(ac *simkernel.ActorContext, actorName string, args []string) error {
		if len(args) != 1 {
			return fmt.Errorf("unlock: expected 1 arg (mutex name), got %d", len(args))
		}
		return r.mutex(args[0]).Unlock(ac)
	})

	reg.Register("wait", func(ac *simkernel.ActorContext, actorName string, args []string) error {
		if len(args) != 2 {
			return fmt.Errorf("wait: expected 2 args (cond name, mutex name), got %d", len(args))
		}
		return r.cond(args[0]).Wait(ac, r.mutex(args[1]))
	})

	reg.Register("notify", func(ac *simkernel.ActorContext, actorName string, args []string) error {
		if len(args) != 1 {
			return fmt.Errorf("notify: expected 1 arg (cond name), got %d", len(args))
		}
		return r.cond(args[0]).NotifyOne(ac)
	})

	reg.Register("notify_all", func(ac *simkernel.ActorContext, actorName string, args []string) error {
		if len(args) != 1 {
			return fmt.Errorf("notify_all: expected 1 arg (cond name), got %d", len(args))
		}
		return r.cond(args[0]).NotifyAll(ac)
	})

	reg.Register("send", func(ac *simkernel.ActorContext, actorName string, args []string) error {
		if len(args) != 2 {
			return fmt.Errorf("send: expected 2 args (mailbox name, value), got %d", len(args))
		}
		_, err := simkernel.KernelImmediate(ac, func(k *simkernel.Kernel) (struct{}, error) {
			b := r.box(args[0])
			if b.satisfied {
				return struct{}{}, fmt.Errorf("send: mailbox %q already has a value", args[0])
			}
			b.satisfied = true
			b.value = args[1]
			for _, p := range b.waiters {
				_ = p.SetValue(b.value)
			}
			b.waiters = nil
			return struct{}{}, nil
		})
		return err
	})

	reg.Register("recv", func(ac *simkernel.ActorContext, actorName string, args []string) error {
		if len(args) != 1 {
			return fmt.Errorf("recv: expected 1 arg (mailbox name), got %d", len(args))
		}
		v, err := simkernel.KernelSync(ac, func(k *simkernel.Kernel) simkernel.Future[string] {
			b := r.box(args[0])
			p := simkernel.NewPromise[string](k)
			f, _ := p.Future()
			if b.satisfied {
				_ = p.SetValue(b.value)
			} else {
				b.waiters = append(b.waiters, p)
			}
			return f
		})
		if err != nil {
			return err
		}
		log.Printf("simkernel-replay: actor %s received %q on %s at t=%s", actorName, v, args[0], ac.Now())
		return nil
	})

	return reg
}
