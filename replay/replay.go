// Package replay runs a plain-text trace of actor actions against a
// simkernel.Kernel: one line per action, whitespace-separated tokens, first
// token the actor identifier, second the action name, the remainder its
// arguments. Blank lines and lines starting with '#' are ignored.
package replay

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joeycumines/go-simkernel"
)

// Handler executes one parsed trace action on behalf of the actor running
// it. ac is that actor's handle, for issuing whatever simcalls the action
// needs (lock, sleep, wait, ...); actorName is the trace file's actor
// identifier, not a simkernel-level identity.
type Handler func(ac *simkernel.ActorContext, actorName string, args []string) error

// Registry maps trace action names to the handler that executes them.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register associates name with h. Registering the same name twice replaces
// the previous handler.
func (r *Registry) Register(name string, h Handler) {
	r.handlers[name] = h
}

// Action is a single parsed trace line.
type Action struct {
	ActorName string
	Name      string
	Args      []string
	File      string
	Line      int
}

// UnknownActionError is returned when a trace references an action name
// with no registered handler, identifying the offending location.
type UnknownActionError struct {
	Action Action
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("replay: %s:%d: unknown action %q for actor %q", e.Action.File, e.Action.Line, e.Action.Name, e.Action.ActorName)
}

// Parse reads a single trace source (either a global file covering every
// actor, or one actor's own file) and returns its actions in file order.
// name is used only to annotate error messages and parsed actions.
func Parse(name string, r io.Reader) ([]Action, error) {
	var actions []Action
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) < 2 {
			return nil, fmt.Errorf("replay: %s:%d: expected \"<actor> <action> [args...]\", got %q", name, line, text)
		}
		actions = append(actions, Action{
			ActorName: fields[0],
			Name:      fields[1],
			Args:      fields[2:],
			File:      name,
			Line:      line,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("replay: %s: %w", name, err)
	}
	return actions, nil
}

// ParseFile is Parse reading from a path on disk.
func ParseFile(path string) ([]Action, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(path, f)
}

// PartitionByActor splits a single global trace's actions into one ordered
// slice per actor identifier, preserving each actor's relative line order.
func PartitionByActor(actions []Action) map[string][]Action {
	out := make(map[string][]Action)
	for _, a := range actions {
		out[a.ActorName] = append(out[a.ActorName], a)
	}
	return out
}

// ActorNames returns the distinct actor identifiers present in actions, in
// lexical order (trace files don't otherwise impose a cross-actor order).
func ActorNames(actions []Action) []string {
	seen := make(map[string]bool)
	var names []string
	for _, a := range actions {
		if !seen[a.ActorName] {
			seen[a.ActorName] = true
			names = append(names, a.ActorName)
		}
	}
	sort.Strings(names)
	return names
}

// Run executes every action in actions, in order, on behalf of ac, via the
// handlers registered in r. An unregistered action name or a handler error
// aborts at that action and returns a descriptive error identifying the
// file and line.
func Run(ac *simkernel.ActorContext, r *Registry, actions []Action) error {
	for _, a := range actions {
		h, ok := r.handlers[a.Name]
		if !ok {
			return &UnknownActionError{Action: a}
		}
		if err := h(ac, a.ActorName, a.Args); err != nil {
			return fmt.Errorf("replay: %s:%d: actor %q action %q: %w", a.File, a.Line, a.ActorName, a.Name, err)
		}
	}
	return nil
}

// ActorFunc builds a simkernel.ActorFunc that runs actions (in order) via
// r, panicking with the first error encountered so it surfaces through the
// kernel's normal actor-panic handling as a fatal error — matching the
// trace format's contract that an unknown action or handler failure aborts
// the whole run, not just that actor.
func ActorFunc(r *Registry, actions []Action) simkernel.ActorFunc {
	return func(ac *simkernel.ActorContext) {
		if err := Run(ac, r, actions); err != nil {
			panic(err)
		}
	}
}

// SpawnFile loads a single global trace file, partitions it by actor, and
// spawns one kernel actor per distinct actor name found in the trace, each
// running its own partition through r via [ActorFunc]. It returns the
// actor names spawned, in the order [ActorNames] reports them.
func SpawnFile(k *simkernel.Kernel, r *Registry, path string) ([]string, error) {
	actions, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	partitions := PartitionByActor(actions)
	names := ActorNames(actions)
	for _, name := range names {
		k.Spawn(ActorFunc(r, partitions[name]))
	}
	return names, nil
}

// ParseActorFile parses a single actor's own trace file: one action per
// line, first token the action name, remainder its args — no leading
// actor-id column, since the file itself identifies the actor. actorName is
// stamped onto every action parsed, for handlers and error messages.
func ParseActorFile(actorName, path string) ([]Action, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var actions []Action
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		actions = append(actions, Action{
			ActorName: actorName,
			Name:      fields[0],
			Args:      fields[1:],
			File:      path,
			Line:      line,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("replay: %s: %w", path, err)
	}
	return actions, nil
}

// SpawnDir loads a directory of per-actor trace files — one file per actor,
// the actor's name taken from the filename with its extension stripped —
// and spawns one kernel actor per file, running its actions through r via
// [ActorFunc]. Subdirectories are skipped. It returns the actor names
// spawned, in directory listing order (lexical, per os.ReadDir).
func SpawnDir(k *simkernel.Kernel, r *Registry, dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		actions, err := ParseActorFile(name, filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		k.Spawn(ActorFunc(r, actions))
		names = append(names, name)
	}
	return names, nil
}

// SpawnPath spawns actors from path, dispatching on whether it names a
// single global trace file (partitioned by actor, via [SpawnFile]) or a
// directory of per-actor trace files (via [SpawnDir]) — the two trace
// layouts spec.md §6 describes ("if a single global file is provided ...
// otherwise each actor reads its own file").
func SpawnPath(k *simkernel.Kernel, r *Registry, path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return SpawnDir(k, r, path)
	}
	return SpawnFile(k, r, path)
}
