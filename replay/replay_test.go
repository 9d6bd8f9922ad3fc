package replay

import (
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joeycumines/go-simkernel"
)

const trace = `
# comment lines and blanks are ignored

a1 sleep 2
a1 mark done

a2 sleep 5
a2 mark done
`

func TestParseAndPartition(t *testing.T) {
	actions, err := Parse("trace", strings.NewReader(trace))
	require.NoError(t, err)
	require.Len(t, actions, 4)
	require.Equal(t, "a1", actions[0].ActorName)
	require.Equal(t, "sleep", actions[0].Name)
	require.Equal(t, []string{"2"}, actions[0].Args)
	require.Equal(t, 4, actions[0].Line)

	partitions := PartitionByActor(actions)
	require.Len(t, partitions["a1"], 2)
	require.Len(t, partitions["a2"], 2)
	require.Equal(t, []string{"a1", "a2"}, ActorNames(actions))
}

func TestParseRejectsMalformedLine(t *testing.T) {
	_, err := Parse("trace", strings.NewReader("a1\n"))
	require.Error(t, err)
}

func TestRunDispatchesRegisteredHandlers(t *testing.T) {
	actions, err := Parse("trace", strings.NewReader(trace))
	require.NoError(t, err)

	k, err := simkernel.NewKernel()
	require.NoError(t, err)

	var marks []string
	reg := NewRegistry()
	reg.Register("sleep", func(ac *simkernel.ActorContext, actorName string, args []string) error {
		n, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return err
		}
		return ac.Sleep(simkernel.Duration(n))
	})
	reg.Register("mark", func(ac *simkernel.ActorContext, actorName string, args []string) error {
		marks = append(marks, actorName+":"+args[0])
		return nil
	})

	partitions := PartitionByActor(actions)
	for _, name := range ActorNames(actions) {
		k.Spawn(ActorFunc(reg, partitions[name]))
	}

	require.NoError(t, k.Run())
	require.ElementsMatch(t, []string{"a1:done", "a2:done"}, marks)
	require.Equal(t, simkernel.TimePoint(5), k.Now())
}

func TestRunUnknownActionAborts(t *testing.T) {
	actions, err := Parse("trace", strings.NewReader("a1 frobnicate\n"))
	require.NoError(t, err)

	k, err := simkernel.NewKernel()
	require.NoError(t, err)

	reg := NewRegistry()
	k.Spawn(ActorFunc(reg, actions))

	err = k.Run()
	require.Error(t, err)

	var fatal *simkernel.FatalError
	require.ErrorAs(t, err, &fatal)
}

func TestSpawnFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/trace.txt"
	require.NoError(t, os.WriteFile(path, []byte(trace), 0o644))

	k, err := simkernel.NewKernel()
	require.NoError(t, err)

	reg := NewRegistry()
	reg.Register("sleep", func(ac *simkernel.ActorContext, actorName string, args []string) error {
		n, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return err
		}
		return ac.Sleep(simkernel.Duration(n))
	})
	reg.Register("mark", func(ac *simkernel.ActorContext, actorName string, args []string) error {
		return nil
	})

	names, err := SpawnFile(k, reg, path)
	require.NoError(t, err)
	require.Equal(t, []string{"a1", "a2"}, names)

	require.NoError(t, k.Run())
}

func TestSpawnDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(dir+"/a1.trace", []byte("sleep 2\nmark done\n"), 0o644))
	require.NoError(t, os.WriteFile(dir+"/a2.trace", []byte("sleep 5\nmark done\n"), 0o644))

	k, err := simkernel.NewKernel()
	require.NoError(t, err)

	var marks []string
	reg := NewRegistry()
	reg.Register("sleep", func(ac *simkernel.ActorContext, actorName string, args []string) error {
		n, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return err
		}
		return ac.Sleep(simkernel.Duration(n))
	})
	reg.Register("mark", func(ac *simkernel.ActorContext, actorName string, args []string) error {
		marks = append(marks, actorName+":"+args[0])
		return nil
	})

	names, err := SpawnDir(k, reg, dir)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a1", "a2"}, names)

	require.NoError(t, k.Run())
	require.ElementsMatch(t, []string{"a1:done", "a2:done"}, marks)
	require.Equal(t, simkernel.TimePoint(5), k.Now())
}

func TestSpawnPathDispatchesOnFileVsDir(t *testing.T) {
	reg := NewRegistry()
	reg.Register("sleep", func(ac *simkernel.ActorContext, actorName string, args []string) error {
		n, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return err
		}
		return ac.Sleep(simkernel.Duration(n))
	})
	reg.Register("mark", func(ac *simkernel.ActorContext, actorName string, args []string) error {
		return nil
	})

	t.Run("file", func(t *testing.T) {
		dir := t.TempDir()
		path := dir + "/trace.txt"
		require.NoError(t, os.WriteFile(path, []byte(trace), 0o644))

		k, err := simkernel.NewKernel()
		require.NoError(t, err)

		names, err := SpawnPath(k, reg, path)
		require.NoError(t, err)
		require.Equal(t, []string{"a1", "a2"}, names)
		require.NoError(t, k.Run())
	})

	t.Run("dir", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(dir+"/solo.trace", []byte("sleep 1\nmark done\n"), 0o644))

		k, err := simkernel.NewKernel()
		require.NoError(t, err)

		names, err := SpawnPath(k, reg, dir)
		require.NoError(t, err)
		require.Equal(t, []string{"solo"}, names)
		require.NoError(t, k.Run())
	})
}
