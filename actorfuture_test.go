package simkernel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestActorFutureGet(t *testing.T) {
	k, err := NewKernel()
	require.NoError(t, err)

	var got int
	k.Spawn(func(ac *ActorContext) {
		af := KernelAsync(ac, func(k *Kernel) Future[int] {
			p := NewPromise[int](k)
			f, _ := p.Future()
			k.events.schedule(k.Now().Add(2), func() { _ = p.SetValue(9) })
			return f
		})
		v, err := af.Get()
		require.NoError(t, err)
		got = v
	})

	require.NoError(t, k.Run())
	require.Equal(t, 9, got)
}

func TestActorFutureWaitForTimesOut(t *testing.T) {
	k, err := NewKernel()
	require.NoError(t, err)

	var gotErr error
	var resumedAt TimePoint
	k.Spawn(func(ac *ActorContext) {
		af := KernelAsync(ac, func(k *Kernel) Future[int] {
			p := NewPromise[int](k)
			f, _ := p.Future()
			// Never settled within the window under test.
			k.events.schedule(k.Now().Add(100), func() { _ = p.SetValue(1) })
			return f
		})
		_, gotErr = af.WaitFor(1)
		resumedAt = ac.Now()
	})

	require.NoError(t, k.Run())
	require.ErrorIs(t, gotErr, ErrTimeout)
	require.Equal(t, TimePoint(1), resumedAt)
}

func TestLegacySimcallDispatch(t *testing.T) {
	k, err := NewKernel()
	require.NoError(t, err)

	k.RegisterLegacy(1, func(k *Kernel, a *Actor, args []any) (any, error) {
		return args[0].(int) * 2, nil
	})

	var got int
	k.Spawn(func(ac *ActorContext) {
		v, err := LegacySimcall(ac, 1, 21)
		require.NoError(t, err)
		got = v.(int)
	})

	require.NoError(t, k.Run())
	require.Equal(t, 42, got)
}

func TestLegacySimcallUnknownTag(t *testing.T) {
	k, err := NewKernel()
	require.NoError(t, err)

	var callErr error
	k.Spawn(func(ac *ActorContext) {
		_, callErr = LegacySimcall(ac, 99)
	})

	require.NoError(t, k.Run())
	require.Error(t, callErr)
}
