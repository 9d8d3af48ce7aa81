package csp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Narrowing(t *testing.T) {
	s := NewStore()
	x, err := s.IntVar("x", 0, 10)
	require.NoError(t, err)

	require.NoError(t, s.SetLB(x, 3))
	require.NoError(t, s.SetUB(x, 7))
	assert.Equal(t, 3, s.LB(x))
	assert.Equal(t, 7, s.UB(x))

	// Looser bounds are ignored, never applied.
	require.NoError(t, s.SetLB(x, 1))
	require.NoError(t, s.SetUB(x, 9))
	assert.Equal(t, 3, s.LB(x))
	assert.Equal(t, 7, s.UB(x))

	require.NoError(t, s.Remove(x, 5))
	assert.False(t, s.Contains(x, 5))
	assert.Equal(t, 4, s.Size(x))

	err = s.SetLB(x, 8)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrContradiction))
}

func TestStore_InvalidVariables(t *testing.T) {
	s := NewStore()
	_, err := s.IntVar("bad", 3, 2)
	assert.Error(t, err)

	_, err = s.EnumVar("none")
	assert.Error(t, err)
}

func TestStore_EnumDomain(t *testing.T) {
	s := NewStore()
	d, err := s.EnumVar("d", 7, 0, 7)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 7}, s.Values(d))

	require.NoError(t, s.SetLB(d, 1))
	assert.True(t, s.Bound(d))
	assert.Equal(t, 7, s.Value(d))
}

func TestStore_PushPop(t *testing.T) {
	s := NewStore()
	x, _ := s.IntVar("x", 0, 10)
	y, _ := s.IntVar("y", 0, 10)
	s.Post(&LessEq{X: x, Y: y})

	s.Push()
	require.NoError(t, s.SetLB(x, 4))
	require.NoError(t, s.Fixpoint())
	assert.Equal(t, 4, s.LB(y))

	s.Push()
	require.NoError(t, s.Instantiate(y, 6))
	require.NoError(t, s.Fixpoint())
	assert.Equal(t, 6, s.UB(x))

	s.Pop()
	assert.Equal(t, 10, s.UB(x))
	assert.Equal(t, 4, s.LB(y))
	assert.False(t, s.Bound(y))

	s.Pop()
	assert.Equal(t, 0, s.LB(x))
	assert.Equal(t, 0, s.LB(y))
	assert.Equal(t, 0, s.Depth())
}

func TestStore_FixpointFailureFlushesQueue(t *testing.T) {
	s := NewStore()
	x, _ := s.IntVar("x", 5, 10)
	y, _ := s.IntVar("y", 0, 3)
	s.Post(&LessEq{X: x, Y: y})

	err := s.Fixpoint()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrContradiction))
	assert.Equal(t, 1, s.Stats().Failures)

	// Nothing left to run.
	assert.NoError(t, s.Fixpoint())
}

func TestStore_Solve(t *testing.T) {
	s := NewStore()
	x, _ := s.IntVar("x", 0, 5)
	y, _ := s.IntVar("y", 0, 5)
	z, _ := s.IntVar("z", 0, 10)
	s.Post(&Sum{X: x, Y: y, Z: z})
	s.Post(&Func{
		Label: "x!=y",
		On:    []Var{x, y},
		Fn: func(s *Store) error {
			if s.Bound(x) {
				return s.Remove(y, s.Value(x))
			}
			return nil
		},
	})
	require.NoError(t, s.SetLB(z, 3))

	ok, err := s.Solve(context.Background(), SearchOptions{Order: []Var{z, x, y}})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, s.Value(z))
	assert.Equal(t, 0, s.Value(x))
	assert.Equal(t, 3, s.Value(y))
}

func TestStore_SolveInfeasible(t *testing.T) {
	s := NewStore()
	a := s.BoolVar("a")
	b := s.BoolVar("b")
	s.Post(&Not{A: a, B: b})
	s.Post(&Func{
		Label: "a==b",
		On:    []Var{a, b},
		Fn:    func(s *Store) error { return equalBounds(s, a, b) },
	})

	ok, err := s.Solve(context.Background(), SearchOptions{})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Depth())
	assert.False(t, s.Bound(a))
}

func TestStore_SolveCancelled(t *testing.T) {
	s := NewStore()
	_, _ = s.IntVar("x", 0, 5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok, err := s.Solve(ctx, SearchOptions{})
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStore_SolveNodeLimit(t *testing.T) {
	s := NewStore()
	for i := 0; i < 5; i++ {
		_, _ = s.IntVar("x", 0, 5)
	}
	ok, err := s.Solve(context.Background(), SearchOptions{NodeLimit: 2})
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrNodeLimit)
}

func TestStore_WideningPanics(t *testing.T) {
	s := NewStore()
	x, _ := s.IntVar("x", 0, 5)
	assert.Panics(t, func() {
		_ = s.update(x, boundedDomain(-1, 5))
	})
}
