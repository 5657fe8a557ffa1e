package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFakeEmitsInOrder(t *testing.T) {
	f := NewFake("one ", "two")
	var got []string
	require.NoError(t, f.Infer(context.Background(), []float32{1}, func(s Segment) {
		got = append(got, s.Text)
	}))
	require.Equal(t, []string{"one ", "two"}, got)
	require.Equal(t, 1, f.Calls())
	require.Equal(t, []float32{1}, f.LastSamples())
}

func TestFakeError(t *testing.T) {
	boom := errors.New("boom")
	f := &Fake{Err: boom}
	require.ErrorIs(t, f.Infer(context.Background(), nil, nil), boom)
}

func TestFakeLoaderProgress(t *testing.T) {
	eng := NewFake()
	l := &FakeLoader{Engine: eng, Steps: 4}
	var ticks []float64
	got, err := l.Load(context.Background(), "/tmp/model.bin", func(p float64) { ticks = append(ticks, p) })
	require.NoError(t, err)
	require.Same(t, eng, got)
	require.Equal(t, []float64{0.25, 0.5, 0.75, 1}, ticks)
	require.Equal(t, "/tmp/model.bin", l.Path())
}

func TestLoaderFunc(t *testing.T) {
	eng := NewFake()
	var l Loader = LoaderFunc(func(context.Context, string, func(float64)) (Engine, error) {
		return eng, nil
	})
	got, err := l.Load(context.Background(), "", nil)
	require.NoError(t, err)
	require.Same(t, eng, got)
}
