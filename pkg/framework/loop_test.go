package framework

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type adderFunc func(*Loop)

func (f adderFunc) AddToLoop(l *Loop) { f(l) }

func TestLoopRunOnceOrder(t *testing.T) {
	var order []int
	l := NewLoop()
	l.Add(adderFunc(func(l *Loop) {
		l.AddController(ControlFunc(func(ControlContext) error {
			order = append(order, 1)
			return errors.New("ignored")
		}))
	}))
	l.AddController(ControlFunc(func(cc ControlContext) error {
		require.NotNil(t, cc.Context())
		require.False(t, cc.Time().IsZero())
		order = append(order, 2)
		return nil
	}))
	l.RunOnce(context.Background())
	l.RunOnce(context.Background())
	require.Equal(t, []int{1, 2, 1, 2}, order)
}

func TestLoopTriggerNext(t *testing.T) {
	l := NewLoop()
	l.Interval = time.Hour
	iterCh := make(chan struct{}, 4)
	l.AddController(ControlFunc(func(ControlContext) error {
		iterCh <- struct{}{}
		return nil
	}))
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()

	l.TriggerNext()
	l.TriggerNext()
	select {
	case <-iterCh:
	case <-time.After(time.Second):
		t.Fatal("no iteration after TriggerNext")
	}
	cancel()
	require.Equal(t, context.Canceled, <-errCh)
}

func TestLoopTicks(t *testing.T) {
	l := NewLoop()
	l.Interval = time.Millisecond
	iterCh := make(chan struct{}, 1)
	l.AddController(ControlFunc(func(ControlContext) error {
		select {
		case iterCh <- struct{}{}:
		default:
		}
		return nil
	}))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)
	for i := 0; i < 3; i++ {
		select {
		case <-iterCh:
		case <-time.After(time.Second):
			t.Fatal("loop is not ticking")
		}
	}
}
