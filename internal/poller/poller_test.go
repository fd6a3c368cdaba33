package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aksea/PangGuai-Web/internal/api"
	"github.com/aksea/PangGuai-Web/internal/config"
	"github.com/aksea/PangGuai-Web/internal/mocks"
)

var testCfg = config.PollerConfig{
	ActiveInterval: 3 * time.Millisecond,
	IdleInterval:   10 * time.Millisecond,
	ErrorInterval:  15 * time.Millisecond,
}

// scriptedFetcher replays a fixed status sequence and records the refresh
// flag of every call.
type scriptedFetcher struct {
	mu       sync.Mutex
	statuses []string
	calls    []bool
}

func (f *scriptedFetcher) UserStatus(ctx context.Context, refresh bool) (api.UserStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, refresh)
	idx := len(f.calls) - 1
	if idx >= len(f.statuses) {
		idx = len(f.statuses) - 1
	}
	return api.UserStatus{TaskStatus: f.statuses[idx], Nick: "tester", Integral: 100}, nil
}

func newPoller(fetch StatusFetcher) (*Poller, *mocks.Notifier) {
	notifier := mocks.NewNotifier()
	return New(testCfg, fetch, notifier, zap.NewNop()), notifier
}

func TestStep_IntervalSelection(t *testing.T) {
	cases := []struct {
		status string
		want   time.Duration
	}{
		{api.TaskRunning, testCfg.ActiveInterval},
		{api.TaskPending, testCfg.ActiveInterval},
		{api.TaskIdle, testCfg.IdleInterval},
		{api.TaskDone, testCfg.IdleInterval},
		{api.TaskFailed, testCfg.IdleInterval},
	}

	for _, tc := range cases {
		p, _ := newPoller(&scriptedFetcher{statuses: []string{tc.status}})
		assert.Equal(t, tc.want, p.step(context.Background()), tc.status)
	}
}

func TestStep_ErrorBacksOffAndKeepsPolicy(t *testing.T) {
	fetch := &mocks.StatusFetcher{}
	fetch.On("UserStatus", context.Background(), false).
		Return(nil, errors.New("connection refused")).Twice()
	fetch.On("UserStatus", context.Background(), false).
		Return(api.UserStatus{TaskStatus: api.TaskRunning}, nil).Once()

	p, _ := newPoller(fetch)

	assert.Equal(t, testCfg.ErrorInterval, p.step(context.Background()))
	assert.Equal(t, testCfg.ErrorInterval, p.step(context.Background()))
	// Third attempt of the same step finally lands.
	assert.Equal(t, testCfg.ActiveInterval, p.step(context.Background()))

	fetch.AssertExpectations(t)
}

func TestRefreshCoalescing(t *testing.T) {
	fetch := &scriptedFetcher{statuses: []string{
		api.TaskRunning, api.TaskRunning, api.TaskIdle, api.TaskIdle, api.TaskIdle,
	}}
	p, _ := newPoller(fetch)

	for i := 0; i < 5; i++ {
		p.step(context.Background())
	}

	// The refresh variant fires exactly once: on the first poll whose
	// previous observation was already idle after the active period.
	assert.Equal(t, []bool{false, false, false, true, false}, fetch.calls)
}

func TestRefreshCoalescing_ForceActivePrimesPolicy(t *testing.T) {
	fetch := &scriptedFetcher{statuses: []string{api.TaskIdle, api.TaskIdle, api.TaskIdle}}
	p, _ := newPoller(fetch)
	p.policy = policy{wasActive: true}

	for i := 0; i < 3; i++ {
		p.step(context.Background())
	}

	assert.Equal(t, []bool{false, true, false}, fetch.calls)
}

func TestStep_RendersVerbatimAndTogglesControls(t *testing.T) {
	p, notifier := newPoller(&scriptedFetcher{statuses: []string{api.TaskRunning, api.TaskDone}})

	p.step(context.Background())
	p.step(context.Background())

	assert.Equal(t, []string{api.TaskRunning, api.TaskDone}, notifier.Statuses())

	startStates := notifier.ControlStates("start_task")
	stopStates := notifier.ControlStates("stop_task")
	require.Len(t, startStates, 2)
	require.Len(t, stopStates, 2)
	assert.Equal(t, startStates[0], stopStates[1])
	assert.Equal(t, startStates[1], stopStates[0])
}

// concurrencyFetcher fails the single-outstanding-fetch invariant if two
// calls ever overlap.
type concurrencyFetcher struct {
	inFlight atomic.Int32
	max      atomic.Int32
	total    atomic.Int32
}

func (f *concurrencyFetcher) UserStatus(ctx context.Context, refresh bool) (api.UserStatus, error) {
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		prev := f.max.Load()
		if cur <= prev || f.max.CompareAndSwap(prev, cur) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)
	f.total.Add(1)
	return api.UserStatus{TaskStatus: api.TaskRunning}, nil
}

func TestRun_SingleOutstandingFetch(t *testing.T) {
	fetch := &concurrencyFetcher{}
	p, _ := newPoller(fetch)

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()

	err := p.Run(ctx, false)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	assert.GreaterOrEqual(t, fetch.total.Load(), int32(3))
	assert.Equal(t, int32(1), fetch.max.Load())
}
