package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errCallerFault = errors.New("caller fault")

func newTestConfig(name string, threshold uint) Config {
	return Config{
		Name:             name,
		Enabled:          true,
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          100 * time.Millisecond,
		FailureThreshold: threshold,
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		cfg      Config
		wantNil  bool
		wantName string
	}{
		{
			name:     "creates circuit breaker when enabled",
			cfg:      newTestConfig("queue-publish", 5),
			wantName: "queue-publish",
		},
		{
			name:    "returns nil when disabled",
			cfg:     Config{Name: "disabled", Enabled: false},
			wantNil: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cb := New[string](tc.cfg)

			if tc.wantNil {
				require.Nil(t, cb)
				require.Equal(t, StateClosed, cb.State())

				return
			}

			require.NotNil(t, cb)
			require.Equal(t, tc.wantName, cb.Name())
			require.Equal(t, StateClosed, cb.State())
		})
	}
}

func TestExecute(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		cb        *CircuitBreaker[string]
		fn        func() (string, error)
		wantVal   string
		errSubstr string
	}{
		{
			name:    "executes successfully with circuit breaker",
			cb:      New[string](newTestConfig("success", 5)),
			fn:      func() (string, error) { return "success", nil },
			wantVal: "success",
		},
		{
			name:    "passes through when circuit breaker is nil",
			fn:      func() (string, error) { return "direct", nil },
			wantVal: "direct",
		},
		{
			name:      "returns error from function",
			cb:        New[string](newTestConfig("error", 5)),
			fn:        func() (string, error) { return "", errors.New("operation failed") },
			errSubstr: "operation failed",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			result, err := Execute(tc.cb, tc.fn)

			if tc.errSubstr != "" {
				require.ErrorContains(t, err, tc.errSubstr)
			} else {
				require.NoError(t, err)
			}

			require.Equal(t, tc.wantVal, result)
		})
	}
}

func TestCircuitBreaker_OpenState(t *testing.T) {
	t.Parallel()

	cb := New[string](newTestConfig("open-state", 1))

	_, err := Execute(cb, func() (string, error) {
		return "", errors.New("failure")
	})
	require.Error(t, err)
	require.Equal(t, StateOpen, cb.State())

	_, err = Execute(cb, func() (string, error) {
		return "should not execute", nil
	})
	require.ErrorIs(t, err, ErrCircuitOpen)
	require.True(t, IsRejection(err))
}

func TestCircuitBreaker_HalfOpenRecovers(t *testing.T) {
	t.Parallel()

	cb := New[string](newTestConfig("half-open", 1))

	_, _ = Execute(cb, func() (string, error) {
		return "", errors.New("failure")
	})

	time.Sleep(150 * time.Millisecond)

	result, err := Execute(cb, func() (string, error) {
		return "recovered", nil
	})
	require.NoError(t, err)
	require.Equal(t, "recovered", result)
	require.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_IsSuccessfulKeepsCircuitClosed(t *testing.T) {
	t.Parallel()

	cfg := newTestConfig("caller-errors", 1)
	cfg.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, errCallerFault)
	}
	cb := New[string](cfg)

	for range 3 {
		_, err := Execute(cb, func() (string, error) {
			return "", errCallerFault
		})
		require.ErrorIs(t, err, errCallerFault)
	}

	require.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	t.Parallel()

	var (
		mu          sync.Mutex
		transitions []State
	)

	cfg := newTestConfig("transitions", 1)
	cfg.OnStateChange = func(_ string, _, to State) {
		mu.Lock()
		defer mu.Unlock()

		transitions = append(transitions, to)
	}
	cb := New[string](cfg)

	_, _ = Execute(cb, func() (string, error) {
		return "", errors.New("failure")
	})

	mu.Lock()
	defer mu.Unlock()

	require.Equal(t, []State{StateOpen}, transitions)
}

func TestExecuteContext(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		ctx     func(t *testing.T) context.Context
		fn      func(ctx context.Context) (string, error)
		wantErr error
		wantVal string
	}{
		{
			name: "returns value within deadline",
			ctx: func(t *testing.T) context.Context {
				return t.Context()
			},
			fn: func(_ context.Context) (string, error) {
				return "published", nil
			},
			wantVal: "published",
		},
		{
			name: "rejects an already cancelled context without calling fn",
			ctx: func(t *testing.T) context.Context {
				ctx, cancel := context.WithCancel(t.Context())
				cancel()

				return ctx
			},
			fn: func(_ context.Context) (string, error) {
				panic("must not be called")
			},
			wantErr: context.Canceled,
		},
		{
			name: "turns a late success into a deadline failure",
			ctx: func(t *testing.T) context.Context {
				ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
				t.Cleanup(cancel)

				return ctx
			},
			fn: func(ctx context.Context) (string, error) {
				<-ctx.Done()

				return "too late", nil
			},
			wantErr: context.DeadlineExceeded,
			wantVal: "too late",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cb := New[string](newTestConfig(tc.name, 5))

			result, err := ExecuteContext(tc.ctx(t), cb, tc.fn)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
			} else {
				require.NoError(t, err)
			}

			require.Equal(t, tc.wantVal, result)
		})
	}
}
