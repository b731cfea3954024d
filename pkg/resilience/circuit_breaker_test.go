package resilience_test

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tournevent/freight/pkg/resilience"
)

var _ = Describe("CircuitBreakerWrapper", func() {
	var (
		ctx    context.Context
		client *mockClient
	)

	failing := func(ctx context.Context, req string) (string, error) {
		return "", errTransient
	}
	succeeding := func(ctx context.Context, req string) (string, error) {
		return "ok", nil
	}

	BeforeEach(func() {
		ctx = context.Background()
		client = &mockClient{executeFunc: succeeding}
	})

	Describe("Default configuration", func() {
		It("starts closed with a threshold of three and a thirty second reset", func() {
			config := resilience.DefaultCircuitBreakerConfig()
			Expect(config.FailureThreshold).To(Equal(uint32(3)))
			Expect(config.ResetTimeout).To(Equal(30 * time.Second))

			wrapper := resilience.NewCircuitBreakerWrapper[string, string](client)
			Expect(wrapper.State()).To(Equal(resilience.StateClosed))
			Expect(wrapper.GetHealth().Healthy).To(BeTrue())
		})
	})

	Describe("State transitions", func() {
		It("opens after the configured number of consecutive failures", func() {
			client.executeFunc = failing
			wrapper := resilience.NewCircuitBreakerWrapper[string, string](client,
				resilience.WithBreakerName("dep"),
				resilience.WithFailureThreshold(3),
			)

			for i := 0; i < 2; i++ {
				_, err := wrapper.Execute(ctx, "a")
				Expect(err).To(MatchError(errTransient))
			}
			Expect(wrapper.State()).To(Equal(resilience.StateClosed))

			_, err := wrapper.Execute(ctx, "a")
			Expect(err).To(MatchError(errTransient))
			Expect(wrapper.State()).To(Equal(resilience.StateOpen))
		})

		It("resets the failure streak on success", func() {
			wrapper := resilience.NewCircuitBreakerWrapper[string, string](client,
				resilience.WithFailureThreshold(3),
			)

			client.executeFunc = failing
			_, _ = wrapper.Execute(ctx, "a")
			_, _ = wrapper.Execute(ctx, "a")
			client.executeFunc = succeeding
			_, _ = wrapper.Execute(ctx, "a")
			client.executeFunc = failing
			_, _ = wrapper.Execute(ctx, "a")
			_, _ = wrapper.Execute(ctx, "a")

			Expect(wrapper.State()).To(Equal(resilience.StateClosed))
			Expect(wrapper.Counts().ConsecutiveFailures).To(Equal(uint32(2)))
		})

		It("rejects calls without executing them while open", func() {
			client.executeFunc = failing
			wrapper := resilience.NewCircuitBreakerWrapper[string, string](client,
				resilience.WithBreakerName("dep"),
				resilience.WithFailureThreshold(1),
				resilience.WithResetTimeout(time.Minute),
			)

			_, _ = wrapper.Execute(ctx, "a")
			Expect(client.getCallCount()).To(Equal(1))

			_, err := wrapper.Execute(ctx, "a")
			Expect(errors.Is(err, resilience.ErrCircuitOpen)).To(BeTrue())
			Expect(client.getCallCount()).To(Equal(1))

			var breakerErr *resilience.BreakerError
			Expect(errors.As(err, &breakerErr)).To(BeTrue())
			Expect(breakerErr.Name).To(Equal("dep"))
			Expect(wrapper.GetHealth().Healthy).To(BeFalse())
			Expect(wrapper.GetHealth().State).To(Equal("open"))
		})

		It("closes after a successful trial once the reset timeout elapses", func() {
			client.executeFunc = failing
			wrapper := resilience.NewCircuitBreakerWrapper[string, string](client,
				resilience.WithFailureThreshold(1),
				resilience.WithResetTimeout(20*time.Millisecond),
			)

			_, _ = wrapper.Execute(ctx, "a")
			Expect(wrapper.State()).To(Equal(resilience.StateOpen))

			Eventually(wrapper.State).WithTimeout(time.Second).
				WithPolling(5 * time.Millisecond).Should(Equal(resilience.StateHalfOpen))

			client.executeFunc = succeeding
			resp, err := wrapper.Execute(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp).To(Equal("ok"))
			Expect(wrapper.State()).To(Equal(resilience.StateClosed))
		})

		It("reopens when the half-open trial fails", func() {
			client.executeFunc = failing
			wrapper := resilience.NewCircuitBreakerWrapper[string, string](client,
				resilience.WithFailureThreshold(1),
				resilience.WithResetTimeout(20*time.Millisecond),
			)

			_, _ = wrapper.Execute(ctx, "a")
			Eventually(wrapper.State).WithTimeout(time.Second).
				WithPolling(5 * time.Millisecond).Should(Equal(resilience.StateHalfOpen))

			_, err := wrapper.Execute(ctx, "a")
			Expect(err).To(MatchError(errTransient))
			Expect(wrapper.State()).To(Equal(resilience.StateOpen))
		})

		It("reports transitions to the state change callback", func() {
			var (
				mu          sync.Mutex
				transitions []resilience.CircuitBreakerState
			)

			client.executeFunc = failing
			wrapper := resilience.NewCircuitBreakerWrapper[string, string](client,
				resilience.WithBreakerName("dep"),
				resilience.WithFailureThreshold(1),
				resilience.WithResetTimeout(20*time.Millisecond),
				resilience.WithOnStateChange(func(name string, from, to resilience.CircuitBreakerState) {
					mu.Lock()
					defer mu.Unlock()
					Expect(name).To(Equal("dep"))
					transitions = append(transitions, to)
				}),
			)

			_, _ = wrapper.Execute(ctx, "a")
			Eventually(wrapper.State).WithTimeout(time.Second).
				WithPolling(5 * time.Millisecond).Should(Equal(resilience.StateHalfOpen))
			client.executeFunc = succeeding
			_, _ = wrapper.Execute(ctx, "a")

			mu.Lock()
			defer mu.Unlock()
			Expect(transitions).To(Equal([]resilience.CircuitBreakerState{
				resilience.StateOpen,
				resilience.StateHalfOpen,
				resilience.StateClosed,
			}))
		})
	})

	Describe("Half-open trial", func() {
		It("admits exactly one trial and rejects concurrent calls without reaching the client", func() {
			started := make(chan struct{})
			release := make(chan struct{})
			client.executeFunc = func(ctx context.Context, req string) (string, error) {
				if req == "fail" {
					return "", errTransient
				}
				close(started)
				<-release
				return "ok", nil
			}
			wrapper := resilience.NewCircuitBreakerWrapper[string, string](client,
				resilience.WithBreakerName("dep"),
				resilience.WithFailureThreshold(1),
				resilience.WithResetTimeout(20*time.Millisecond),
			)

			_, _ = wrapper.Execute(ctx, "fail")
			Eventually(wrapper.State).WithTimeout(time.Second).
				WithPolling(5 * time.Millisecond).Should(Equal(resilience.StateHalfOpen))

			trial := make(chan error, 1)
			go func() {
				_, err := wrapper.Execute(ctx, "trial")
				trial <- err
			}()
			Eventually(started).WithTimeout(time.Second).Should(BeClosed())

			_, err := wrapper.Execute(ctx, "second")
			Expect(err).To(MatchError(resilience.ErrCircuitOpen))
			var breakerErr *resilience.BreakerError
			Expect(errors.As(err, &breakerErr)).To(BeTrue())
			Expect(breakerErr.Name).To(Equal("dep"))
			Expect(breakerErr.State).To(Equal(resilience.StateHalfOpen))
			Expect(client.getCallCount()).To(Equal(2))

			close(release)
			Eventually(trial).WithTimeout(time.Second).Should(Receive(BeNil()))
			Expect(wrapper.State()).To(Equal(resilience.StateClosed))
		})
	})

	Describe("Calls abandoned by the caller", func() {
		It("counts them as neither success nor failure", func() {
			client.executeFunc = func(ctx context.Context, req string) (string, error) {
				<-ctx.Done()
				return "", errTransient
			}
			wrapper := resilience.NewCircuitBreakerWrapper[string, string](client,
				resilience.WithFailureThreshold(1),
			)

			for i := 0; i < 3; i++ {
				callCtx, cancel := context.WithTimeout(ctx, 5*time.Millisecond)
				_, err := wrapper.Execute(callCtx, "a")
				cancel()
				Expect(err).To(MatchError(errTransient))
				var breakerErr *resilience.BreakerError
				Expect(errors.As(err, &breakerErr)).To(BeFalse())
			}

			Expect(wrapper.State()).To(Equal(resilience.StateClosed))
			counts := wrapper.Counts()
			Expect(counts.TotalFailures).To(BeZero())
			Expect(counts.ConsecutiveFailures).To(BeZero())
			Expect(counts.TotalSuccesses).To(BeZero())
			Expect(counts.TotalExclusions).To(Equal(uint32(3)))
		})

		It("still counts failures when the caller's context is live", func() {
			client.executeFunc = failing
			wrapper := resilience.NewCircuitBreakerWrapper[string, string](client,
				resilience.WithFailureThreshold(2),
			)

			_, _ = wrapper.Execute(ctx, "a")
			Expect(wrapper.Counts().TotalFailures).To(Equal(uint32(1)))
			Expect(wrapper.Counts().TotalExclusions).To(BeZero())
		})

		It("frees the half-open slot when the trial is abandoned", func() {
			client.executeFunc = failing
			wrapper := resilience.NewCircuitBreakerWrapper[string, string](client,
				resilience.WithFailureThreshold(1),
				resilience.WithResetTimeout(20*time.Millisecond),
			)

			_, _ = wrapper.Execute(ctx, "a")
			Eventually(wrapper.State).WithTimeout(time.Second).
				WithPolling(5 * time.Millisecond).Should(Equal(resilience.StateHalfOpen))

			cancelled, cancel := context.WithCancel(ctx)
			cancel()
			_, err := wrapper.Execute(cancelled, "a")
			Expect(err).To(MatchError(errTransient))
			Expect(wrapper.State()).To(Equal(resilience.StateHalfOpen))

			client.executeFunc = succeeding
			resp, err := wrapper.Execute(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp).To(Equal("ok"))
			Expect(wrapper.State()).To(Equal(resilience.StateClosed))
		})
	})

	Describe("CircuitBreakerState", func() {
		It("names every state", func() {
			Expect(resilience.StateClosed.String()).To(Equal("closed"))
			Expect(resilience.StateHalfOpen.String()).To(Equal("half-open"))
			Expect(resilience.StateOpen.String()).To(Equal("open"))
		})
	})
})
