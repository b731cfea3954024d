package resilience_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tournevent/freight/pkg/resilience"
)

var _ = Describe("Guard", func() {
	var (
		ctx    context.Context
		cancel context.CancelFunc
		client *mockClient
	)

	retryOpts := func(attempts int) []resilience.RetryOption {
		return []resilience.RetryOption{
			resilience.WithMaxAttempts(attempts),
			resilience.WithMultiplier(time.Millisecond),
			resilience.WithExponentialBackoff(time.Millisecond, 2*time.Millisecond),
		}
	}

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		client = &mockClient{}
	})

	AfterEach(func() {
		cancel()
	})

	It("retries transient failures through a closed breaker", func() {
		client.executeFunc = func(ctx context.Context, req string) (string, error) {
			if client.getCallCount() < 2 {
				return "", errTransient
			}
			return "ok", nil
		}

		guarded := resilience.Guard[string, string](client,
			[]resilience.CircuitBreakerOption{resilience.WithFailureThreshold(3)},
			retryOpts(3)...)

		resp, err := guarded.Execute(ctx, "a")
		Expect(err).NotTo(HaveOccurred())
		Expect(resp).To(Equal("ok"))
		Expect(client.getCallCount()).To(Equal(2))
		Expect(guarded.Breaker().State()).To(Equal(resilience.StateClosed))
	})

	It("stops retrying as soon as the breaker opens", func() {
		client.executeFunc = func(ctx context.Context, req string) (string, error) {
			return "", errTransient
		}

		guarded := resilience.Guard[string, string](client,
			[]resilience.CircuitBreakerOption{
				resilience.WithBreakerName("dep"),
				resilience.WithFailureThreshold(2),
				resilience.WithResetTimeout(time.Minute),
			},
			retryOpts(5)...)

		_, err := guarded.Execute(ctx, "a")
		Expect(errors.Is(err, resilience.ErrCircuitOpen)).To(BeTrue())
		Expect(client.getCallCount()).To(Equal(2))
		Expect(guarded.GetHealth().Healthy).To(BeFalse())

		_, err = guarded.Execute(ctx, "a")
		Expect(errors.Is(err, resilience.ErrCircuitOpen)).To(BeTrue())
		Expect(client.getCallCount()).To(Equal(2))
	})

	It("reports exhaustion when the breaker tolerates every attempt", func() {
		client.executeFunc = func(ctx context.Context, req string) (string, error) {
			return "", errTransient
		}

		guarded := resilience.Guard[string, string](client,
			[]resilience.CircuitBreakerOption{resilience.WithFailureThreshold(10)},
			retryOpts(3)...)

		_, err := guarded.Execute(ctx, "a")
		var exhausted *resilience.ExhaustedError
		Expect(errors.As(err, &exhausted)).To(BeTrue())
		Expect(exhausted.Attempts).To(Equal(3))
		Expect(guarded.Breaker().Counts().ConsecutiveFailures).To(Equal(uint32(3)))
	})
})
