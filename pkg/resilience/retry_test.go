package resilience_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tournevent/freight/pkg/resilience"
)

var errTransient = errors.New("temporarily unavailable")

var _ = Describe("RetryWrapper", func() {
	var (
		ctx    context.Context
		cancel context.CancelFunc
		client *mockClient
		fast   []resilience.RetryOption
	)

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		client = &mockClient{}
		fast = []resilience.RetryOption{
			resilience.WithRetryName("test"),
			resilience.WithMultiplier(time.Millisecond),
			resilience.WithExponentialBackoff(time.Millisecond, 5*time.Millisecond),
		}
	})

	AfterEach(func() {
		cancel()
	})

	Describe("NewRetryWrapper", func() {
		It("uses defaults of three attempts between one and ten seconds", func() {
			wrapper := resilience.NewRetryWrapper[string, string](client)
			config := wrapper.Config()
			Expect(config.MaxAttempts).To(Equal(3))
			Expect(config.MinWait).To(Equal(time.Second))
			Expect(config.MaxWait).To(Equal(10 * time.Second))
			Expect(wrapper.Delays()).To(Equal([]time.Duration{time.Second, 2 * time.Second}))
		})
	})

	Describe("Execute", func() {
		It("returns the response on the first attempt", func() {
			client.executeFunc = func(ctx context.Context, req string) (string, error) {
				return "ok:" + req, nil
			}

			wrapper := resilience.NewRetryWrapper[string, string](client, fast...)
			resp, err := wrapper.Execute(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp).To(Equal("ok:a"))
			Expect(client.getCallCount()).To(Equal(1))

			stats := wrapper.GetRetryStats()
			Expect(stats.TotalAttempts).To(Equal(int64(1)))
			Expect(stats.TotalRetries).To(Equal(int64(0)))
			Expect(stats.TotalSuccesses).To(Equal(int64(1)))
		})

		It("succeeds on the third attempt after two transient failures", func() {
			client.executeFunc = func(ctx context.Context, req string) (string, error) {
				if client.getCallCount() < 3 {
					return "", errTransient
				}
				return "ok", nil
			}

			var retried []int
			opts := append(fast,
				resilience.WithMaxAttempts(3),
				resilience.WithOnRetry(func(name string, attempt int, err error) {
					retried = append(retried, attempt)
				}),
			)

			wrapper := resilience.NewRetryWrapper[string, string](client, opts...)
			resp, err := wrapper.Execute(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp).To(Equal("ok"))
			Expect(client.getCallCount()).To(Equal(3))
			Expect(retried).To(Equal([]int{1, 2}))
			Expect(wrapper.GetRetryStats().TotalRetries).To(Equal(int64(2)))
		})

		It("returns ExhaustedError when every attempt fails", func() {
			client.executeFunc = func(ctx context.Context, req string) (string, error) {
				return "", errTransient
			}

			wrapper := resilience.NewRetryWrapper[string, string](client, append(fast, resilience.WithMaxAttempts(3))...)
			_, err := wrapper.Execute(ctx, "a")
			Expect(err).To(HaveOccurred())
			Expect(client.getCallCount()).To(Equal(3))

			var exhausted *resilience.ExhaustedError
			Expect(errors.As(err, &exhausted)).To(BeTrue())
			Expect(exhausted.Attempts).To(Equal(3))
			Expect(errors.Is(err, errTransient)).To(BeTrue())
			Expect(wrapper.GetRetryStats().TotalFailures).To(Equal(int64(1)))
		})

		It("does not retry non-retryable errors", func() {
			permanent := errors.New("bad request")
			client.executeFunc = func(ctx context.Context, req string) (string, error) {
				return "", permanent
			}

			classifier := resilience.ClassifierFunc(func(err error) bool {
				return !errors.Is(err, permanent)
			})
			wrapper := resilience.NewRetryWrapper[string, string](client,
				append(fast, resilience.WithErrorClassifier(classifier))...)

			_, err := wrapper.Execute(ctx, "a")
			Expect(err).To(MatchError(permanent))
			Expect(client.getCallCount()).To(Equal(1))

			var exhausted *resilience.ExhaustedError
			Expect(errors.As(err, &exhausted)).To(BeFalse())
		})

		It("never retries a breaker rejection even with a permissive classifier", func() {
			client.executeFunc = func(ctx context.Context, req string) (string, error) {
				return "", &resilience.BreakerError{Name: "dep", State: resilience.StateOpen}
			}

			always := resilience.ClassifierFunc(func(error) bool { return true })
			wrapper := resilience.NewRetryWrapper[string, string](client,
				append(fast, resilience.WithErrorClassifier(always))...)

			_, err := wrapper.Execute(ctx, "a")
			Expect(errors.Is(err, resilience.ErrCircuitOpen)).To(BeTrue())
			Expect(client.getCallCount()).To(Equal(1))
		})

		It("stops when the context is cancelled", func() {
			client.executeFunc = func(ctx context.Context, req string) (string, error) {
				return "", errTransient
			}

			wrapper := resilience.NewRetryWrapper[string, string](client,
				resilience.WithMaxAttempts(5),
				resilience.WithMultiplier(time.Second),
				resilience.WithExponentialBackoff(time.Second, time.Second),
			)

			short, stop := context.WithTimeout(ctx, 50*time.Millisecond)
			defer stop()

			_, err := wrapper.Execute(short, "a")
			Expect(errors.Is(err, context.DeadlineExceeded)).To(BeTrue())
			Expect(client.getCallCount()).To(Equal(1))
		})

		It("does not report exhaustion when the caller gave up during the last attempt", func() {
			short, stop := context.WithCancel(ctx)
			defer stop()
			client.executeFunc = func(ctx context.Context, req string) (string, error) {
				stop()
				return "", errTransient
			}

			wrapper := resilience.NewRetryWrapper[string, string](client, append(fast, resilience.WithMaxAttempts(1))...)
			_, err := wrapper.Execute(short, "a")
			Expect(err).To(MatchError(errTransient))

			var exhausted *resilience.ExhaustedError
			Expect(errors.As(err, &exhausted)).To(BeFalse())
		})

		It("rejects a non-positive attempt budget without calling", func() {
			client.executeFunc = func(ctx context.Context, req string) (string, error) {
				return "ok", nil
			}

			wrapper := resilience.NewRetryWrapper[string, string](client, resilience.WithMaxAttempts(0))
			_, err := wrapper.Execute(ctx, "a")
			Expect(err).To(HaveOccurred())
			Expect(client.getCallCount()).To(Equal(0))
		})
	})
})
