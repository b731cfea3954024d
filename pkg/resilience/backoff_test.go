package resilience_test

import (
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tournevent/freight/pkg/resilience"
)

var _ = Describe("ExponentialDelay", func() {
	DescribeTable("bounds the doubling delay",
		func(attempt int, minWait, maxWait, expected time.Duration) {
			Expect(resilience.ExponentialDelay(attempt, time.Second, minWait, maxWait)).To(Equal(expected))
		},
		Entry("first retry", 1, time.Second, 10*time.Second, time.Second),
		Entry("second retry doubles", 2, time.Second, 10*time.Second, 2*time.Second),
		Entry("fourth retry", 4, time.Second, 10*time.Second, 8*time.Second),
		Entry("capped at max", 5, time.Second, 10*time.Second, 10*time.Second),
		Entry("floored at min", 1, 3*time.Second, 10*time.Second, 3*time.Second),
		Entry("routing cap", 4, time.Second, 5*time.Second, 5*time.Second),
		Entry("attempt zero treated as first", 0, time.Second, 10*time.Second, time.Second),
		Entry("huge attempt stays capped", 200, time.Second, 10*time.Second, 10*time.Second),
		Entry("attempt past int64 range stays capped", 40, time.Second, 10*time.Second, 10*time.Second),
		Entry("attempt past float range stays capped", 1100, time.Second, 10*time.Second, 10*time.Second),
		Entry("uncapped growth saturates", 64, time.Second, time.Second, 0, time.Duration(math.MaxInt64)),
	)
})
