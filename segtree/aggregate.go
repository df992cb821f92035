package segtree

import (
	"math"
	"strings"

	"github.com/wyfcoding/versioned/xerrors"
)

// Aggregator 区间聚合方式。Apply 描述一次区间加 delta 对长度为 length 的区间聚合值的影响。
type Aggregator interface {
	Name() string
	Identity() int64
	Combine(a, b int64) int64
	Apply(value, delta int64, length int) int64
}

type sumAggregator struct{}

func (sumAggregator) Name() string             { return "sum" }
func (sumAggregator) Identity() int64          { return 0 }
func (sumAggregator) Combine(a, b int64) int64 { return a + b }
func (sumAggregator) Apply(value, delta int64, length int) int64 {
	return value + delta*int64(length)
}

type minAggregator struct{}

func (minAggregator) Name() string             { return "min" }
func (minAggregator) Identity() int64          { return math.MaxInt64 }
func (minAggregator) Combine(a, b int64) int64 { return min(a, b) }
func (minAggregator) Apply(value, delta int64, _ int) int64 {
	return value + delta
}

type maxAggregator struct{}

func (maxAggregator) Name() string             { return "max" }
func (maxAggregator) Identity() int64          { return math.MinInt64 }
func (maxAggregator) Combine(a, b int64) int64 { return max(a, b) }
func (maxAggregator) Apply(value, delta int64, _ int) int64 {
	return value + delta
}

var (
	// Sum 区间和。
	Sum Aggregator = sumAggregator{}
	// Min 区间最小值。
	Min Aggregator = minAggregator{}
	// Max 区间最大值。
	Max Aggregator = maxAggregator{}
)

// ParseAggregator 按名称解析聚合方式，空字符串视为 sum。
func ParseAggregator(name string) (Aggregator, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sum":
		return Sum, nil
	case "min":
		return Min, nil
	case "max":
		return Max, nil
	default:
		return nil, xerrors.ErrUnknownAggregator.Derive("aggregator %q", name)
	}
}
