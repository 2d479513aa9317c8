package progress

import "fmt"

// Number is the set of integer types a Sink can count in.
type Number interface {
	~int32 | ~int64
}

// Raw is an unvalidated (current, total) pair as published by a Sink.
//
// Seq orders the pairs of one sink: a later mutation always carries a
// larger Seq. Zero means the pair is unordered and is never discarded as
// stale.
type Raw[T Number] struct {
	Current T
	Total   T
	Seq     uint64
}

// Value is the immutable snapshot handed to observers.
//
// Total is always at least 1. PercentComplete is in [0, 100] and is 100
// whenever Current >= Total, so a Current above Total is tolerated.
type Value[T Number] struct {
	PercentComplete int
	Current         T
	Total           T
}

// NewValue validates total and computes the percentage for current.
func NewValue[T Number](current, total T) (Value[T], error) {
	if total < 1 {
		return Value[T]{}, fmt.Errorf("%w: got %d", ErrInvalidTotal, total)
	}
	return Value[T]{
		PercentComplete: PercentComplete(int64(current), int64(total)),
		Current:         current,
		Total:           total,
	}, nil
}

func (v Value[T]) String() string {
	return fmt.Sprintf("%d%% (%d/%d)", v.PercentComplete, v.Current, v.Total)
}

// PercentComplete returns floor(current/total*100) computed in floating
// point, clamped to [0, 100]. It returns 100 whenever current >= total and
// 0 for a non-positive total.
func PercentComplete(current, total int64) int {
	if total <= 0 {
		return 0
	}
	if current >= total {
		return 100
	}
	if current <= 0 {
		return 0
	}
	p := int(float64(current) / float64(total) * 100.0)
	if p > 99 {
		// float rounding must never claim completion early
		p = 99
	}
	return p
}
