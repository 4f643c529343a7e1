package modelcache

import (
	"context"
	"fmt"
	"iter"
)

type seqState uint8

const (
	seqUnresolved seqState = iota
	seqResolving
	seqResolved
	seqFailed
)

type resolveFunc[R any] func(ctx context.Context, key string) (R, Status, error)

// Sequence is the lazy result of GetSet. The first complete traversal
// resolves each member through the record cache in order and memoizes the
// records; later traversals replay the memo without touching the backend.
//
// A missing member fails the traversal with a *SetResolutionError and the
// Sequence stays failed: discard it and fetch the set again. Stopping a
// traversal early drops the partial memo, so the next traversal starts over.
//
// A Sequence is not safe for concurrent use.
type Sequence[R any] struct {
	key     string
	keys    []string
	resolve resolveFunc[R]
	onFail  func(memberKey string)

	state seqState
	memo  []R
	err   error
}

func newSequence[R any](key string, keys []string, resolve resolveFunc[R]) *Sequence[R] {
	return &Sequence[R]{key: key, keys: keys, resolve: resolve}
}

// Key returns the named key the set was read from.
func (s *Sequence[R]) Key() string { return s.key }

// Keys returns a copy of the member primary keys in stored order.
func (s *Sequence[R]) Keys() []string { return append([]string(nil), s.keys...) }

func (s *Sequence[R]) Len() int { return len(s.keys) }

// Resolved reports whether the memo is complete.
func (s *Sequence[R]) Resolved() bool { return s.state == seqResolved }

// All iterates the records. On failure it yields a single non-nil error and stops.
func (s *Sequence[R]) All(ctx context.Context) iter.Seq2[R, error] {
	return func(yield func(R, error) bool) {
		var zero R
		switch s.state {
		case seqResolved:
			for _, v := range s.memo {
				if !yield(v, nil) {
					return
				}
			}
			return
		case seqFailed:
			yield(zero, fmt.Errorf("%w: %w", ErrSequenceFailed, s.err))
			return
		case seqResolving:
			yield(zero, ErrSequenceBusy)
			return
		}

		s.state = seqResolving
		defer func() {
			// early stop or panic in the consumer
			if s.state == seqResolving {
				s.state = seqUnresolved
			}
		}()

		memo := make([]R, 0, len(s.keys))
		for i, k := range s.keys {
			v, st, err := s.resolve(ctx, k)
			if err == nil && st != Hit {
				err = &SetResolutionError{SetKey: s.key, MemberKey: k, Index: i, Status: st}
				if s.onFail != nil {
					s.onFail(k)
				}
			}
			if err != nil {
				s.state, s.err, s.memo = seqFailed, err, nil
				yield(zero, err)
				return
			}
			memo = append(memo, v)
			if !yield(v, nil) {
				return
			}
		}
		s.memo, s.state = memo, seqResolved
	}
}

// Collect traverses the whole sequence and returns the records in order.
func (s *Sequence[R]) Collect(ctx context.Context) ([]R, error) {
	out := make([]R, 0, len(s.keys))
	for v, err := range s.All(ctx) {
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
