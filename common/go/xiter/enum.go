package xiter

import (
	"iter"
)

// Enumerate pairs every element of seq with its zero-based position.
func Enumerate[T any](seq iter.Seq[T]) iter.Seq2[int, T] {
	return EnumerateFrom(seq, 0)
}

// EnumerateFrom pairs every element of seq with its position, counting from
// start. Line numbers use start = 1.
func EnumerateFrom[T any](seq iter.Seq[T], start int) iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		idx := start
		for v := range seq {
			if !yield(idx, v) {
				return
			}

			idx++
		}
	}
}
