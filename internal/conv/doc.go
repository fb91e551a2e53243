// Package conv provides checked integer conversions for slot and block indices.
//
// Block sizes, block counts and reservation sizes arrive as int from callers and
// are stored as uint32 indices. Conversions that can lose information go through
// this package and fail with ErrOverflow instead of silently wrapping.
//
// Conversions that are provably safe (loop indices bounded by a block size that
// was already validated) use direct casts.
package conv
