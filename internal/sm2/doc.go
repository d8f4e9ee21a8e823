// Package sm2 implements the SM-2 spaced-repetition update for a single card.
//
// Update is a pure function of the previous card, the quality score and the
// review time. It never fails: out-of-range quality is rounded and clamped
// rather than rejected. Persisting the returned card, and serializing
// concurrent reviews of the same card, is the caller's job.
package sm2
