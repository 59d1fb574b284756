package viterbi

import "errors"

// ErrReplayMismatch is returned by VerifyReplay when a freshly computed
// message diverges from a previously recorded one for what should be an
// identical step, indicating a caller's candidate or probability generator
// is not actually deterministic (e.g. secretly depends on map iteration
// order).
var ErrReplayMismatch = errors.New("viterbi: replay hash mismatch")
