// Package pipeline runs an ordered list of asynchronous steps.
//
// Steps are registered with Use and executed in registration order. Each step
// receives the result log accumulated so far, index 0 being the initial
// input, and a continuation it calls to hand its own result back to the
// engine. The engine records the result, then either dispatches the next
// step, aborts the run on error, or ends it once every step has completed.
//
// All engine work is deferred to a single threaded scheduler, so every step
// boundary is a suspension point: a step that calls its continuation
// synchronously never recurses into the next step, and no two steps ever run
// at the same time.
//
// A run ends exactly once. The end observers receive the error that stopped
// the run (nil on success) together with the result log, whether the run
// completed, a step failed, or the optional watchdog deadline expired first.
// Continuations and timers that outlive their run are ignored, which makes a
// pipeline reusable through Reset.
package pipeline
