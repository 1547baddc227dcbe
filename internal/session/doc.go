// Package session runs one plate-scanning session: it wires the frame
// sampler, text extractor, candidate scorer, stabilizer and submission gate
// together and owns every piece of state they share.
//
// # Pipeline
//
// Frames arrive on a channel. The sampler admits at most one frame at a time,
// spaced by the recognition interval. The admitted frame's plate region is
// read by the extractor; non-empty text is forwarded at most once per forward
// interval to the scorer, whose best candidate is added to the stabilizer.
// The stabilized winner is offered to the gate, which decides whether to
// submit it automatically.
//
// # States
//
//	Idle -> HasCandidate -> Stable -> Submitting -> AwaitingConfirmation -> Idle
//
// A frame with no plate-like token returns the session to Idle without
// clearing the recency buffer. After a submission finishes the session stays
// in AwaitingConfirmation for the cool-down period, ignoring frames. The first
// frame after the cool-down moves it back to Idle with an empty buffer.
//
// # Teardown
//
// Close discards all session state and bumps a generation counter.
// Extractions and submissions that complete afterwards see a stale
// generation and change nothing. Reset does the same without closing, so the
// session starts over clean.
//
// # Events
//
// Every observable change is published on the Events channel. The channel is
// buffered; when the consumer falls behind, events are dropped and counted
// rather than stalling the pipeline.
package session
