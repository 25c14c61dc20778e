// Package events defines the typed session event contract.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - session.*
//   - transcript.*
//   - connection.*
//   - recovery.*
//   - coaching.*
//
// Semantics used across the package:
//
//   - Updated: mutable point-in-time snapshot that can change over time.
//   - Finalized: terminal immutable text/state for the current utterance.
//   - Changed: lifecycle boundary between two discrete states.
//
// session events
//
//   - SessionStateChanged (session.state_changed): the manager moved between
//     lifecycle states; carries both sides of the transition and the reason.
//   - SessionErrorOccurred (session.error): a steady-state failure was
//     classified and routed; carries recoverability and a user-facing
//     suggestion.
//   - SessionDegraded (session.degraded): the session entered a
//     reduced-functionality mode.
//
// transcript events
//
//   - TranscriptPartialUpdated (transcript.partial_updated): mutable
//     in-progress utterance snapshot.
//   - TranscriptSegmentFinalized (transcript.segment_finalized): an utterance
//     was finalized and stored.
//
// connection events
//
//   - ConnectionQualityChanged (connection.quality_changed): the monitor's
//     derived quality tier moved.
//
// recovery events
//
//   - RecoveryAttempted (recovery.attempted): a recovery action is about to
//     run; carries the attempt ordinal and backoff delay.
//
// coaching events
//
//   - CoachingFunctionCall (coaching.function_call): the realtime service
//     invoked one of the interviewer coaching tools.
package events
