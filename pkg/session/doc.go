/*
Package session implements the USSD session controller: the Idle/Active state
machine that owns the single session slot of an engine.

A session starts with Dial, which reserves the slot, arms the timeout and invokes
the host dialer. Every snapshot delivered while the session is Active is
flattened, logged, classified and acted on. The session resolves exactly once:
on a terminal screen, on timeout, on a dial failure, on a panic inside a pass,
or when the controller is closed. Later snapshots and timer ticks are ignored.

Snapshots are processed one at a time. The timeout runs independently and races
the snapshot path; the first resolution wins.
*/
package session
