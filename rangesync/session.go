package rangesync

import (
	"context"
	"fmt"
)

// SessionStats summarizes a completed RunSession call.
type SessionStats struct {
	// Rounds is the number of messages handed to ProcessMessage before the
	// session ended, counting the last one, whose reply was empty. A
	// session whose InitialMessage is answered by a fingerprint match
	// takes one round.
	Rounds int
}

// RunSession drives initiator and responder to convergence in-process,
// alternating ProcessMessage calls until neither side has anything left
// to send, or maxRounds is exceeded. It is a small, exported generalization
// of the bounded-round driver the Rust reference implementation's test
// suite used internally (sync_exchange_messages), promoted here because
// tests and demos alike need a round cap against a protocol bug turning
// into an infinite loop.
func RunSession(ctx context.Context, initiator, responder *Peer, validate ValidateFunc, maxRounds int) (SessionStats, error) {
	msg, err := initiator.InitialMessage()
	if err != nil {
		return SessionStats{}, fmt.Errorf("initial message: %w", err)
	}

	fromInitiator := true
	for round := 0; ; round++ {
		if msg.IsEmpty() {
			return SessionStats{Rounds: round}, nil
		}
		if round >= maxRounds {
			return SessionStats{Rounds: round}, fmt.Errorf("rangesync: session did not converge within %d rounds", maxRounds)
		}

		var recipient *Peer
		if fromInitiator {
			recipient = responder
		} else {
			recipient = initiator
		}
		msg, err = recipient.ProcessMessage(ctx, msg, validate)
		if err != nil {
			return SessionStats{Rounds: round}, fmt.Errorf("round %d: %w", round, err)
		}
		fromInitiator = !fromInitiator
	}
}
