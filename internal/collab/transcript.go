package collab

import "time"

// Turn is one message in the conversation.
type Turn struct {
	Round   int       `json:"round"`
	Speaker string    `json:"speaker"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Transcript is an append-only conversation log. Append never modifies the receiver, so a
// transcript value captured at any turn stays valid for replay.
type Transcript struct {
	turns []Turn
}

// Append returns a new transcript with t added.
func (tr Transcript) Append(t Turn) Transcript {
	turns := make([]Turn, len(tr.turns), len(tr.turns)+1)
	copy(turns, tr.turns)
	return Transcript{turns: append(turns, t)}
}

// Len returns the number of turns.
func (tr Transcript) Len() int { return len(tr.turns) }

// Turns returns a copy of the turns in order.
func (tr Transcript) Turns() []Turn {
	return append([]Turn(nil), tr.turns...)
}

// Replies returns how many turns were spoken by someone other than the driver.
func (tr Transcript) Replies() int {
	n := 0
	for _, t := range tr.turns {
		if t.Speaker != RoleCoordinator {
			n++
		}
	}
	return n
}

// Last returns the most recent n turns.
func (tr Transcript) Last(n int) []Turn {
	if n >= len(tr.turns) {
		return tr.Turns()
	}
	return append([]Turn(nil), tr.turns[len(tr.turns)-n:]...)
}

// NextSpeaker picks the participant who speaks next: round-robin over participants by the
// number of replies so far. It depends only on its arguments.
func NextSpeaker(participants []string, tr Transcript) string {
	if len(participants) == 0 {
		return ""
	}
	return participants[tr.Replies()%len(participants)]
}
