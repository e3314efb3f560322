package navigation

import (
	"fmt"
	"sync"
	"time"
)

// Instruction is a sentence for the client to speak aloud.
type Instruction struct {
	Text   string `json:"text"`
	Urgent bool   `json:"urgent"`
}

// BuildInstruction converts a reading into a spoken instruction.
// Readings inside the obstacle threshold demand a turn; everything else
// reports a clear path.
func BuildInstruction(r Reading, thresholdCM float64) Instruction {
	if r.DistanceCM < thresholdCM {
		dir := r.Direction
		if dir == DirectionStraight || !dir.Valid() {
			// An obstacle dead ahead with no side hint still needs an
			// actionable sentence.
			return Instruction{Text: "Obstacle ahead, stop", Urgent: true}
		}
		return Instruction{
			Text:   fmt.Sprintf("Turn %s now", dir),
			Urgent: true,
		}
	}
	return Instruction{Text: "Path is clear"}
}

// Announcer rate-limits instructions so clients do not re-speak the same
// sentence every update. Urgent instructions always pass through when the
// text changes; identical text repeats only after the cooldown.
type Announcer struct {
	mu       sync.Mutex
	cooldown time.Duration
	lastText string
	lastAt   time.Time
}

// NewAnnouncer creates an announcer with the given repeat cooldown.
func NewAnnouncer(cooldown time.Duration) *Announcer {
	return &Announcer{cooldown: cooldown}
}

// Announce reports whether the instruction should be spoken now.
func (a *Announcer) Announce(ins Instruction, now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if ins.Text != a.lastText || now.Sub(a.lastAt) >= a.cooldown {
		a.lastText = ins.Text
		a.lastAt = now
		return true
	}
	return false
}

// Reset clears the repeat-suppression state, e.g. when navigation restarts.
func (a *Announcer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastText = ""
	a.lastAt = time.Time{}
}
