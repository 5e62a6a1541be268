// Package notify plays the incoming-message cue.
package notify

import (
	"fmt"
	"io"

	"github.com/gen2brain/beeep"
)

// Beeper plays a tone through the system speaker.
type Beeper func(freq float64, duration int) error

// Sound plays a short tone, falling back to the terminal bell when the
// system has no usable speaker.
type Sound struct {
	beep Beeper
	bell io.Writer
}

// New returns a Sound that rings bell when beeping fails. bell may be nil.
func New(bell io.Writer) *Sound {
	return &Sound{beep: beeep.Beep, bell: bell}
}

// NewWithBeeper is New with a replaceable tone player.
func NewWithBeeper(beep Beeper, bell io.Writer) *Sound {
	return &Sound{beep: beep, bell: bell}
}

// Notify plays the cue once.
func (s *Sound) Notify() error {
	err := s.beep(beeep.DefaultFreq, beeep.DefaultDuration)
	if err == nil {
		return nil
	}
	if s.bell == nil {
		return fmt.Errorf("failed to beep: %w", err)
	}
	if _, werr := io.WriteString(s.bell, "\a"); werr != nil {
		return fmt.Errorf("failed to ring bell: %w", werr)
	}
	return nil
}

// Silent is a cue that does nothing.
type Silent struct{}

// Notify does nothing.
func (Silent) Notify() error { return nil }
