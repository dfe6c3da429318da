// Package domain defines the core types and interfaces for the step navigator.
// All other packages depend on domain; domain depends on nothing.
package domain

// Recipe is a named, ordered list of narratable steps as supplied by a
// recipe source.
type Recipe struct {
	ID          string
	Name        string
	Description string
	Tags        []string
	Steps       []Step
}

// RecipeSummary is a lightweight view of a recipe for listing.
type RecipeSummary struct {
	ID          string
	Name        string
	Description string
	Tags        []string
	StepCount   int
}

// Step is a single narratable instruction.
type Step struct {
	ID                string
	Title             string
	NarrationText     string
	NarrationAudioRef string // optional pre-recorded narration (WAV path)
}

// Narration returns the audio reference used to play this step's narration.
// The reference identity is the step ID, so re-requesting the same step is
// recognised by the playback channel as the same audio.
func (s Step) Narration() AudioRef {
	return AudioRef{
		ID:   "step:" + s.ID,
		Path: s.NarrationAudioRef,
		Text: s.NarrationText,
	}
}

// StepSequence is an ordered, immutable list of steps. The zero value is an
// empty sequence.
type StepSequence struct {
	steps []Step
}

// NewStepSequence copies steps into a new sequence.
func NewStepSequence(steps []Step) StepSequence {
	cp := make([]Step, len(steps))
	copy(cp, steps)
	return StepSequence{steps: cp}
}

// Sequence returns the recipe's steps as a StepSequence.
func (r *Recipe) Sequence() StepSequence {
	return NewStepSequence(r.Steps)
}

// Len returns the number of steps.
func (s StepSequence) Len() int { return len(s.steps) }

// At returns the step at index i.
func (s StepSequence) At(i int) (Step, bool) {
	if i < 0 || i >= len(s.steps) {
		return Step{}, false
	}
	return s.steps[i], true
}

// Steps returns a copy of the steps.
func (s StepSequence) Steps() []Step {
	cp := make([]Step, len(s.steps))
	copy(cp, s.steps)
	return cp
}
