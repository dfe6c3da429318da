package domain

// Intent is a navigation command extracted from a final transcript.
type Intent int

const (
	IntentNone Intent = iota
	IntentNext
	IntentPrevious
	IntentRepeat
)

// String returns a human-readable intent name.
func (i Intent) String() string {
	switch i {
	case IntentNext:
		return "next"
	case IntentPrevious:
		return "previous"
	case IntentRepeat:
		return "repeat"
	default:
		return "none"
	}
}
