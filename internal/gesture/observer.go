package gesture

// ResetCause explains why the candidate sequence was cleared.
type ResetCause int

const (
	// ResetTimeout: the inactivity window elapsed between taps.
	ResetTimeout ResetCause = iota
	// ResetMismatch: the last tap made the candidate a dead end for every
	// target.
	ResetMismatch
	// ResetCompleted: a target sequence matched exactly.
	ResetCompleted
	// ResetNonCornerTap: a tap resolved outside every corner zone.
	ResetNonCornerTap
)

// String returns the metric label for the cause.
func (c ResetCause) String() string {
	switch c {
	case ResetTimeout:
		return "timeout"
	case ResetMismatch:
		return "mismatch"
	case ResetCompleted:
		return "completed"
	case ResetNonCornerTap:
		return "non_corner_tap"
	default:
		return "unknown"
	}
}

// Observer receives recognition lifecycle callbacks. Implementations must be
// fast and must not call back into the Recognizer; callbacks run under the
// recognizer lock.
type Observer interface {
	// CornerTapped fires for every resolved tap inside a corner zone.
	CornerTapped(c Corner)
	// CandidateReset fires whenever a non-empty candidate is cleared.
	CandidateReset(cause ResetCause)
	// SequenceMatched fires when a target sequence completes.
	SequenceMatched(sequence string)
}

type nopObserver struct{}

func (nopObserver) CornerTapped(Corner)       {}
func (nopObserver) CandidateReset(ResetCause) {}
func (nopObserver) SequenceMatched(string)    {}
