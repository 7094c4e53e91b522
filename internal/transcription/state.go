package transcription

// State is a step of the per-message media pipeline, logged under the
// "state" key as a message moves through archival and transcription.
type State string

const (
	StateClassified    State = "classified"
	StateMediaEligible State = "media_eligible"
	StateDownloading   State = "downloading"
	StateDownloaded    State = "downloaded"
	StateTranscribing  State = "transcribing"
	StateDone          State = "done"
	StateFailed        State = "failed"
)

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}
