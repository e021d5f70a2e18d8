package transfer

// State classifies a translation_status answer into the three outcomes
// the monitoring loop acts on.
type State int

const (
	// Pending — the translation is not finished yet; poll again later.
	Pending State = iota
	// Ready — the translation is completed and downloadable.
	Ready
	// NotFound — the server does not know the file/tag pair; terminal.
	NotFound
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Ready:
		return "ready"
	case NotFound:
		return "not_found"
	default:
		return "invalid"
	}
}

// RawUnknown is the Raw value used when the server's answer carried no
// usable status field (absent, null or empty).
const RawUnknown = "status_unknown"

// Status is the decoded translation_status answer.
type Status struct {
	// State is the classified outcome.
	State State
	// Raw is the server's verbatim status string ("completed",
	// "in_progress", …), or RawUnknown when it sent none. Kept for
	// display alongside the classification.
	Raw string
	// Completeness is the server-reported completion fraction when
	// present, 0 otherwise.
	Completeness float64
}
