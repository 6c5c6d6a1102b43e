package race

// Phase only moves forward: Lobby -> Started -> Finished.
type Phase int

const (
	PhaseLobby Phase = iota
	PhaseStarted
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseLobby:
		return "lobby"
	case PhaseStarted:
		return "started"
	case PhaseFinished:
		return "finished"
	default:
		return "unknown"
	}
}
