package m3d

// State is a step of the connection handshake
type State int

const (
	StateResolving State = iota
	StateOpening
	StateProbing
	StateSwitching
	StateReopeningFinal
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateResolving:
		return "resolving"
	case StateOpening:
		return "opening"
	case StateProbing:
		return "probing"
	case StateSwitching:
		return "switching"
	case StateReopeningFinal:
		return "reopening"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Mode is what the printer answered to the probe
type Mode int

const (
	ModeUnknown Mode = iota
	ModeBootloader
	ModeFirmware
)

const (
	bootloaderMarker = 'B'
	firmwareMarker   = 'e'
)

func modeFromByte(b byte) Mode {
	switch b {
	case bootloaderMarker:
		return ModeBootloader
	case firmwareMarker:
		return ModeFirmware
	default:
		return ModeUnknown
	}
}

func (m Mode) String() string {
	switch m {
	case ModeBootloader:
		return "bootloader"
	case ModeFirmware:
		return "firmware"
	default:
		return "unknown"
	}
}

// Reporter receives handshake progress on behalf of the host session.
// SetupFailed is called at most once per Open, with the error Open returns.
type Reporter interface {
	StateChanged(State)
	SetupFailed(error)
}

// NopReporter ignores everything
type NopReporter struct{}

func (NopReporter) StateChanged(State) {}
func (NopReporter) SetupFailed(error)  {}

// ReporterFuncs adapts plain functions to Reporter. Nil fields are skipped.
type ReporterFuncs struct {
	OnStateChanged func(State)
	OnSetupFailed  func(error)
}

func (r ReporterFuncs) StateChanged(s State) {
	if r.OnStateChanged != nil {
		r.OnStateChanged(s)
	}
}

func (r ReporterFuncs) SetupFailed(err error) {
	if r.OnSetupFailed != nil {
		r.OnSetupFailed(err)
	}
}
