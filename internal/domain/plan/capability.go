package plan

// Capabilities is the explicit capability set resolved once per request from
// the caller's role. Engines never read role or permission flags ambiently;
// every call receives one of these.
type Capabilities struct {
	CanEditFull     bool
	CanUpdateStatus bool
	CanOverrideLock bool
	CanApproveDrop  bool
	CanGrade        bool

	// ReadOnly marks executive viewers: full visibility, no mutations,
	// and never any lock bypass.
	ReadOnly bool
	// SubmissionMode restricts the caller to execution-only fields
	// (evidence, remarks, progress) regardless of planning locks.
	SubmissionMode bool
}

// CapabilitiesForRole maps a stored role to its capability set. This is the
// single place roles are interpreted.
func CapabilitiesForRole(role string) Capabilities {
	switch role {
	case "admin":
		return Capabilities{
			CanEditFull:     true,
			CanUpdateStatus: true,
			CanOverrideLock: true,
			CanApproveDrop:  true,
		}
	case "leader":
		return Capabilities{
			CanEditFull:     true,
			CanUpdateStatus: true,
		}
	case "pic":
		return Capabilities{
			CanUpdateStatus: true,
			SubmissionMode:  true,
		}
	case "grader":
		return Capabilities{
			CanGrade: true,
		}
	case "executive":
		return Capabilities{
			ReadOnly: true,
		}
	default:
		return Capabilities{ReadOnly: true}
	}
}

// EditMode is the derived editing surface for one caller against one plan.
// It is a pure function of capabilities and lock state, never stored.
type EditMode int

const (
	EditModeReadOnly EditMode = iota
	EditModeSubmissionOnly
	EditModeFull
)

func (m EditMode) String() string {
	switch m {
	case EditModeFull:
		return "full"
	case EditModeSubmissionOnly:
		return "submission_only"
	default:
		return "read_only"
	}
}

// LockState is the minimal lock verdict the state machine needs; the lock
// engine's richer result is projected into this before a transition runs.
type LockState struct {
	Locked   bool
	Bypassed bool
}

// EditModeFor projects capabilities plus the combined lock verdict into one
// tagged mode.
func EditModeFor(caps Capabilities, locked bool) EditMode {
	switch {
	case caps.ReadOnly:
		return EditModeReadOnly
	case locked && !caps.CanOverrideLock:
		return EditModeReadOnly
	case caps.SubmissionMode:
		return EditModeSubmissionOnly
	case caps.CanEditFull:
		return EditModeFull
	case caps.CanUpdateStatus:
		return EditModeSubmissionOnly
	default:
		return EditModeReadOnly
	}
}
