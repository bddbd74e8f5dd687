package boot

import "torpedo/internal/flags"

// ResetCause is what the platform reports about the most recent reset.
type ResetCause int

const (
	PowerOn ResetCause = iota
	SoftReset
	DeepSleepWake
)

func (c ResetCause) String() string {
	switch c {
	case PowerOn:
		return "power-on"
	case SoftReset:
		return "soft-reset"
	case DeepSleepWake:
		return "deep-sleep-wake"
	default:
		return "unknown"
	}
}

// Mode is the operating mode chosen for one boot.
type Mode int

const (
	ColdStart Mode = iota
	EnterDeepSleepFirstTime
	ContinueDeepSleepCycle
	FtpService
	CalibrationMode
	WorkingMode
)

func (m Mode) String() string {
	switch m {
	case ColdStart:
		return "cold-start"
	case EnterDeepSleepFirstTime:
		return "first-sleep"
	case ContinueDeepSleepCycle:
		return "deep-sleep"
	case FtpService:
		return "ftp"
	case CalibrationMode:
		return "calibration"
	case WorkingMode:
		return "working"
	default:
		return "unknown"
	}
}

// FlagReader is the read side of the flag store.
type FlagReader interface {
	IsSet(f flags.Flag) bool
}

// Classify maps the reset cause and the persisted flags to a mode.
//
// If more than one flag is set (which the state machine never does) the
// first of FirstSleep, DeepSleep, Ftp wins. Unknown causes behave like a
// power-on.
func Classify(cause ResetCause, fr FlagReader) Mode {
	switch cause {
	case DeepSleepWake:
		return WorkingMode
	case SoftReset:
		switch {
		case fr.IsSet(flags.FirstSleep):
			return EnterDeepSleepFirstTime
		case fr.IsSet(flags.DeepSleep):
			return ContinueDeepSleepCycle
		case fr.IsSet(flags.Ftp):
			return FtpService
		default:
			return CalibrationMode
		}
	default:
		return ColdStart
	}
}
