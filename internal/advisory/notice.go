package advisory

// Level grades how much operator attention a notice deserves.
type Level int

const (
	// Clean indicates no notices were raised.
	Clean Level = iota
	// Info flags operations worth coordinating with a rollout.
	Info
	// Warning flags operations that hold heavy locks or rewrite tables.
	Warning
	// Danger flags operations that discard data.
	Danger
)

// String returns the uppercase label for the level.
func (l Level) String() string {
	switch l {
	case Clean:
		return "CLEAN"
	case Info:
		return "INFO"
	case Warning:
		return "WARNING"
	case Danger:
		return "DANGER"
	default:
		return "UNKNOWN"
	}
}

// Notice is one operational observation about a statement.
type Notice struct {
	Check     string // identifier of the check that raised it
	Level     Level  // attention grade
	Table     string // affected relation(s), when one can be named
	Statement int    // 1-based position within the script
	Summary   string // what the statement does to the database
	Hint      string // how to soften or stage the operation
	Lock      string // lock level held (e.g. "ACCESS EXCLUSIVE")
}

// Report collects the notices for one script.
type Report struct {
	Script  string
	Notices []Notice
	Max     Level
}

// Dangerous reports whether any notice reached Danger level.
func (r Report) Dangerous() bool {
	return r.Max >= Danger
}
