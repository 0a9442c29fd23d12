package matchserver

// ExitCode is the process exit code the orchestrator reads to learn how the
// match ended.
type ExitCode int

const (
	// ExitMatchEnded means the match ran to its natural conclusion.
	ExitMatchEnded ExitCode = 0
	// ExitCardRequestFailed means the card catalog failed mid-match and the
	// server could not continue.
	ExitCardRequestFailed ExitCode = 10
)

// ExitStatus records why the server stopped.
type ExitStatus struct {
	Code   ExitCode
	Reason string
}
