package version

// Build metadata. Release builds set these with -ldflags "-X ...".
var (
	Version      = "0.1.0"
	Toolname     = "cygfetch-dev"
	Organization = "unknown"
	BuildDate    = "unknown"
	CommitSHA    = "unknown"
)

// UserAgent is sent with every mirror request.
func UserAgent() string {
	return "cygfetch/" + Version
}
