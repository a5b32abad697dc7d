package version

// Name is the product name reported by /api/health and the startup log.
const Name = "CraneCRM"

// Overridden at build time:
//
//	go build -ldflags "-X .../internal/version.Version=1.4.1 -X .../internal/version.GitCommit=$(git rev-parse --short HEAD)"
var (
	Version   = "1.4.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Info is the build metadata served by the health endpoint.
type Info struct {
	Service   string `json:"service"`
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time"`
}

func Get() Info {
	return Info{Service: Name, Version: Version, GitCommit: GitCommit, BuildTime: BuildTime}
}

// Full returns the version with commit and build time when both were stamped.
func Full() string {
	if BuildTime == "unknown" || GitCommit == "unknown" {
		return Version
	}
	return Version + " (commit: " + GitCommit + ", built: " + BuildTime + ")"
}
