// Package version reports the build identity of the binaries, set at link
// time with -ldflags "-X".
package version

var (
	// Version is the release version of the tracker.
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// Info is the build identity recorded alongside replay results, so output
// can be traced to the tracker build that produced it.
type Info struct {
	Version   string `json:"version"`
	GitSHA    string `json:"git_sha"`
	BuildTime string `json:"build_time"`
}

// Get returns the current build identity.
func Get() Info {
	return Info{Version: Version, GitSHA: GitSHA, BuildTime: BuildTime}
}

// String formats the identity for -version output.
func (i Info) String() string {
	return i.Version + " (" + i.GitSHA + ", built " + i.BuildTime + ")"
}
