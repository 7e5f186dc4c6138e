package version

// Version is the current indexify release.
const Version = "0.3.0"

// BuildVersion returns the version string for display.
func BuildVersion() string {
	return "indexify version " + Version
}
