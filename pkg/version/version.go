package version

// Build holds the build identifier, injected via -ldflags "-X peerlab-bird/pkg/version.Build=...". Default "dev".
var Build = "dev"

// UserAgent is sent to the upstream APIs.
func UserAgent() string {
	return "peerlab-bird/" + Build
}
