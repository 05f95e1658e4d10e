package version

// Version is overridden at build time via -ldflags "-X labmatch/internal/version.Version=...".
var Version = "0.1.0-dev"

func String() string { return "labmatch " + Version }
