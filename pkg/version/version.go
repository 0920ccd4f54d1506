package version

// Version is overwritten at build time via -ldflags.
var Version = "v0.3.0"
