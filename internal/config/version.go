package config

// Version is the automd binary version.
// Set at build time via: -ldflags "-X github.com/sysprohq/automation/internal/config.Version=<tag>"
// Defaults to "dev" when built without ldflags.
var Version = "dev"
