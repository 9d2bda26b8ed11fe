package build

// Version is overridden at link time with -ldflags "-X github.com/integrail/gsearch/internal/build.Version=...".
var Version = "dev"
