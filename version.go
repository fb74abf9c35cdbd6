package sluice

// Version is the release of the engine. Release builds override it with
// -ldflags "-X github.com/aretw0/sluice.Version=...".
var Version = "0.4.0-dev"
