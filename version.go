// Package triagent carries module-wide build metadata.
package triagent

// Version is the service version, overridable at build time with
// -ldflags "-X github.com/outshift/triagent.Version=...".
var Version = "1.0.0"
