// Package common holds process-wide settings shared by the commands and servers.
package common

// Version is overwritten at build time with -ldflags.
var Version = "dev"

// PackageName is used as the metrics namespace.
const PackageName = "travelid"
