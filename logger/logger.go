// Package logger defines the logging seam used throughout the saml core.
//
// The core never writes to stderr or panics on conditions that are not
// themselves returned as errors; it logs through an injected Interface
// instead, so a caller embedding the core in a larger service can route
// diagnostics through its own structured logger.
package logger

import (
	"log"
	"os"
)

// Interface is the minimal logging contract the saml package depends on.
type Interface interface {
	Printf(format string, v ...interface{})
	Println(v ...interface{})
}

// DefaultLogger writes to os.Stderr via the standard library logger.
var DefaultLogger Interface = log.New(os.Stderr, "saml: ", log.LstdFlags)
