// Package session holds the mutable state that outlives a single command
// invocation: the last-known-good ambient defaults plus the cached response
// of the most recent successful call. Execution is single-threaded, so no
// locking discipline applies.
package session

import (
	"encoding/json"

	"github.com/cita-toolkit/citactl/internal/parse"
)

type Config struct {
	url          string
	debug        bool
	color        bool
	scheme       parse.Scheme
	lastResponse json.RawMessage
}

func New(url string, debug, color bool, scheme parse.Scheme) *Config {
	return &Config{url: url, debug: debug, color: color, scheme: scheme}
}

func (c *Config) URL() string         { return c.url }
func (c *Config) Debug() bool         { return c.debug }
func (c *Config) Color() bool         { return c.color }
func (c *Config) Scheme() parse.Scheme { return c.scheme }

// LastResponse returns the response cached by the most recent successful
// command, or nil.
func (c *Config) LastResponse() json.RawMessage { return c.lastResponse }

// SetLastResponse records a confirmed-success response. Callers must not
// invoke this on failure paths.
func (c *Config) SetLastResponse(raw json.RawMessage) {
	c.lastResponse = append(json.RawMessage(nil), raw...)
}
