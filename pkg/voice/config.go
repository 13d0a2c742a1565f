package voice

import (
	"errors"
	"strings"
)

// DefaultStopPhrase ends the conversation when spoken on its own.
const DefaultStopPhrase = "exit"

// Config holds the tunable behaviour of the conversation loop.
type Config struct {
	// StopPhrases end the conversation when a transcript matches one of
	// them, ignoring case, surrounding space and trailing punctuation.
	StopPhrases []string

	// MaxConsecutiveFailures ends Run after this many failed turns in a
	// row. Silence does not count. Zero retries forever.
	MaxConsecutiveFailures int

	// DeleteArtifacts removes ArtifactPaths before each synthesis so that
	// a failed turn can never play the previous turn's audio.
	DeleteArtifacts bool
	ArtifactPaths   []string
}

// DefaultConfig returns a Config that listens forever and stops on "exit".
func DefaultConfig() Config {
	return Config{
		StopPhrases: []string{DefaultStopPhrase},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.MaxConsecutiveFailures < 0 {
		return errors.New("voice: max consecutive failures must not be negative")
	}
	for _, p := range c.StopPhrases {
		if normalizePhrase(p) == "" {
			return errors.New("voice: stop phrase must not be blank")
		}
	}
	return nil
}

// WithStopPhrases returns a copy with the stop phrases set.
func (c Config) WithStopPhrases(phrases ...string) Config {
	c.StopPhrases = phrases
	return c
}

// WithMaxConsecutiveFailures returns a copy with the failure limit set.
func (c Config) WithMaxConsecutiveFailures(n int) Config {
	c.MaxConsecutiveFailures = n
	return c
}

// WithArtifactCleanup returns a copy that deletes paths before each synthesis.
func (c Config) WithArtifactCleanup(paths ...string) Config {
	c.DeleteArtifacts = true
	c.ArtifactPaths = paths
	return c
}

func (c *Config) isStopPhrase(text string) bool {
	text = normalizePhrase(text)
	for _, p := range c.StopPhrases {
		if text == normalizePhrase(p) {
			return true
		}
	}
	return false
}

func normalizePhrase(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.TrimSpace(strings.TrimRight(s, ".!?,;: "))
}
