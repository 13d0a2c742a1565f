// Package audioio captures microphone audio and plays WAV artifacts.
//
// Devices are driven through command-line audio tools so that no cgo
// binding is needed:
//   - ALSA (Linux) - arecord / aplay
//   - CoreAudio (macOS) - ffmpeg avfoundation / ffplay
//   - FFmpeg (any) - ffmpeg pulse input / ffplay
//   - Mock - tests without hardware
package audioio

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Backend represents the audio backend type.
type Backend string

const (
	// BackendAuto selects the best available backend for the platform.
	BackendAuto Backend = "auto"
	// BackendALSA uses arecord and aplay.
	BackendALSA Backend = "alsa"
	// BackendCoreAudio uses ffmpeg's avfoundation input and ffplay.
	BackendCoreAudio Backend = "coreaudio"
	// BackendFFmpeg uses ffmpeg's pulse input and ffplay.
	BackendFFmpeg Backend = "ffmpeg"
	// BackendMock uses an in-memory implementation.
	BackendMock Backend = "mock"
)

// Sentinel errors.
var (
	// ErrNoAudioDetected means no speech was heard before the listen timeout.
	ErrNoAudioDetected = errors.New("audioio: no audio detected")

	// ErrDeviceUnavailable means the input or output device could not be opened.
	ErrDeviceUnavailable = errors.New("audioio: device unavailable")

	// ErrInvalidAudio means an audio artifact is missing or not a readable PCM WAV.
	ErrInvalidAudio = errors.New("audioio: invalid audio")
)

// Config holds device configuration.
type Config struct {
	// Backend specifies which audio backend to use.
	// Default: "auto"
	Backend Backend `json:"backend"`

	// SampleRate is the audio sample rate in Hz.
	SampleRate int `json:"sample_rate"`

	// Channels is the number of audio channels.
	// Default: 1 (mono)
	Channels int `json:"channels"`

	// BufferDuration is the size of each chunk.
	// Default: 30ms
	BufferDuration time.Duration `json:"buffer_duration"`

	// Device is the platform-specific device identifier.
	// Examples:
	//   - ALSA: "default", "plughw:1,0"
	//   - CoreAudio: ":0" (input), empty for default output
	//   - FFmpeg: "default"
	Device string `json:"device"`
}

// DefaultConfig returns an input configuration suited to speech recognition.
func DefaultConfig() Config {
	return Config{
		Backend:        BackendAuto,
		SampleRate:     16000,
		Channels:       1,
		BufferDuration: 30 * time.Millisecond,
	}
}

// DefaultOutputConfig returns an output configuration at 44.1 kHz.
func DefaultOutputConfig() Config {
	cfg := DefaultConfig()
	cfg.SampleRate = 44100
	return cfg
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 || c.Channels > 2 {
		return fmt.Errorf("channels must be 1 or 2, got %d", c.Channels)
	}
	if c.BufferDuration <= 0 {
		return fmt.Errorf("buffer_duration must be positive, got %v", c.BufferDuration)
	}
	return nil
}

// BufferSize returns the number of frames per buffer.
func (c *Config) BufferSize() int {
	return int(float64(c.SampleRate) * c.BufferDuration.Seconds())
}

// BufferBytes returns the size of a buffer in bytes (int16 samples).
func (c *Config) BufferBytes() int {
	return c.BufferSize() * c.Channels * 2
}

// DeviceFromIndex maps a numeric device index to the backend's device name.
// A negative index selects the system default.
func DeviceFromIndex(backend Backend, index int, input bool) string {
	if index < 0 {
		return ""
	}
	switch resolveBackend(backend) {
	case BackendALSA:
		return fmt.Sprintf("plughw:%d,0", index)
	case BackendCoreAudio:
		if input {
			return ":" + strconv.Itoa(index)
		}
		return strconv.Itoa(index)
	default:
		return strconv.Itoa(index)
	}
}
