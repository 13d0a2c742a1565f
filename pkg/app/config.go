package app

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/teslashibe/go-parrot/pkg/gradio"
)

// Default configuration values.
const (
	DefaultUser          = "user"
	DefaultOllamaURL     = "http://127.0.0.1:11434"
	DefaultOllamaModel   = "llama3"
	DefaultApplioURL     = "http://127.0.0.1:6969/"
	DefaultTTSOutputPath = "tts_output.wav"
	DefaultRVCOutputPath = "rvc_output.wav"
	DefaultStopPhrase    = "exit"
	DefaultDashboardAddr = "127.0.0.1:8181"
	DefaultFilteredChars = " .,!?'-"
)

// Config holds all configuration for the voice chat application.
// Loading is done by internal/config and cmd/voicechat; this struct is data only.
type Config struct {
	// Logging.
	Debug     bool
	LogLevel  string
	LogFormat string

	// Conversation.
	User                   string
	StartPrompt            string
	PromptMode             string // "system" or "prefix"
	StopPhrase             string
	MaxConsecutiveFailures int
	DeleteArtifacts        bool

	// Response generation. LLMBackends is tried in order.
	LLMBackends   []string // "ollama", "openai"
	OllamaURL     string
	OllamaModel   string
	OpenAIBaseURL string
	OpenAIKey     string
	Temperature   float64
	LLMTimeout    time.Duration

	// Speech recognition. STTBackends is tried in order.
	STTBackends           []string // "google", "whisper"
	STTLanguage           string
	STTTimeout            time.Duration
	GoogleAPIKey          string
	GoogleCredentialsFile string
	GoogleSTTEndpoint     string
	WhisperURL            string
	WhisperModel          string
	WhisperKey            string

	// Applio.
	ApplioURL           string
	ApplioProtocol      string // "auto", "sse" (Gradio 4+) or "ws" (Gradio 3)
	ApplioTTSVoice      string
	ApplioPTHPath       string
	ApplioIndexPath     string
	ApplioTTSOutputPath string
	ApplioRVCOutputPath string
	ApplioPitch         int
	ApplioF0Method      string
	TTSTimeout          time.Duration
	RVCTimeout          time.Duration
	FilteredChars       string

	// Audio devices. A negative index selects the system default.
	AudioBackend      string
	InputDeviceIndex  int
	OutputDeviceIndex int
	InputDevice       string
	OutputDevice      string
	InputSampleRate   int
	OutputSampleRate  int
	Normalize         bool

	// Utterance endpointing.
	CaptureMode     string
	VADThreshold    float64
	PrefixPadding   time.Duration
	SilenceDuration time.Duration
	MaxUtterance    time.Duration
	ListenTimeout   time.Duration

	// History persistence.
	HistoryEnabled  bool
	HistoryBackend  string // "json" or "redis"
	HistoryDir      string
	RedisURL        string
	HistoryMaxTurns int

	// Dashboard.
	DashboardEnabled bool
	DashboardAddr    string
}

// DefaultConfig returns sensible defaults matching a local Ollama and Applio install.
func DefaultConfig() Config {
	return Config{
		LogLevel:   "info",
		User:       DefaultUser,
		PromptMode: "system",
		StopPhrase: DefaultStopPhrase,

		LLMBackends: []string{"ollama"},
		OllamaURL:   DefaultOllamaURL,
		OllamaModel: DefaultOllamaModel,
		Temperature: 0.7,
		LLMTimeout:  120 * time.Second,

		STTBackends:  []string{"google"},
		STTLanguage:  "en-US",
		STTTimeout:   15 * time.Second,
		WhisperModel: "whisper-1",

		ApplioURL:           DefaultApplioURL,
		ApplioProtocol:      "auto",
		ApplioTTSVoice:      "en-US-AndrewNeural",
		ApplioTTSOutputPath: DefaultTTSOutputPath,
		ApplioRVCOutputPath: DefaultRVCOutputPath,
		ApplioF0Method:      "rmvpe",
		TTSTimeout:          60 * time.Second,
		RVCTimeout:          120 * time.Second,
		FilteredChars:       DefaultFilteredChars,

		AudioBackend:      "auto",
		InputDeviceIndex:  -1,
		OutputDeviceIndex: -1,
		InputSampleRate:   16000,
		OutputSampleRate:  44100,

		CaptureMode:     "threshold",
		VADThreshold:    0.02,
		PrefixPadding:   300 * time.Millisecond,
		SilenceDuration: 800 * time.Millisecond,
		MaxUtterance:    30 * time.Second,
		ListenTimeout:   10 * time.Second,

		HistoryBackend: "json",
		HistoryDir:     ".",

		DashboardAddr: DefaultDashboardAddr,
	}
}

// Validate checks that required configuration is present and consistent.
func (c *Config) Validate() error {
	if len(c.LLMBackends) == 0 {
		return &ConfigError{Field: "LLMBackends", Message: "at least one llm backend is required"}
	}
	if strings.TrimSpace(c.OllamaModel) == "" {
		return &ConfigError{Field: "OllamaModel", Message: "ollama_model is required"}
	}
	for _, b := range c.LLMBackends {
		switch b {
		case "ollama":
			if err := validURL("OllamaURL", c.OllamaURL); err != nil {
				return err
			}
		case "openai":
			if err := validURL("OpenAIBaseURL", c.OpenAIBaseURL); err != nil {
				return err
			}
		default:
			return &ConfigError{Field: "LLMBackends", Message: fmt.Sprintf("unknown llm backend %q (want ollama or openai)", b)}
		}
	}

	if err := validURL("ApplioURL", c.ApplioURL); err != nil {
		return err
	}
	if _, err := gradio.ParseProtocol(c.ApplioProtocol); err != nil {
		return &ConfigError{Field: "ApplioProtocol", Message: fmt.Sprintf("applio protocol must be auto, sse or ws, got %q", c.ApplioProtocol)}
	}
	if c.ApplioPTHPath == "" {
		return &ConfigError{Field: "ApplioPTHPath", Message: "applio_pth_path is required for voice conversion"}
	}
	if c.ApplioTTSOutputPath == "" || c.ApplioRVCOutputPath == "" {
		return &ConfigError{Field: "ApplioOutputPath", Message: "applio_tts_output_path and applio_rvc_output_path are required"}
	}
	if c.ApplioTTSOutputPath == c.ApplioRVCOutputPath {
		return &ConfigError{Field: "ApplioOutputPath", Message: "tts and rvc output paths must differ"}
	}

	if len(c.STTBackends) == 0 {
		return &ConfigError{Field: "STTBackends", Message: "at least one stt backend is required"}
	}
	for _, b := range c.STTBackends {
		switch b {
		case "google":
		case "whisper":
			if err := validURL("WhisperURL", c.WhisperURL); err != nil {
				return err
			}
		default:
			return &ConfigError{Field: "STTBackends", Message: fmt.Sprintf("unknown stt backend %q (want google or whisper)", b)}
		}
	}

	if c.PromptMode != "system" && c.PromptMode != "prefix" {
		return &ConfigError{Field: "PromptMode", Message: fmt.Sprintf("prompt_mode must be system or prefix, got %q", c.PromptMode)}
	}
	if c.MaxConsecutiveFailures < 0 {
		return &ConfigError{Field: "MaxConsecutiveFailures", Message: "max_consecutive_failures must not be negative"}
	}

	if c.HistoryEnabled {
		switch c.HistoryBackend {
		case "json":
		case "redis":
			if c.RedisURL == "" {
				return &ConfigError{Field: "RedisURL", Message: "redis_url is required for the redis history backend"}
			}
		default:
			return &ConfigError{Field: "HistoryBackend", Message: fmt.Sprintf("history backend must be json or redis, got %q", c.HistoryBackend)}
		}
	}
	return nil
}

func validURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &ConfigError{Field: field, Message: fmt.Sprintf("%s must be an absolute URL, got %q", field, raw)}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}
