package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/teslashibe/go-parrot/pkg/app"
)

type envBinding struct {
	name string
	set  func(cfg *app.Config, v string) error
}

func setString(field func(*app.Config) *string) func(*app.Config, string) error {
	return func(cfg *app.Config, v string) error {
		*field(cfg) = v
		return nil
	}
}

func setInt(field func(*app.Config) *int) func(*app.Config, string) error {
	return func(cfg *app.Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(cfg) = n
		return nil
	}
}

func setBool(field func(*app.Config) *bool) func(*app.Config, string) error {
	return func(cfg *app.Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*field(cfg) = b
		return nil
	}
}

var envBindings = []envBinding{
	{"START_PROMPT", setString(func(c *app.Config) *string { return &c.StartPrompt })},
	{"OLLAMA_MODEL", setString(func(c *app.Config) *string { return &c.OllamaModel })},
	{"OLLAMA_URL", setString(func(c *app.Config) *string { return &c.OllamaURL })},
	{"OPENAI_BASE_URL", setString(func(c *app.Config) *string { return &c.OpenAIBaseURL })},
	{"OPENAI_API_KEY", setString(func(c *app.Config) *string { return &c.OpenAIKey })},
	{"APPLIO_URL", setString(func(c *app.Config) *string { return &c.ApplioURL })},
	{"APPLIO_TTS_VOICE", setString(func(c *app.Config) *string { return &c.ApplioTTSVoice })},
	{"APPLIO_PTH_PATH", setString(func(c *app.Config) *string { return &c.ApplioPTHPath })},
	{"APPLIO_INDEX_PATH", setString(func(c *app.Config) *string { return &c.ApplioIndexPath })},
	{"APPLIO_TTS_OUTPUT_PATH", setString(func(c *app.Config) *string { return &c.ApplioTTSOutputPath })},
	{"APPLIO_RVC_OUTPUT_PATH", setString(func(c *app.Config) *string { return &c.ApplioRVCOutputPath })},
	{"FILTERED_CHARS", setString(func(c *app.Config) *string { return &c.FilteredChars })},
	{"STT_LANGUAGE", setString(func(c *app.Config) *string { return &c.STTLanguage })},
	{"GOOGLE_API_KEY", setString(func(c *app.Config) *string { return &c.GoogleAPIKey })},
	{"GOOGLE_APPLICATION_CREDENTIALS", setString(func(c *app.Config) *string { return &c.GoogleCredentialsFile })},
	{"WHISPER_URL", setString(func(c *app.Config) *string { return &c.WhisperURL })},
	{"WHISPER_API_KEY", setString(func(c *app.Config) *string { return &c.WhisperKey })},
	{"REDIS_URL", setString(func(c *app.Config) *string { return &c.RedisURL })},
	{"LOG_LEVEL", setString(func(c *app.Config) *string { return &c.LogLevel })},
	{"VOICECHAT_USER", setString(func(c *app.Config) *string { return &c.User })},
	{"INPUT_DEVICE_INDEX", setInt(func(c *app.Config) *int { return &c.InputDeviceIndex })},
	{"OUTPUT_DEVICE_INDEX", setInt(func(c *app.Config) *int { return &c.OutputDeviceIndex })},
	{"HISTORY_ENABLED", setBool(func(c *app.Config) *bool { return &c.HistoryEnabled })},
	{"DASHBOARD_ENABLED", setBool(func(c *app.Config) *bool { return &c.DashboardEnabled })},
	{"LLM_BACKEND", func(c *app.Config, v string) error {
		c.LLMBackends = splitList(v)
		return nil
	}},
	{"STT_BACKEND", func(c *app.Config, v string) error {
		c.STTBackends = splitList(v)
		return nil
	}},
}

// ApplyEnv overrides cfg with any of the recognised environment variables.
func ApplyEnv(cfg *app.Config) error {
	for _, b := range envBindings {
		v, ok := os.LookupEnv(b.name)
		if !ok || v == "" {
			continue
		}
		if err := b.set(cfg, v); err != nil {
			return &app.ConfigError{Field: b.name, Message: fmt.Sprintf("%s: %v", b.name, err)}
		}
	}
	return nil
}
