package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	APIAddr         string
	StaticDir       string
	UploadDir       string
	MaxUploadBytes  int64
	KnowledgePath   string
	KnowledgeWatch  bool
	LLMProviders    string
	MediaProvider   string
	ChatModel       string
	SpeechModel     string
	SpeechVoice     string
	ImageModel      string
	ImageSize       string
	ProviderTimeout int
	MediaStore      string
	MediaPublicBase string
	R2AccountID     string
	R2Bucket        string
	R2AccessKey     string
	R2SecretKey     string
	PostgresURL     string
	CORSOrigins     []string
	CORSMethods     []string
	CORSHeaders     []string
	LogLevel        string
	LogFormat       string
}

// fileOverlay is the optional YAML file named by CONFIG_FILE. Env vars win over it.
type fileOverlay struct {
	ChatModel   string `yaml:"chat_model"`
	SpeechModel string `yaml:"speech_model"`
	SpeechVoice string `yaml:"speech_voice"`
	ImageModel  string `yaml:"image_model"`
	ImageSize   string `yaml:"image_size"`
	CORS        struct {
		Origins []string `yaml:"origins"`
		Methods []string `yaml:"methods"`
		Headers []string `yaml:"headers"`
	} `yaml:"cors"`
}

func Load() (Config, error) {
	var ov fileOverlay
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(b, &ov); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	return Config{
		APIAddr:         ":" + getenv("PORT", "3000"),
		StaticDir:       getenv("STATIC_DIR", "./public"),
		UploadDir:       getenv("UPLOAD_DIR", "./uploads"),
		MaxUploadBytes:  int64(getenvPositiveInt("MAX_UPLOAD_MB", 20)) << 20,
		KnowledgePath:   getenv("KNOWLEDGE_PATH", "./legalDb.txt"),
		KnowledgeWatch:  getenvBool("KNOWLEDGE_WATCH", false),
		LLMProviders:    getenv("LLM_PROVIDERS", "openai"),
		MediaProvider:   getenv("MEDIA_PROVIDER", "openai"),
		ChatModel:       getenv("CHAT_MODEL", orDefault(ov.ChatModel, "gpt-3.5-turbo")),
		SpeechModel:     getenv("SPEECH_MODEL", orDefault(ov.SpeechModel, "tts-1")),
		SpeechVoice:     getenv("SPEECH_VOICE", orDefault(ov.SpeechVoice, "alloy")),
		ImageModel:      getenv("IMAGE_MODEL", orDefault(ov.ImageModel, "dall-e-3")),
		ImageSize:       getenv("IMAGE_SIZE", orDefault(ov.ImageSize, "1024x1024")),
		ProviderTimeout: getenvPositiveInt("PROVIDER_TIMEOUT_SECONDS", 60),
		MediaStore:      getenv("MEDIA_STORE", "local"),
		MediaPublicBase: getenv("MEDIA_PUBLIC_BASE", ""),
		R2AccountID:     getenv("R2_ACCOUNT_ID", ""),
		R2Bucket:        getenv("R2_BUCKET", ""),
		R2AccessKey:     getenv("R2_ACCESS_KEY", ""),
		R2SecretKey:     getenv("R2_SECRET_KEY", ""),
		PostgresURL:     getenv("POSTGRES_URL", ""),
		CORSOrigins:     getenvList("CORS_ALLOWED_ORIGINS", orDefaultList(ov.CORS.Origins, []string{"https://quentinrls.github.io"})),
		CORSMethods:     getenvList("CORS_ALLOWED_METHODS", orDefaultList(ov.CORS.Methods, []string{"GET", "POST", "OPTIONS"})),
		CORSHeaders:     getenvList("CORS_ALLOWED_HEADERS", orDefaultList(ov.CORS.Headers, []string{"Content-Type"})),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		LogFormat:       getenv("LOG_FORMAT", "json"),
	}, nil
}

func getenv(k, fallback string) string {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	return v
}

func getenvInt(k string, fallback int) int {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// getenvPositiveInt treats zero and negative values as unset.
func getenvPositiveInt(k string, fallback int) int {
	if n := getenvInt(k, fallback); n > 0 {
		return n
	}
	return fallback
}

func getenvBool(k string, fallback bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getenvList(k string, fallback []string) []string {
	v := os.Getenv(k)
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	out := make([]string, 0)
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func orDefaultList(v, fallback []string) []string {
	if len(v) == 0 {
		return fallback
	}
	return v
}
