package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config drives the generation pipeline.
type Config struct {
	OpenRouterURL string
	SiteURL       string
	SiteName      string
	HTTPTimeout   time.Duration

	TextModel   string
	PromptModel string
	ImageModel  string
	VisionModel string

	OutputDir         string
	FigureCount       int
	TermAnchorChars   int
	SectionHeading    string
	MinExtractedChars int
	FallbackMaxPages  int
	FigureMaxWidth    int

	KafkaBrokers string
	KafkaTopic   string
	KafkaGroupID string
}

func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		OpenRouterURL: getEnv("OPENROUTER_URL", "https://openrouter.ai/api/v1/chat/completions"),
		SiteURL:       getEnv("SITE_URL", "http://localhost:3000"),
		SiteName:      getEnv("SITE_NAME", "Paper to Patent"),
		HTTPTimeout:   getEnvAsDuration("LLM_HTTP_TIMEOUT", 10*time.Minute),

		TextModel:   getEnv("LLM_TEXT_MODEL", "google/gemini-2.5-pro"),
		PromptModel: getEnv("LLM_PROMPT_MODEL", "openai/gpt-4o"),
		ImageModel:  getEnv("LLM_IMAGE_MODEL", "google/gemini-2.5-flash-image-preview"),
		VisionModel: getEnv("LLM_VISION_MODEL", "google/gemini-2.5-flash"),

		OutputDir:         getEnv("OUTPUT_DIR", "output"),
		FigureCount:       getEnvAsInt("FIGURE_COUNT", 5),
		TermAnchorChars:   getEnvAsInt("TERM_ANCHOR_CHARS", 500),
		SectionHeading:    getEnv("EMBODIMENT_HEADING", "Detailed Description of Embodiments"),
		MinExtractedChars: getEnvAsInt("MIN_EXTRACTED_CHARS", 200),
		FallbackMaxPages:  getEnvAsInt("FALLBACK_MAX_PAGES", 10),
		FigureMaxWidth:    getEnvAsInt("FIGURE_MAX_WIDTH", 2048),

		KafkaBrokers: getEnv("KAFKA_BROKERS", ""),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "patent_tasks"),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "patent-events"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
