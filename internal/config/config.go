package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultOCRLanguages = "eng+jpn+chi_sim"
	DefaultOCRPSM       = 6
)

var (
	DefaultTranslateEndpoints = []string{
		"https://libretranslate.de/translate",
		"https://translate.argosopentech.com/translate",
		"https://translate.terraprint.co/translate",
	}
	DefaultDetectEndpoints = []string{
		"https://libretranslate.de/detect",
		"https://translate.argosopentech.com/detect",
		"https://translate.terraprint.co/detect",
	}
)

type Config struct {
	NodeID   string
	HTTPPort int
	Debug    bool
	LogLevel string

	DataDir           string
	MaxUploadBytes    int64
	MaxConcurrentJobs int

	// SessionSecret signs mock session tokens. Empty means a random secret
	// per process, which logs everybody out on restart.
	SessionSecret string
	SessionTTL    time.Duration

	OCREngine     string
	OCRURL        string
	TesseractPath string
	OCRLanguages  string
	OCRPSM        int
	OCRTimeout    time.Duration

	TranslateTimeout time.Duration
	DetectTimeout    time.Duration
	EndpointRate     float64

	TranslateEndpoints []string
	DetectEndpoints    []string
}

// Endpoints is the layout of the optional ENDPOINTS_FILE.
type Endpoints struct {
	Translate []string `yaml:"translate"`
	Detect    []string `yaml:"detect"`
}

func Load() (*Config, error) {
	cfg := &Config{
		NodeID:             getEnv("NODE_ID", "panelpal-default"),
		HTTPPort:           getEnvInt("HTTP_PORT", 8000),
		Debug:              getEnvBool("DEBUG", false),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DataDir:            getEnv("DATA_DIR", ""),
		MaxUploadBytes:     int64(getEnvInt("MAX_UPLOAD_BYTES", 5*1024*1024)),
		MaxConcurrentJobs:  getEnvInt("MAX_CONCURRENT_JOBS", 4),
		SessionSecret:      getEnv("SESSION_SECRET", ""),
		SessionTTL:         getEnvDuration("SESSION_TTL", 7*24*time.Hour),
		OCREngine:          getEnv("OCR_ENGINE", "tesseract"),
		OCRURL:             getEnv("OCR_URL", ""),
		TesseractPath:      getEnv("TESSERACT_PATH", "tesseract"),
		OCRLanguages:       getEnv("OCR_LANGUAGES", DefaultOCRLanguages),
		OCRPSM:             getEnvInt("OCR_PSM", DefaultOCRPSM),
		OCRTimeout:         getEnvDuration("OCR_TIMEOUT", 60*time.Second),
		TranslateTimeout:   getEnvDuration("TRANSLATE_TIMEOUT", 15*time.Second),
		DetectTimeout:      getEnvDuration("DETECT_TIMEOUT", 10*time.Second),
		EndpointRate:       getEnvFloat("ENDPOINT_RATE", 2),
		TranslateEndpoints: DefaultTranslateEndpoints,
		DetectEndpoints:    DefaultDetectEndpoints,
	}

	if path := getEnv("ENDPOINTS_FILE", ""); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read endpoints file: %w", err)
		}
		if err := cfg.ApplyEndpoints(data); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// ApplyEndpoints overrides the endpoint lists with the non-empty lists found
// in a YAML endpoints document.
func (c *Config) ApplyEndpoints(data []byte) error {
	var eps Endpoints
	if err := yaml.Unmarshal(data, &eps); err != nil {
		return fmt.Errorf("yaml parse: %w", err)
	}
	if len(eps.Translate) > 0 {
		c.TranslateEndpoints = eps.Translate
	}
	if len(eps.Detect) > 0 {
		c.DetectEndpoints = eps.Detect
	}
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("15s") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if i, err := strconv.Atoi(v); err == nil {
		return time.Duration(i) * time.Second
	}
	return fallback
}
