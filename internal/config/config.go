package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "AutoNews/internal/errors"
)

const (
	defaultTimezone = "UTC"

	configPathEnv          = "AUTONEWS_CONFIG"
	corpusDSNEnv           = "CORPUS_DSN"
	logLevelEnv            = "LOG_LEVEL"
	judgeAPIKeyEnv         = "JUDGE_API_KEY"
	anthropicAPIKeyEnv     = "ANTHROPIC_API_KEY"
	embedderAPIKeyEnv      = "EMBEDDER_API_KEY"
	rerankerAPIKeyEnv      = "RERANKER_API_KEY"
	telegramTokenEnv       = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv      = "TELEGRAM_CHAT_ID"
	telegramAdminChatIDEnv = "TELEGRAM_ADMIN_CHAT_ID"
)

// Corpus backends.
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Judge providers.
const (
	JudgeNone      = "none"
	JudgeOpenAI    = "openai"
	JudgeAnthropic = "anthropic"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Corpus    CorpusConfig    `yaml:"corpus"`
	Queue     QueueConfig     `yaml:"queue"`
	Dedup     DedupConfig     `yaml:"dedup"`
	Delivery  DeliveryConfig  `yaml:"delivery"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Embedder  ServiceConfig   `yaml:"embedder"`
	Reranker  ServiceConfig   `yaml:"reranker"`
	Judge     JudgeConfig     `yaml:"judge"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Sites     []SiteConfig    `yaml:"sites"`
}

// LoggingConfig selects level (debug/info/warn/error) and format (text/json).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// CorpusConfig describes where published entries live.
type CorpusConfig struct {
	Backend   string `yaml:"backend"`
	Path      string `yaml:"path"`
	DSN       string `yaml:"dsn"`
	Dimension int    `yaml:"dimension"`
}

// QueueConfig locates the durable publish queue.
type QueueConfig struct {
	Path        string `yaml:"path"`
	MaxAttempts int    `yaml:"maxAttempts"`
}

// DedupConfig holds the cascade thresholds.
type DedupConfig struct {
	SimHigh     float64       `yaml:"simHigh"`
	RerankHigh  float64       `yaml:"rerankHigh"`
	JudgeMin    float64       `yaml:"judgeMin"`
	RerankTopN  int           `yaml:"rerankTopN"`
	JudgeTopN   int           `yaml:"judgeTopN"`
	CallTimeout time.Duration `yaml:"callTimeout"`
}

// DeliveryConfig paces the delivery worker.
type DeliveryConfig struct {
	PostInterval time.Duration `yaml:"postInterval"`
	RetryBackoff time.Duration `yaml:"retryBackoff"`
	PollInterval time.Duration `yaml:"pollInterval"`
	SendTimeout  time.Duration `yaml:"sendTimeout"`
	Shuffle      *bool         `yaml:"shuffle"`
}

// ShuffleEnabled reports the queue discipline; unset means shuffle.
func (d DeliveryConfig) ShuffleEnabled() bool {
	return d.Shuffle == nil || *d.Shuffle
}

// SchedulerConfig defines how often sources are swept.
type SchedulerConfig struct {
	Interval time.Duration  `yaml:"interval"`
	Timezone string         `yaml:"timezone"`
	location *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// ServiceConfig describes an HTTP model service (embedder or reranker).
type ServiceConfig struct {
	Endpoint   string `yaml:"endpoint"`
	APIKey     string `yaml:"apiKey"`
	MaxRetries int    `yaml:"maxRetries"`
}

// JudgeConfig defines how to contact the semantic judge.
type JudgeConfig struct {
	Provider     string `yaml:"provider"`
	Endpoint     string `yaml:"endpoint"`
	Model        string `yaml:"model"`
	APIKey       string `yaml:"apiKey"`
	SystemPrompt string `yaml:"systemPrompt"`
	MaxTokens    int    `yaml:"maxTokens"`
	MaxRetries   int    `yaml:"maxRetries"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken    string `yaml:"botToken"`
	ChatID      string `yaml:"chatId"`
	AdminChatID string `yaml:"adminChatId"`
	APIBase     string `yaml:"apiBase"`
}

// SiteConfig describes a single news site with its scanner strategy.
type SiteConfig struct {
	Name              string            `yaml:"name"`
	Scanner           string            `yaml:"scanner"`
	Categories        []CategoryConfig  `yaml:"categories"`
	Selectors         SelectorConfig    `yaml:"selectors"`
	LinkLimit         int               `yaml:"linkLimit"`
	MinLeadLength     int               `yaml:"minLeadLength"`
	MaxLeadLength     int               `yaml:"maxLeadLength"`
	SkipPhrases       []string          `yaml:"skipPhrases"`
	RequestsPerSecond float64           `yaml:"requestsPerSecond"`
	Options           map[string]string `yaml:"options"`
}

// CategoryConfig is a listing page to crawl for article links.
type CategoryConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// SelectorConfig holds the CSS selectors used to pull a candidate from a page.
type SelectorConfig struct {
	Link        string `yaml:"link"`
	LinkPattern string `yaml:"linkPattern"`
	Title       string `yaml:"title"`
	Lead        string `yaml:"lead"`
	Image       string `yaml:"image"`
}

// Load reads YAML configuration and applies environment overrides. An empty
// path falls back to $AUTONEWS_CONFIG; with neither set, defaults are used.
func Load(path string) (Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		var fileCfg Config
		if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg = mergeConfig(cfg, fileCfg)
	}

	cfg.applyEnvOverrides()
	if err := cfg.bindTimezone(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the cascade or stores cannot work with.
func (c Config) Validate() error {
	var problems []string

	d := c.Dedup
	if d.SimHigh <= 0 || d.SimHigh > 1 {
		problems = append(problems, "dedup.simHigh must be in (0, 1]")
	}
	if d.JudgeMin < 0 || d.JudgeMin > d.RerankHigh {
		problems = append(problems, "dedup.judgeMin must be in [0, rerankHigh]")
	}
	if d.RerankHigh > 1 {
		problems = append(problems, "dedup.rerankHigh must be at most 1")
	}
	if d.RerankTopN <= 0 || d.JudgeTopN < 0 {
		problems = append(problems, "dedup.rerankTopN must be positive and judgeTopN non-negative")
	}
	if d.CallTimeout <= 0 {
		problems = append(problems, "dedup.callTimeout must be positive")
	}
	if c.Corpus.Dimension <= 0 {
		problems = append(problems, "corpus.dimension must be positive")
	}

	switch c.Corpus.Backend {
	case BackendFile:
		if c.Corpus.Path == "" {
			problems = append(problems, "corpus.path is required for the file backend")
		}
	case BackendSQLite, BackendPostgres:
		if c.Corpus.DSN == "" {
			problems = append(problems, fmt.Sprintf("corpus.dsn is required for the %s backend", c.Corpus.Backend))
		}
	default:
		problems = append(problems, fmt.Sprintf("corpus.backend %q is not one of file, sqlite, postgres", c.Corpus.Backend))
	}

	switch c.Judge.Provider {
	case JudgeNone, JudgeOpenAI, JudgeAnthropic:
	default:
		problems = append(problems, fmt.Sprintf("judge.provider %q is not one of none, openai, anthropic", c.Judge.Provider))
	}

	if c.Queue.MaxAttempts < 0 {
		problems = append(problems, "queue.maxAttempts must not be negative")
	}
	if c.Scheduler.Interval <= 0 {
		problems = append(problems, "scheduler.interval must be positive")
	}

	if len(problems) > 0 {
		return apperrors.NewConfiguration(strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(corpusDSNEnv); v != "" {
		c.Corpus.DSN = v
	}

	if v := os.Getenv(embedderAPIKeyEnv); v != "" {
		c.Embedder.APIKey = v
	}
	if v := os.Getenv(rerankerAPIKeyEnv); v != "" {
		c.Reranker.APIKey = v
	}

	if v := os.Getenv(judgeAPIKeyEnv); v != "" {
		c.Judge.APIKey = v
	}
	if v := os.Getenv(anthropicAPIKeyEnv); v != "" && c.Judge.Provider == JudgeAnthropic {
		c.Judge.APIKey = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv(telegramAdminChatIDEnv); v != "" {
		c.Telegram.AdminChatID = v
	}
}

func (c *Config) bindTimezone() error {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return apperrors.NewConfiguration(fmt.Sprintf("unknown scheduler timezone %q", tz))
	}
	c.Scheduler.location = loc
	return nil
}

func mergeConfig(base, override Config) Config {
	pickString(&base.Logging.Level, override.Logging.Level)
	pickString(&base.Logging.Format, override.Logging.Format)

	pickString(&base.Corpus.Backend, override.Corpus.Backend)
	pickString(&base.Corpus.Path, override.Corpus.Path)
	pickString(&base.Corpus.DSN, override.Corpus.DSN)
	pickInt(&base.Corpus.Dimension, override.Corpus.Dimension)

	pickString(&base.Queue.Path, override.Queue.Path)
	pickInt(&base.Queue.MaxAttempts, override.Queue.MaxAttempts)

	pickFloat(&base.Dedup.SimHigh, override.Dedup.SimHigh)
	pickFloat(&base.Dedup.RerankHigh, override.Dedup.RerankHigh)
	pickFloat(&base.Dedup.JudgeMin, override.Dedup.JudgeMin)
	pickInt(&base.Dedup.RerankTopN, override.Dedup.RerankTopN)
	pickInt(&base.Dedup.JudgeTopN, override.Dedup.JudgeTopN)
	pickDuration(&base.Dedup.CallTimeout, override.Dedup.CallTimeout)

	pickDuration(&base.Delivery.PostInterval, override.Delivery.PostInterval)
	pickDuration(&base.Delivery.RetryBackoff, override.Delivery.RetryBackoff)
	pickDuration(&base.Delivery.PollInterval, override.Delivery.PollInterval)
	pickDuration(&base.Delivery.SendTimeout, override.Delivery.SendTimeout)
	if override.Delivery.Shuffle != nil {
		base.Delivery.Shuffle = override.Delivery.Shuffle
	}

	pickDuration(&base.Scheduler.Interval, override.Scheduler.Interval)
	pickString(&base.Scheduler.Timezone, override.Scheduler.Timezone)

	mergeService(&base.Embedder, override.Embedder)
	mergeService(&base.Reranker, override.Reranker)

	pickString(&base.Judge.Provider, override.Judge.Provider)
	pickString(&base.Judge.Endpoint, override.Judge.Endpoint)
	pickString(&base.Judge.Model, override.Judge.Model)
	pickString(&base.Judge.APIKey, override.Judge.APIKey)
	pickString(&base.Judge.SystemPrompt, override.Judge.SystemPrompt)
	pickInt(&base.Judge.MaxTokens, override.Judge.MaxTokens)
	pickInt(&base.Judge.MaxRetries, override.Judge.MaxRetries)

	pickString(&base.Telegram.BotToken, override.Telegram.BotToken)
	pickString(&base.Telegram.ChatID, override.Telegram.ChatID)
	pickString(&base.Telegram.AdminChatID, override.Telegram.AdminChatID)
	pickString(&base.Telegram.APIBase, override.Telegram.APIBase)

	if len(override.Sites) > 0 {
		base.Sites = override.Sites
	}

	return base
}

func mergeService(base *ServiceConfig, override ServiceConfig) {
	pickString(&base.Endpoint, override.Endpoint)
	pickString(&base.APIKey, override.APIKey)
	pickInt(&base.MaxRetries, override.MaxRetries)
}

func pickString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func pickInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func pickFloat(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

func pickDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Corpus: CorpusConfig{
			Backend:   BackendFile,
			Path:      "published_articles.json",
			Dimension: 768,
		},
		Queue: QueueConfig{Path: "queue.db"},
		Dedup: DedupConfig{
			SimHigh:     0.9,
			RerankHigh:  0.9,
			JudgeMin:    0.8,
			RerankTopN:  5,
			JudgeTopN:   2,
			CallTimeout: 30 * time.Second,
		},
		Delivery: DeliveryConfig{
			PostInterval: 600 * time.Second,
			RetryBackoff: 60 * time.Second,
			PollInterval: 5 * time.Second,
			SendTimeout:  60 * time.Second,
		},
		Scheduler: SchedulerConfig{Interval: 3 * time.Hour, Timezone: defaultTimezone, location: tz},
		Embedder:  ServiceConfig{Endpoint: "http://localhost:8000", MaxRetries: 2},
		Reranker:  ServiceConfig{Endpoint: "http://localhost:8000", MaxRetries: 2},
		Judge: JudgeConfig{
			Provider:   JudgeOpenAI,
			Endpoint:   "https://openrouter.ai/api/v1/chat/completions",
			Model:      "deepseek/deepseek-chat-v3-0324:free",
			MaxTokens:  16,
			MaxRetries: 2,
		},
		Telegram: TelegramConfig{APIBase: "https://api.telegram.org"},
		Sites: []SiteConfig{
			{
				Name:    "kolesa.ru",
				Scanner: "html",
				Categories: []CategoryConfig{
					{Name: "news", URL: "https://www.kolesa.ru/news"},
				},
				Selectors:         SelectorConfig{Link: "a[href*='/news/']", Title: "h1", Lead: "p"},
				LinkLimit:         5,
				RequestsPerSecond: 0.5,
				MinLeadLength:     30,
			},
			{
				Name:    "autostat.ru",
				Scanner: "html",
				Categories: []CategoryConfig{
					{Name: "news", URL: "https://www.autostat.ru/news/"},
				},
				Selectors:         SelectorConfig{Link: "a[href^='/news/']", LinkPattern: `^/news/\d+/$`, Title: "h1", Lead: "p"},
				LinkLimit:         5,
				RequestsPerSecond: 0.5,
				MinLeadLength:     50,
				MaxLeadLength:     500,
				SkipPhrases:       []string{"e-mail", "регистрация", "нажмите", "подпис", "подпиш", "источник"},
			},
			{
				Name:    "avtonovostidnya.ru",
				Scanner: "html",
				Categories: []CategoryConfig{
					{Name: "main", URL: "https://avtonovostidnya.ru/"},
				},
				Selectors: SelectorConfig{
					Link:  "article h2 a, article h3 a",
					Title: "h1, .entry-title",
					Lead:  ".entry-content p, .post-content p, article p",
					Image: ".wp-post-image, article img, img",
				},
				LinkLimit:         5,
				RequestsPerSecond: 0.5,
				MinLeadLength:     30,
			},
		},
	}
}
