package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"basement-monitor/internal/alerting"
)

// Storage backends.
const (
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
	BackendMemory   = "memory"
)

// Config holds application configuration loaded from environment and an
// optional config file.
type Config struct {
	API struct {
		Port     string
		BasePath string
	}
	Storage struct {
		Backend string
	}
	DB struct {
		DSN string
	}
	Mongo struct {
		URI      string
		Database string
	}
	Kafka    KafkaConfig
	MQTT     MQTTConfig
	Email    EmailConfig
	Telegram TelegramConfig
	Logging  struct {
		Dir   string
		Level string
	}
	Alerting alerting.Config
}

type KafkaConfig struct {
	Broker        string
	ReadingsTopic string
	AlertsTopic   string
	GroupID       string
}

type MQTTConfig struct {
	Broker   string
	Topic    string
	ClientID string
}

type EmailConfig struct {
	SMTPServer string
	SMTPPort   int
	Username   string
	Password   string
	FromName   string
	Recipients []string
}

// Enabled reports whether enough is set to attempt delivery.
func (e EmailConfig) Enabled() bool {
	return e.SMTPServer != "" && e.SMTPPort != 0 && e.Username != "" && len(e.Recipients) > 0
}

type TelegramConfig struct {
	BotToken  string
	ChatIDs   []int64
	RateLimit int
}

func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && len(t.ChatIDs) > 0
}

// Load reads .env (if present), environment variables and, when CONFIG_FILE
// is set, a YAML/JSON/TOML file. Environment wins over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file := os.Getenv("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}
	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.port", ":8000")
	v.SetDefault("api.base_path", "/")
	v.SetDefault("storage.backend", BackendPostgres)
	v.SetDefault("mongo.database", "basement_data")
	v.SetDefault("kafka.readings_topic", "sensor_readings")
	v.SetDefault("kafka.alerts_topic", "alert_notification")
	v.SetDefault("kafka.group_id", "basement-monitor")
	v.SetDefault("mqtt.topic", "sensors/readings")
	v.SetDefault("mqtt.client_id", "basement-monitor")
	v.SetDefault("email.smtp_port", 587)
	v.SetDefault("email.from_name", "Basement Monitor")
	v.SetDefault("telegram.rate_limit", 20)
	v.SetDefault("log.dir", "logs")
	v.SetDefault("log.level", "info")
	v.SetDefault("alerting.temperature.min", 50)
	v.SetDefault("alerting.temperature.max", 80)
	v.SetDefault("alerting.humidity.min", 20)
	v.SetDefault("alerting.humidity.max", 60)
	v.SetDefault("alerting.window_size", 4)
	v.SetDefault("alerting.renotify_delay", "1h")

	// keys without defaults still need registering for AutomaticEnv lookups
	for _, k := range []string{
		"db.dsn", "mongo.uri", "kafka.broker", "mqtt.broker",
		"email.smtp_server", "email.username", "email.password", "email.recipients",
		"telegram.bot_token", "telegram.chat_ids",
	} {
		v.SetDefault(k, "")
	}
}

func fromViper(v *viper.Viper) (Config, error) {
	var cfg Config

	// API settings
	cfg.API.Port = v.GetString("api.port")
	cfg.API.BasePath = v.GetString("api.base_path")

	// Storage
	cfg.Storage.Backend = strings.ToLower(v.GetString("storage.backend"))
	cfg.DB.DSN = v.GetString("db.dsn")
	cfg.Mongo.URI = v.GetString("mongo.uri")
	cfg.Mongo.Database = v.GetString("mongo.database")

	// Transports
	cfg.Kafka = KafkaConfig{
		Broker:        v.GetString("kafka.broker"),
		ReadingsTopic: v.GetString("kafka.readings_topic"),
		AlertsTopic:   v.GetString("kafka.alerts_topic"),
		GroupID:       v.GetString("kafka.group_id"),
	}
	cfg.MQTT = MQTTConfig{
		Broker:   v.GetString("mqtt.broker"),
		Topic:    v.GetString("mqtt.topic"),
		ClientID: v.GetString("mqtt.client_id"),
	}

	// Email settings
	cfg.Email = EmailConfig{
		SMTPServer: v.GetString("email.smtp_server"),
		SMTPPort:   v.GetInt("email.smtp_port"),
		Username:   v.GetString("email.username"),
		Password:   v.GetString("email.password"),
		FromName:   v.GetString("email.from_name"),
		Recipients: splitList(v.GetString("email.recipients")),
	}

	// Telegram settings
	cfg.Telegram.BotToken = v.GetString("telegram.bot_token")
	cfg.Telegram.RateLimit = v.GetInt("telegram.rate_limit")
	for _, s := range splitList(v.GetString("telegram.chat_ids")) {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid TELEGRAM_CHAT_IDS entry %q: %w", s, err)
		}
		cfg.Telegram.ChatIDs = append(cfg.Telegram.ChatIDs, id)
	}

	cfg.Logging.Dir = v.GetString("log.dir")
	cfg.Logging.Level = v.GetString("log.level")

	// Alerting policy
	cfg.Alerting = alerting.Config{
		Temperature: alerting.Range{
			Min: v.GetInt("alerting.temperature.min"),
			Max: v.GetInt("alerting.temperature.max"),
		},
		Humidity: alerting.Range{
			Min: v.GetInt("alerting.humidity.min"),
			Max: v.GetInt("alerting.humidity.max"),
		},
		WindowSize:    v.GetInt("alerting.window_size"),
		RenotifyDelay: v.GetDuration("alerting.renotify_delay"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg Config) validate() error {
	missing := []string{}
	switch cfg.Storage.Backend {
	case BackendPostgres:
		if cfg.DB.DSN == "" {
			missing = append(missing, "DB_DSN")
		}
	case BackendMongo:
		if cfg.Mongo.URI == "" {
			missing = append(missing, "MONGO_URI")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.Storage.Backend)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configurations: %v", missing)
	}
	if err := cfg.Alerting.Validate(); err != nil {
		return fmt.Errorf("invalid alerting configuration: %w", err)
	}
	return nil
}

// Addr normalises API_PORT into a listen address.
func (cfg Config) Addr() string {
	if strings.HasPrefix(cfg.API.Port, ":") || strings.Contains(cfg.API.Port, ":") {
		return cfg.API.Port
	}
	return ":" + cfg.API.Port
}

// RenotifyDelayString is used in startup logs.
func (cfg Config) RenotifyDelayString() string {
	return cfg.Alerting.RenotifyDelay.Round(time.Second).String()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
