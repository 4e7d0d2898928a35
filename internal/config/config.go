// Package config holds process configuration. Runtime wiring (addresses,
// credentials, tuning) comes from the environment; the routing table,
// templates, and channel settings come from a config file loaded with
// LoadFile.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type DB struct {
	User     string
	Pass     string
	Host     string
	Port     string
	Name     string
	MaxConns int // connection pool ceiling
}

type NSQ struct {
	NsqdTCPAddr     string // e.g. nsqd:4150
	LookupHTTPAddr  string // e.g. http://nsqlookupd:4161
	EventsTopic     string // inbound event topic
	EngineChannel   string // NSQ channel name for the engine
	DeadLetterTopic string // dead letter mirror topic
	PublishDLQ      bool   // whether to mirror dead letters to the topic
}

type Engine struct {
	ConfigFile    string        // routes/templates file path
	MaxAttempts   int           // delivery attempt budget per task
	SendTimeout   time.Duration // per-attempt adapter timeout
	HTTPPort      string        // health/metrics port
	ErrorEvents   bool          // emit herald.error events on delivery failure
	ShutdownGrace time.Duration // max wait for in-flight deliveries on stop
}

// Adapters carries channel credentials. Destinations live in the config
// file; secrets stay in the environment.
type Adapters struct {
	EmailAPIBase  string
	EmailAPIKey   string
	EmailFrom     string
	SMSGatewayURL string
	SMSAccountID  string
	SMSAuthToken  string
	SMSFrom       string
	PushGateway   string
	PushSecret    string
	PushIssuer    string
}

type FakeReceiver struct {
	FailFirstN      int           // requests to fail before succeeding
	RateLimitEveryN int           // every Nth request answers 429, 0 disables
	RetryAfter      int           // Retry-After seconds on 429 responses
	ResponseDelayMS int           // simulated latency in milliseconds
	Port            string        // listen port
	ReadTimeout     time.Duration // HTTP read timeout
	WriteTimeout    time.Duration // HTTP write timeout
	IdleTimeout     time.Duration // HTTP idle timeout
}

type Config struct {
	AppName      string
	DB           DB
	NSQ          NSQ
	Engine       Engine
	Adapters     Adapters
	FakeReceiver FakeReceiver
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func FromEnv() Config {
	return Config{
		AppName: getenv("APP_NAME", "herald"),
		DB: DB{
			User:     getenv("DB_USER", "postgres"),
			Pass:     getenv("DB_PASS", "postgres"),
			Host:     getenv("DB_HOST", "postgres"),
			Port:     getenv("DB_PORT", "5432"),
			Name:     getenv("DB_NAME", "herald"),
			MaxConns: getenvInt("DB_MAX_CONNS", 10),
		},
		NSQ: NSQ{
			NsqdTCPAddr:     getenv("NSQD_TCP_ADDR", "nsqd:4150"),
			LookupHTTPAddr:  getenv("NSQ_LOOKUP_HTTP_ADDR", "http://nsqlookupd:4161"),
			EventsTopic:     getenv("NSQ_EVENTS_TOPIC", "events"),
			EngineChannel:   getenv("NSQ_ENGINE_CHANNEL", "engine"),
			DeadLetterTopic: getenv("NSQ_DEAD_LETTER_TOPIC", "herald_dead_letters"),
			PublishDLQ:      getenvBool("PUBLISH_DEAD_LETTER_TOPIC", false),
		},
		Engine: Engine{
			ConfigFile:    getenv("HERALD_CONFIG_FILE", "herald.yaml"),
			MaxAttempts:   getenvInt("MAX_ATTEMPTS", 5),
			SendTimeout:   getenvDuration("SEND_TIMEOUT", 15*time.Second),
			HTTPPort:      ":" + getenv("ENGINE_HTTP_PORT", "8082"),
			ErrorEvents:   getenvBool("ERROR_EVENTS", true),
			ShutdownGrace: getenvDuration("SHUTDOWN_GRACE", 30*time.Second),
		},
		Adapters: Adapters{
			EmailAPIBase:  getenv("EMAIL_API_BASE", ""),
			EmailAPIKey:   getenv("EMAIL_API_KEY", ""),
			EmailFrom:     getenv("EMAIL_FROM", "herald@localhost"),
			SMSGatewayURL: getenv("SMS_GATEWAY_URL", ""),
			SMSAccountID:  getenv("SMS_ACCOUNT_ID", ""),
			SMSAuthToken:  getenv("SMS_AUTH_TOKEN", ""),
			SMSFrom:       getenv("SMS_FROM", ""),
			PushGateway:   getenv("PUSH_GATEWAY_URL", ""),
			PushSecret:    getenv("PUSH_SIGNING_SECRET", ""),
			PushIssuer:    getenv("PUSH_ISSUER", "herald"),
		},
		FakeReceiver: FakeReceiver{
			FailFirstN:      getenvInt("FAIL_FIRST_N", 0),
			RateLimitEveryN: getenvInt("RATE_LIMIT_EVERY_N", 0),
			RetryAfter:      getenvInt("RETRY_AFTER_SECONDS", 2),
			ResponseDelayMS: getenvInt("RESPONSE_DELAY_MS", 0),
			Port:            getenv("FAKE_RECEIVER_PORT", ":8081"),
			ReadTimeout:     getenvDuration("FAKE_RECEIVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getenvDuration("FAKE_RECEIVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:     getenvDuration("FAKE_RECEIVER_IDLE_TIMEOUT", 60*time.Second),
		},
	}
}

func (c Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DB.User, c.DB.Pass, c.DB.Host, c.DB.Port, c.DB.Name)
}
