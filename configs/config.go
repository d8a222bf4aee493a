package config

import (
	"os"
	"strconv"
	"time"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	PublicURL  string
}

type Snapchat struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	APIBaseURL   string
	BrandName    string
	Lookahead    time.Duration
}

type Instagram struct {
	GraphBaseURL string
	RefreshURL   string
	Lookahead    time.Duration
	PollInterval time.Duration
	PollAttempts int
}

type Youtube struct {
	ClientID      string
	ClientSecret  string
	TokenURL      string
	APIBaseURL    string
	Lookahead     time.Duration
	PrivacyStatus string
	CategoryID    string
}

type Scheduler struct {
	InProcessCron       bool
	SweepSpec           string
	AnalyticsSpec       string
	TokenRefreshSpec    string
	SweepConcurrency    int
	PublishLockTTL      time.Duration
	AnalyticsReadFresh  time.Duration
	AnalyticsSweepFresh time.Duration
}

type Config struct {
	Port        string
	PostgresURI string
	RedisURI    string
	FrontendURL string
	SecretKey   string
	CookieName  string
	CronSecret  string
	Snapchat    Snapchat
	Instagram   Instagram
	Youtube     Youtube
	R2          R2
	Scheduler   Scheduler
}

func LoadConfig() *Config {
	return &Config{
		Port:        getEnv("PORT", "3000"),
		PostgresURI: getEnv("POSTGRES_URI", ""),
		RedisURI:    getEnv("REDIS_URI", "localhost:6379"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),
		SecretKey:   getEnv("SECRET_KEY", ""),
		CookieName:  getEnv("COOKIE_NAME", "crosspost_session"),
		CronSecret:  getEnv("CRON_SECRET", ""),
		Snapchat: Snapchat{
			ClientID:     getEnv("SNAPCHAT_CLIENT_ID", ""),
			ClientSecret: getEnv("SNAPCHAT_CLIENT_SECRET", ""),
			TokenURL:     getEnv("SNAPCHAT_TOKEN_URL", "https://accounts.snapchat.com/login/oauth2/access_token"),
			APIBaseURL:   getEnv("SNAPCHAT_API_BASE_URL", "https://adsapi.snapchat.com"),
			BrandName:    getEnv("SNAPCHAT_BRAND_NAME", "Crosspost"),
			Lookahead:    getDuration("SNAPCHAT_TOKEN_LOOKAHEAD", 5*time.Minute),
		},
		Instagram: Instagram{
			GraphBaseURL: getEnv("INSTAGRAM_GRAPH_BASE_URL", "https://graph.instagram.com/v21.0"),
			RefreshURL:   getEnv("INSTAGRAM_REFRESH_URL", "https://graph.instagram.com/refresh_access_token"),
			Lookahead:    getDuration("INSTAGRAM_TOKEN_LOOKAHEAD", time.Hour),
			PollInterval: getDuration("INSTAGRAM_POLL_INTERVAL", 5*time.Second),
			PollAttempts: getInt("INSTAGRAM_POLL_ATTEMPTS", 30),
		},
		Youtube: Youtube{
			ClientID:      getEnv("GOOGLE_CLIENT_ID", ""),
			ClientSecret:  getEnv("GOOGLE_CLIENT_SECRET", ""),
			TokenURL:      getEnv("GOOGLE_TOKEN_URL", ""),
			APIBaseURL:    getEnv("YOUTUBE_API_BASE_URL", ""),
			Lookahead:     getDuration("YOUTUBE_TOKEN_LOOKAHEAD", time.Minute),
			PrivacyStatus: getEnv("YOUTUBE_PRIVACY_STATUS", "public"),
			CategoryID:    getEnv("YOUTUBE_CATEGORY_ID", "22"),
		},
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
			PublicURL:  getEnv("R2_PUBLIC_URL", ""),
		},
		Scheduler: Scheduler{
			InProcessCron:       getBool("IN_PROCESS_CRON", true),
			SweepSpec:           getEnv("SWEEP_SPEC", "@every 00h01m00s"),
			AnalyticsSpec:       getEnv("ANALYTICS_SPEC", "@every 00h30m00s"),
			TokenRefreshSpec:    getEnv("TOKEN_REFRESH_SPEC", "@every 00h10m00s"),
			SweepConcurrency:    getInt("SWEEP_CONCURRENCY", 5),
			PublishLockTTL:      getDuration("PUBLISH_LOCK_TTL", 15*time.Minute),
			AnalyticsReadFresh:  getDuration("ANALYTICS_READ_FRESHNESS", 30*time.Minute),
			AnalyticsSweepFresh: getDuration("ANALYTICS_SWEEP_FRESHNESS", 60*time.Minute),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}
