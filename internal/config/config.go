package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName           string
	AppEnv            string
	AppPort           string
	CORSAllowOrigins  string
	RedisURL          string
	NATSURL           string
	EventsSubjectBase string
	Delivery          DeliveryConfig
	DedupeTTL         time.Duration
	FormIdleTTL       time.Duration
	FormMaxActive     int
	FormMountLimit    int
	StreamKeepAlive   time.Duration
	RateLimitMax      int
	RateLimitWindow   time.Duration
	Site              SiteConfig
}

// DeliveryConfig identifies the templated email relay. It is read once at
// start-up and shared read-only by every form.
type DeliveryConfig struct {
	ServiceID      string
	TemplateID     string
	PublicKey      string
	PrivateKey     string
	Endpoint       string
	Timeout        time.Duration
	RecipientLabel string
	Location       *time.Location
}

// SiteConfig carries the defaults used when injecting page metadata.
type SiteConfig struct {
	Name     string
	URL      string
	Image    string
	Keywords string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("CLOUDADEPT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// The site build used VITE_ prefixed names; both spellings are accepted.
	_ = v.BindEnv("emailjs.service_id", "CLOUDADEPT_EMAILJS_SERVICE_ID", "VITE_EMAILJS_SERVICE_ID")
	_ = v.BindEnv("emailjs.template_id", "CLOUDADEPT_EMAILJS_TEMPLATE_ID", "VITE_EMAILJS_TEMPLATE_ID")
	_ = v.BindEnv("emailjs.public_key", "CLOUDADEPT_EMAILJS_PUBLIC_KEY", "VITE_EMAILJS_PUBLIC_KEY")
	_ = v.BindEnv("emailjs.private_key", "CLOUDADEPT_EMAILJS_PRIVATE_KEY", "VITE_EMAILJS_PRIVATE_KEY")

	v.SetDefault("app.name", "CloudAdept API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("cors.allow_origins", "*")
	v.SetDefault("events.subject_base", "cloudadept")
	v.SetDefault("emailjs.endpoint", "https://api.emailjs.com/api/v1.0/email/send")
	v.SetDefault("emailjs.timeout", "10s")
	v.SetDefault("contact.recipient_label", "CloudAdept Admin")
	v.SetDefault("contact.timezone", "Asia/Kolkata")
	v.SetDefault("contact.dedupe_ttl", "5m")
	v.SetDefault("contact.form_idle_ttl", "30m")
	v.SetDefault("contact.form_max_active", 1000)
	v.SetDefault("contact.form_mount_limit", 20)
	v.SetDefault("contact.stream_keepalive", "30s")
	v.SetDefault("contact.rate_limit", 5)
	v.SetDefault("contact.rate_window", "1m")
	v.SetDefault("site.name", "CloudAdept Systems")
	v.SetDefault("site.url", "https://www.cloudadeptsystems.com")
	v.SetDefault("site.image", "https://d33wubrfki0l68.cloudfront.net/691895f41efc7a4910cdf841/screenshot_2025-11-15-15-02-29-0000.webp")
	v.SetDefault("site.keywords", "ServiceNow, ServiceNow Partner, ITSM, ITOM, CSM, ServiceNow Implementation, Now Platform, CloudAdept Systems")

	relayTimeout, err := parseDuration(v, "emailjs.timeout", 10*time.Second)
	if err != nil {
		return Config{}, err
	}
	dedupeTTL, err := parseDuration(v, "contact.dedupe_ttl", 5*time.Minute)
	if err != nil {
		return Config{}, err
	}
	idleTTL, err := parseDuration(v, "contact.form_idle_ttl", 30*time.Minute)
	if err != nil {
		return Config{}, err
	}
	rateWindow, err := parseDuration(v, "contact.rate_window", time.Minute)
	if err != nil {
		return Config{}, err
	}
	keepAlive, err := parseDuration(v, "contact.stream_keepalive", 30*time.Second)
	if err != nil {
		return Config{}, err
	}

	zone := trimmed(v, "contact.timezone")
	location, err := time.LoadLocation(zone)
	if err != nil {
		return Config{}, fmt.Errorf("invalid contact timezone %q: %w", zone, err)
	}

	cfg := Config{
		AppName:           trimmed(v, "app.name"),
		AppEnv:            trimmed(v, "app.env"),
		AppPort:           trimmed(v, "app.port"),
		CORSAllowOrigins:  trimmed(v, "cors.allow_origins"),
		RedisURL:          trimmed(v, "redis.url"),
		NATSURL:           trimmed(v, "nats.url"),
		EventsSubjectBase: trimmed(v, "events.subject_base"),
		Delivery: DeliveryConfig{
			ServiceID:      trimmed(v, "emailjs.service_id"),
			TemplateID:     trimmed(v, "emailjs.template_id"),
			PublicKey:      trimmed(v, "emailjs.public_key"),
			PrivateKey:     trimmed(v, "emailjs.private_key"),
			Endpoint:       trimmed(v, "emailjs.endpoint"),
			Timeout:        relayTimeout,
			RecipientLabel: trimmed(v, "contact.recipient_label"),
			Location:       location,
		},
		DedupeTTL:       dedupeTTL,
		FormIdleTTL:     idleTTL,
		FormMaxActive:   v.GetInt("contact.form_max_active"),
		FormMountLimit:  v.GetInt("contact.form_mount_limit"),
		StreamKeepAlive: keepAlive,
		RateLimitMax:    v.GetInt("contact.rate_limit"),
		RateLimitWindow: rateWindow,
		Site: SiteConfig{
			Name:     trimmed(v, "site.name"),
			URL:      trimmed(v, "site.url"),
			Image:    trimmed(v, "site.image"),
			Keywords: trimmed(v, "site.keywords"),
		},
	}

	if cfg.RateLimitMax <= 0 {
		cfg.RateLimitMax = 5
	}
	if cfg.FormMountLimit <= 0 {
		cfg.FormMountLimit = 20
	}
	if cfg.FormMaxActive <= 0 {
		cfg.FormMaxActive = 1000
	}

	return cfg, nil
}

func trimmed(v *viper.Viper, key string) string {
	return strings.TrimSpace(v.GetString(key))
}

func parseDuration(v *viper.Viper, key string, fallback time.Duration) (time.Duration, error) {
	raw := trimmed(v, key)
	if raw == "" {
		return fallback, nil
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if parsed <= 0 {
		return fallback, nil
	}

	return parsed, nil
}
