package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env             string // DEV (local; default), TEST, QA, PROD
		Build           string
		AppName         string
		Debug           bool
		TestMode        bool
		SecretKey       string
		FrontendBaseURL string
		FromEmail       string
		RollbarToken    string
		SendgridApiKey  string

		Server   ServerConfig
		Database DatabaseConfig
		Storage  StorageConfig
		Payment  PaymentConfig
		Peer     PeerConfig
		Auth     AuthConfig
	}

	ServerConfig struct {
		Host                      string
		Address                   string
		DebugHost                 string
		DisableReqLogs            bool
		ReadTimeout               time.Duration
		WriteTimeout              time.Duration
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		MaxUploadSize             int64
	}

	DatabaseConfig struct {
		Engine        string // postgres | mongodb | inmem
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		MongoURI      string
	}

	StorageConfig struct {
		Backend            string // local | supabase
		LocalDir           string
		PublicBaseURL      string
		SupabaseURL        string
		SupabaseBucket     string
		SupabaseServiceKey string
	}

	PaymentConfig struct {
		StripeSecretKey     string
		StripeWebhookSecret string
		Currency            string
	}

	PeerConfig struct {
		BrokerURL string
		Key       string
	}

	AuthConfig struct {
		DisableSignUp bool
		RateLimit     float64 // attempts per second
		RateBurst     int
	}
)

// Address returns the "host:port" of the database server.
func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// DefaultFromEmail returns the sender address used for outgoing emails.
func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.FromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: c.FromEmail}
	}
	if addr.Name == "" {
		addr.Name = c.AppName
	}
	return *addr
}

// NewConfig loads the app configuration from defaults, `config/.env.<env>` and the environment.
// Environment variables are prefixed with the current ENV, e.g. `PROD_SECRET_KEY`.
func NewConfig() *Config {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		v.SetDefault("test_mode", true)
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	if wd, err := os.Getwd(); err == nil {
		dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
		if _, err := os.Stat(dotEnvPath); err == nil {
			if err := godotenv.Load(dotEnvPath); err != nil {
				log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
			}
		} else if !os.IsNotExist(err) {
			log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
		}
	}
	v.AutomaticEnv()

	return &Config{
		Env:             env,
		Build:           v.GetString("build"),
		AppName:         v.GetString("app_name"),
		Debug:           v.GetBool("debug"),
		TestMode:        v.GetBool("test_mode"),
		SecretKey:       v.GetString("secret_key"),
		FrontendBaseURL: v.GetString("frontend_base_url"),
		FromEmail:       v.GetString("default_from_email"),
		RollbarToken:    v.GetString("rollbar_token"),
		SendgridApiKey:  v.GetString("sendgrid_api_key"),
		Server: ServerConfig{
			Host:                      v.GetString("server_host"),
			Address:                   v.GetString("server_address"),
			DebugHost:                 v.GetString("server_debug_host"),
			DisableReqLogs:            v.GetBool("server_disable_req_logs"),
			ReadTimeout:               v.GetDuration("server_read_timeout"),
			WriteTimeout:              v.GetDuration("server_write_timeout"),
			ShutdownTimeout:           v.GetDuration("server_shutdown_timeout"),
			JWTExpirationDelta:        v.GetDuration("jwt_expiration_delta"),
			JWTRefreshExpirationDelta: v.GetDuration("jwt_refresh_expiration_delta"),
			MaxUploadSize:             v.GetInt64("server_max_upload_size"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database_engine"),
			Host:          v.GetString("database_host"),
			Port:          v.GetString("database_port"),
			Name:          v.GetString("database_name"),
			User:          v.GetString("database_user"),
			Password:      v.GetString("database_password"),
			AdminUser:     v.GetString("database_admin_user"),
			AdminPassword: v.GetString("database_admin_password"),
			DisableTLS:    v.GetBool("database_disable_tls"),
			MongoURI:      v.GetString("database_mongo_uri"),
		},
		Storage: StorageConfig{
			Backend:            v.GetString("storage_backend"),
			LocalDir:           v.GetString("storage_local_dir"),
			PublicBaseURL:      v.GetString("storage_public_base_url"),
			SupabaseURL:        v.GetString("storage_supabase_url"),
			SupabaseBucket:     v.GetString("storage_supabase_bucket"),
			SupabaseServiceKey: v.GetString("storage_supabase_service_key"),
		},
		Payment: PaymentConfig{
			StripeSecretKey:     v.GetString("stripe_secret_key"),
			StripeWebhookSecret: v.GetString("stripe_webhook_secret"),
			Currency:            v.GetString("payment_currency"),
		},
		Peer: PeerConfig{
			BrokerURL: v.GetString("peer_broker_url"),
			Key:       v.GetString("peer_key"),
		},
		Auth: AuthConfig{
			DisableSignUp: v.GetBool("auth_disable_signup"),
			RateLimit:     v.GetFloat64("auth_rate_limit"),
			RateBurst:     v.GetInt("auth_rate_burst"),
		},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)

	v.SetDefault("build", "develop")
	v.SetDefault("debug", true)
	v.SetDefault("test_mode", false)
	v.SetDefault("app_name", "Tutorly")
	v.SetDefault("secret_key", "k2m%v6-9sd=@tq8x#r!vb0w7(ye+l5c^z4n3f1u&hjp$oag)")
	v.SetDefault("frontend_base_url", "http://localhost:3000")
	v.SetDefault("default_from_email", "noreply@localhost")
	v.SetDefault("rollbar_token", "")
	v.SetDefault("sendgrid_api_key", "")

	v.SetDefault("server_host", "localhost")
	v.SetDefault("server_address", ":8000")
	v.SetDefault("server_debug_host", ":4000")
	v.SetDefault("server_disable_req_logs", false)
	v.SetDefault("server_read_timeout", 5*time.Second)
	v.SetDefault("server_write_timeout", 10*time.Second)
	v.SetDefault("server_shutdown_timeout", 5*time.Second)
	v.SetDefault("jwt_expiration_delta", 7*24*time.Hour)
	v.SetDefault("jwt_refresh_expiration_delta", 4*time.Hour)
	v.SetDefault("server_max_upload_size", int64(32<<20))

	v.SetDefault("database_engine", "postgres")
	v.SetDefault("database_host", "localhost")
	v.SetDefault("database_port", "5432")
	v.SetDefault("database_name", "tutorly")
	v.SetDefault("database_user", "tutorly")
	v.SetDefault("database_password", "")
	v.SetDefault("database_admin_user", "")
	v.SetDefault("database_admin_password", "")
	v.SetDefault("database_disable_tls", true)
	v.SetDefault("database_mongo_uri", "mongodb://localhost:27017")

	v.SetDefault("storage_backend", "local")
	v.SetDefault("storage_local_dir", "uploads")
	v.SetDefault("storage_public_base_url", "http://localhost:8000")
	v.SetDefault("storage_supabase_url", "")
	v.SetDefault("storage_supabase_bucket", "documents")
	v.SetDefault("storage_supabase_service_key", "")

	v.SetDefault("stripe_secret_key", "")
	v.SetDefault("stripe_webhook_secret", "")
	v.SetDefault("payment_currency", "usd")

	v.SetDefault("peer_broker_url", "wss://0.peerjs.com/peerjs")
	v.SetDefault("peer_key", "peerjs")

	v.SetDefault("auth_disable_signup", false)
	v.SetDefault("auth_rate_limit", 1.0)
	v.SetDefault("auth_rate_burst", 5)
}
