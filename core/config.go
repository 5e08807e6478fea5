package core

import (
	"log"
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
		Env                       string
		Build                     string
		Debug                     bool
		TestMode                  bool
		WorkDir                   string
		AppName                   string
		SecretKey                 string
		FrontendBaseURL           string
		SendgridApiKey            string
		RollbarToken              string
		PasswordResetTimeoutDelta time.Duration

		defaultFromEmail string

		Server    ServerConfig
		Database  DatabaseConfig
		Cache     CacheConfig
		Dashboard DashboardConfig
	}

	ServerConfig struct {
		Host                      string
		Port                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string // postgres | sqlite3
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	CacheConfig struct {
		// MaxAge marks cached values stale once they are older than it. Zero disables ageing.
		MaxAge time.Duration
	}

	DashboardConfig struct {
		RecentActivityLimit int
	}
)

func (conf *Config) DefaultFromEmail() mail.Address {
	return mail.Address{Name: conf.AppName, Address: conf.defaultFromEmail}
}

func (conf *Config) Address() string {
	return conf.Server.Host + ":" + conf.Server.Port
}

func (db DatabaseConfig) Address() string {
	return db.Host + ":" + db.Port
}

// NewConfig loads the configuration of the current ENV (DEV by default) from
// `config/.env.<env>` if present, then from the environment.
func NewConfig() *Config {
	v := viper.New()

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	workDir := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("build", "dev")
	v.SetDefault("debug", env == "DEV")
	v.SetDefault("testMode", env == "TEST")
	v.SetDefault("appName", "Institute")
	v.SetDefault("secretKey", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.debugHost", "0.0.0.0:4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "institute")
	v.SetDefault("database.user", "institute")
	v.SetDefault("database.password", "")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", env == "DEV" || env == "TEST")

	v.SetDefault("cache.maxAge", time.Duration(0))
	v.SetDefault("dashboard.recentActivityLimit", 10)

	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Config{
		Env:                       env,
		Build:                     v.GetString("build"),
		Debug:                     v.GetBool("debug"),
		TestMode:                  v.GetBool("testMode"),
		WorkDir:                   workDir,
		AppName:                   v.GetString("appName"),
		SecretKey:                 v.GetString("secretKey"),
		FrontendBaseURL:           v.GetString("frontendBaseURL"),
		SendgridApiKey:            v.GetString("sendgridApiKey"),
		RollbarToken:              v.GetString("rollbarToken"),
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		defaultFromEmail:          v.GetString("defaultFromEmail"),
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			Port:                      v.GetString("server.port"),
			DebugHost:                 v.GetString("server.debugHost"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Cache: CacheConfig{
			MaxAge: v.GetDuration("cache.maxAge"),
		},
		Dashboard: DashboardConfig{
			RecentActivityLimit: v.GetInt("dashboard.recentActivityLimit"),
		},
	}
}
