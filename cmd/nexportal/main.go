// Command nexportal runs the NEX clinical portal: registration, email
// code login, password recovery and the text-classification page.
package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/nexhealth/nexauth"
	"github.com/nexhealth/nexauth/classify"
	"github.com/nexhealth/nexauth/notify"
	"github.com/nexhealth/nexauth/userstore"
	"github.com/nexhealth/nexauth/web"
)

func main() {
	logger := logrus.New()

	_ = godotenv.Load()
	if getEnv("ENV", "dev") == "prod" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       intEnv(logger, "REDIS_DB", 0),
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.WithField("error", err).Fatal("redis unreachable")
	}

	provider := buildUserProvider(ctx, logger)
	notifier := buildNotifier(logger)
	classifier := buildClassifier(logger)

	cfg := nexauth.DefaultConfig()
	cfg.Token.Secret = []byte(mustEnv(logger, "TOKEN_SECRET"))
	cfg.Audit.Enabled = true
	cfg.Metrics.Enabled = true

	engine, err := nexauth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserProvider(provider).
		WithNotifier(notifier).
		WithAuditSink(nexauth.NewJSONWriterSink(os.Stdout)).
		Build()
	if err != nil {
		logger.WithField("error", err).Fatal("engine build failed")
	}
	defer engine.Close()

	handler, err := web.NewHandler(web.Config{
		Engine:        engine,
		Classifier:    classifier,
		Logger:        logger,
		SecureCookies: getEnv("SECURE_COOKIES", "false") == "true",
	})
	if err != nil {
		logger.WithField("error", err).Fatal("handler build failed")
	}

	addr := ":" + getEnv("PORT", "8080")
	logger.WithField("addr", addr).Info("portal listening")
	if err := http.ListenAndServe(addr, handler.Router()); err != nil {
		logger.WithField("error", err).Fatal("server stopped")
	}
}

// buildUserProvider connects to Postgres when DATABASE_DSN is set and
// falls back to the in-memory store for local development.
func buildUserProvider(ctx context.Context, logger *logrus.Logger) nexauth.UserProvider {
	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		logger.Warn("DATABASE_DSN not set; users live in memory only")
		return userstore.NewMemory()
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		logger.WithField("error", err).Fatal("postgres open failed")
	}
	if err := db.PingContext(ctx); err != nil {
		logger.WithField("error", err).Fatal("postgres unreachable")
	}
	if err := userstore.Migrate(ctx, db); err != nil {
		logger.WithField("error", err).Fatal("migrations failed")
	}
	return userstore.NewPostgres(db)
}

func buildNotifier(logger *logrus.Logger) nexauth.Notifier {
	host := os.Getenv("SMTP_HOST")
	if host == "" {
		logger.Warn("SMTP_HOST not set; verification codes go to the log")
		return notify.NewLog(logger)
	}

	n, err := notify.NewSMTP(notify.SMTPConfig{
		Host:     host,
		Port:     intEnv(logger, "SMTP_PORT", 587),
		Username: mustEnv(logger, "SMTP_USER"),
		Password: mustEnv(logger, "SMTP_PASSWORD"),
		From:     os.Getenv("SMTP_FROM"),
		FromName: getEnv("SMTP_FROM_NAME", "NEX"),
	})
	if err != nil {
		logger.WithField("error", err).Fatal("smtp config invalid")
	}
	return n
}

func buildClassifier(logger *logrus.Logger) classify.Classifier {
	url := os.Getenv("MODEL_URL")
	if url == "" {
		logger.Warn("MODEL_URL not set; classifier returns a fixed label")
		return classify.Static{}
	}

	c, err := classify.NewHTTP(classify.HTTPConfig{
		URL:     url,
		Timeout: time.Duration(intEnv(logger, "MODEL_TIMEOUT_SECONDS", 10)) * time.Second,
	})
	if err != nil {
		logger.WithField("error", err).Fatal("classifier config invalid")
	}
	return c
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(logger *logrus.Logger, key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.WithFields(logrus.Fields{"key": key, "value": v}).Fatal("invalid integer env")
	}
	return n
}

func mustEnv(logger *logrus.Logger, key string) string {
	v := os.Getenv(key)
	if v == "" {
		logger.WithField("key", key).Fatal("missing env")
	}
	return v
}
