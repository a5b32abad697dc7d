package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/gorm"

	"github.com/ankitthakur250384/CRM-HE-sub005/internal/api/routes"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/config"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/database"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/logger"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/metrics"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/models"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/pdf"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/realtime"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/server"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/services"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/version"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		log.Fatalf("create log dir: %v", err)
	}
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDir, "crm.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
	mw := io.MultiWriter(os.Stdout, rotator)
	log.SetOutput(mw)
	logger.Init(cfg.Debug, mw)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}

	if len(os.Args) > 1 && os.Args[1] == "reset-password" {
		if len(os.Args) != 4 {
			log.Fatalf("Usage: %s reset-password <email> <new-password>", os.Args[0])
		}
		resetPassword(db, os.Args[2], os.Args[3])
		return
	}

	logger.Log().WithField("version", version.Full()).Infof("starting %s", version.Name)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Register(prometheus.DefaultRegisterer)

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Log().WithError(err).Warn("redis unreachable, sweep lock and relay will retry on use")
		}
		defer rdb.Close()
	}

	deps := routes.Dependencies{
		Redis:    rdb,
		Hub:      realtime.NewHub(rdb),
		Gatherer: prometheus.DefaultGatherer,
	}
	if cfg.PDF.Enabled {
		deps.PDF = pdf.ChromeEngine{ExecPath: cfg.PDF.ChromePath}
	}
	if cfg.EmailProvider == "ses" || cfg.SMS.Enabled {
		wireAWS(ctx, cfg, &deps)
	}

	srv, err := server.New(db, cfg, deps)
	if err != nil {
		log.Fatalf("build server: %v", err)
	}

	deps.Hub.StartRelay(ctx)
	defer deps.Hub.Close()

	scheduler := services.NewNotificationScheduler(srv.App.Notifications, rdb)
	if err := scheduler.Start(cfg.SweepSpec); err != nil {
		log.Fatalf("start notification scheduler: %v", err)
	}
	defer scheduler.Stop()

	if err := srv.Run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
	logger.Log().Info("shutdown complete")
}

// wireAWS attaches SES and SNS senders. A failed credential load leaves the
// SMTP mailer and no SMS, which deliveries report as not configured.
func wireAWS(ctx context.Context, cfg config.Config, deps *routes.Dependencies) {
	if cfg.EmailProvider == "ses" {
		awsCfg, err := services.LoadAWSConfig(ctx, cfg.SESRegion)
		if err != nil {
			logger.Log().WithError(err).Warn("ses disabled: load aws config")
		} else {
			deps.Email = services.NewSESMailer(ses.NewFromConfig(awsCfg), cfg.SESFrom)
		}
	}
	if cfg.SMS.Enabled {
		awsCfg, err := services.LoadAWSConfig(ctx, cfg.SMS.Region)
		if err != nil {
			logger.Log().WithError(err).Warn("sms disabled: load aws config")
		} else {
			deps.SMS = services.NewSNSSMSSender(sns.NewFromConfig(awsCfg), cfg.SMS.SenderID)
		}
	}
}

func resetPassword(db *gorm.DB, email, newPassword string) {
	var user models.User
	if err := db.Where("email = ?", email).First(&user).Error; err != nil {
		log.Fatalf("user not found: %v", err)
	}
	if err := user.SetPassword(newPassword); err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	// Unlock account if locked
	user.LockedUntil = nil
	user.FailedLoginAttempts = 0

	if err := db.Save(&user).Error; err != nil {
		log.Fatalf("failed to save user: %v", err)
	}
	log.Printf("Password updated successfully for user %s", email)
}
