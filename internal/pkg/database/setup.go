package database

import (
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ManuelReschke/SoundSmith/app/models"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/config"
)

const maxRetries = 5
const retryDelay = 5 * time.Second

// DB is the process-wide database handle set by SetupDatabase.
var DB *gorm.DB

// GetDB returns the process-wide database handle.
func GetDB() *gorm.DB {
	return DB
}

// SetupDatabase connects to MySQL with retries and migrates the schema.
func SetupDatabase(cfg config.Database, dev bool) error {
	var err error
	gormCfg := &gorm.Config{}
	if !dev {
		gormCfg.Logger = logger.Default.LogMode(logger.Warn)
	}

	for i := 0; i < maxRetries; i++ {
		DB, err = gorm.Open(mysql.New(mysql.Config{
			DSN:                       cfg.DSN(),
			DefaultStringSize:         256,
			DisableDatetimePrecision:  true,
			DontSupportRenameIndex:    true,
			DontSupportRenameColumn:   true,
			SkipInitializeWithVersion: false,
		}), gormCfg)
		if err == nil {
			return AutoMigrate(DB)
		}

		log.Warnf("[Database] failed to connect (try %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			log.Infof("[Database] retrying in %v...", retryDelay)
			time.Sleep(retryDelay)
		}
	}

	return err
}

// Models lists every table owned by the application.
func Models() []any {
	return []any{
		&models.User{},
		&models.Plan{},
		&models.Offer{},
		&models.OfferRedemption{},
		&models.Subscription{},
		&models.PaymentRecord{},
		&models.BillingWebhookEvent{},
		&models.VendorCredential{},
	}
}

// AutoMigrate creates or updates the schema of every application table.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
