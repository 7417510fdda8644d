package config

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"site-cloner/internal/database"
	"site-cloner/internal/security"
)

// MySQLConfig builds the driver configuration for cfg. The password is
// omitted when IAM auth supplies it per connection.
func MySQLConfig(cfg DatabaseConfig) *mysql.Config {
	mc := mysql.NewConfig()
	mc.User = cfg.Username
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, cfg.Port)
	mc.DBName = cfg.Database
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.Params = map[string]string{"charset": "utf8mb4"}
	if cfg.TLS != "" && cfg.TLS != "false" {
		mc.TLSConfig = cfg.TLS
	}
	if cfg.IAM.Enabled {
		mc.Passwd = ""
		mc.AllowCleartextPasswords = true
		if mc.TLSConfig == "" {
			mc.TLSConfig = "true"
		}
	}
	return mc
}

// gormLogLevel maps the application log level to GORM's, one step quieter.
func gormLogLevel(level string) logger.LogLevel {
	switch level {
	case "debug":
		return logger.Info
	case "info":
		return logger.Warn
	case "warn":
		return logger.Error
	case "error":
		return logger.Silent
	default:
		return logger.Warn
	}
}

// InitDatabase initializes the database connection with GORM
func InitDatabase(ctx context.Context, cfg DatabaseConfig, logging LoggingConfig, log *zap.Logger) (*gorm.DB, error) {
	mc := MySQLConfig(cfg)

	gormLogger := logger.New(zap.NewStdLog(log.Named("gorm")), logger.Config{
		SlowThreshold:             time.Second,
		LogLevel:                  gormLogLevel(logging.Level),
		IgnoreRecordNotFoundError: true,
	})

	var dialector gorm.Dialector
	if cfg.IAM.Enabled {
		tokens, err := security.NewRDSIAMAuth(ctx, security.RDSIAMConfig{
			Endpoint:        mc.Addr,
			Region:          cfg.IAM.Region,
			DBUser:          cfg.Username,
			AccessKeyID:     cfg.IAM.AccessKeyID,
			SecretAccessKey: cfg.IAM.SecretAccessKey,
			SessionToken:    cfg.IAM.SessionToken,
		})
		if err != nil {
			return nil, err
		}
		sqlDB := sql.OpenDB(&iamConnector{base: mc, tokens: tokens})
		dialector = gormmysql.New(gormmysql.Config{Conn: sqlDB})
	} else {
		dialector = gormmysql.Open(mc.FormatDSN())
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	database.ConfigurePool(sqlDB, cfg.Pool())

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("database connection established",
		zap.String("addr", mc.Addr),
		zap.String("database", mc.DBName),
		zap.Bool("iam", cfg.IAM.Enabled))
	return db, nil
}

type tokenSource interface {
	Token(ctx context.Context) (string, error)
}

// iamConnector dials with a fresh IAM token as the password.
type iamConnector struct {
	base   *mysql.Config
	tokens tokenSource
}

func (c *iamConnector) Connect(ctx context.Context) (driver.Conn, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	cfg := c.base.Clone()
	cfg.Passwd = token
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, err
	}
	return connector.Connect(ctx)
}

func (c *iamConnector) Driver() driver.Driver {
	return mysql.MySQLDriver{}
}
