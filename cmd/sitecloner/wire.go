package main

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/rdsdata"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"site-cloner/internal/assets"
	"site-cloner/internal/config"
	"site-cloner/internal/controller"
	"site-cloner/internal/database"
	"site-cloner/internal/middleware"
	"site-cloner/internal/provision"
	"site-cloner/internal/repository"
	"site-cloner/internal/service"
)

// app holds the wired services. With the rds-data driver only the rewrite
// path is available and db, sites and clones stay nil.
type app struct {
	db       *gorm.DB
	store    database.Store
	health   controller.HealthChecker
	sites    repository.SiteRepository
	clones   service.CloneService
	rewriter service.TableRewriteService
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, metrics *middleware.PrometheusMetrics) (*app, error) {
	opts, err := cfg.Clone.RewriteOptions()
	if err != nil {
		return nil, err
	}
	var recorder service.RewriteRecorder
	var cloneRecorder service.CloneRecorder
	if metrics != nil {
		recorder = metrics
		cloneRecorder = metrics
	}

	if cfg.Database.Driver == "rds-data" {
		client, err := newDataAPIClient(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		raw := database.NewDataAPIStore(client, cfg.Database.DataAPI.ResourceARN, cfg.Database.DataAPI.SecretARN, cfg.Database.Database)
		store := database.WithRetry(raw, cfg.Database.RetryAttempts, cfg.Database.RetryBackoff)
		return &app{
			store:    store,
			health:   raw,
			rewriter: service.NewTableRewriteService(store, opts, logger.Named("rewrite"), recorder),
		}, nil
	}

	db, err := config.InitDatabase(ctx, cfg.Database, cfg.Logging, logger)
	if err != nil {
		return nil, err
	}
	raw := database.NewMySQLStore(db)
	store := database.WithRetry(raw, cfg.Database.RetryAttempts, cfg.Database.RetryBackoff)
	rewriter := service.NewTableRewriteService(store, opts, logger.Named("rewrite"), recorder)

	network := cfg.Clone.Network()
	layout := cfg.Clone.Layout()
	uploads, err := assets.New(ctx, cfg.Assets, layout, logger.Named("assets"))
	if err != nil {
		return nil, err
	}

	sites := repository.NewSiteRepository(db, network.BasePrefix)
	clones := service.NewCloneService(service.CloneDeps{
		Store:       store,
		Sites:       sites,
		Options:     repository.NewOptionRepository(db),
		Users:       repository.NewUserRepository(db, network.BasePrefix),
		Meta:        repository.NewMetaRepository(db, network.BasePrefix),
		Provisioner: provision.NewSiteProvisioner(db, sites, network, logger.Named("provision")),
		Rewriter:    rewriter,
		Uploads:     uploads,
		Recorder:    cloneRecorder,
	}, network, layout, logger.Named("clone"))

	return &app{
		db:       db,
		store:    store,
		health:   raw,
		sites:    sites,
		clones:   clones,
		rewriter: rewriter,
	}, nil
}

func newDataAPIClient(ctx context.Context, db config.DatabaseConfig) (*rdsdata.Client, error) {
	region := db.DataAPI.Region
	if region == "" {
		region = db.IAM.Region
	}
	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	if db.IAM.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(db.IAM.AccessKeyID, db.IAM.SecretAccessKey, db.IAM.SessionToken)))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	if awsCfg.Region == "" {
		return nil, fmt.Errorf("database.data_api.region is required")
	}
	return rdsdata.NewFromConfig(awsCfg), nil
}

func (a *app) Close() {
	if a.db == nil {
		return
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
