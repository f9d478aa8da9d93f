package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"taifexflow/config"
	"taifexflow/internal/pipeline"
	"taifexflow/internal/pipeline/fetcher"
	"taifexflow/internal/writer"
	"taifexflow/logger"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	pipelineName := flag.String("pipeline", "all", "Pipeline to run: institutional, pc_ratio or all")

	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.SetRunID(uuid.New().String())
	log.WithFields(logger.Fields{
		"service": cfg.Taifexflow.Name,
		"version": cfg.Taifexflow.Version,
	}).Info("starting taifexflow")

	if cfg.Metrics.CloudWatch.Enabled {
		logger.InitCloudWatch(cfg.Metrics.CloudWatch.Region, cfg.Metrics.CloudWatch.Namespace, cfg.Metrics.CloudWatch.Dashboard)
	}

	ctx := context.Background()

	var specs []pipeline.Spec
	switch *pipelineName {
	case "institutional":
		specs = []pipeline.Spec{pipeline.InstitutionalSpec(cfg)}
	case "pc_ratio":
		specs = []pipeline.Spec{pipeline.PCRatioSpec(cfg)}
	case "all":
		specs = []pipeline.Spec{pipeline.InstitutionalSpec(cfg), pipeline.PCRatioSpec(cfg)}
	default:
		log.WithFields(logger.Fields{"pipeline": *pipelineName}).Error("unknown pipeline")
		os.Exit(1)
	}

	var mirror *writer.S3Mirror
	if cfg.Storage.S3.Enabled {
		mirror, err = writer.NewS3Mirror(ctx, cfg.Storage.S3, log)
		if err != nil {
			log.WithError(err).Error("failed to create S3 mirror")
			os.Exit(1)
		}
	}

	client := fetcher.NewClient(cfg.HTTP, log)
	artifacts := writer.NewArtifactWriter(cfg.Storage.DataDir, mirror, log)

	failed := false
	for _, spec := range specs {
		p := pipeline.New(spec, client, artifacts, log)

		path, err := p.Run(ctx)
		if err != nil {
			log.WithComponent(spec.Category).WithError(err).Error("pipeline failed")
			failed = true
			continue
		}

		log.WithComponent(spec.Category).WithFields(logger.Fields{"path": path}).Info("pipeline completed")

		// The only machine-readable success signal, consumed by the
		// external trigger.
		fmt.Printf("RESULT_FILE=%s\n", path)
	}

	logger.RunReport(ctx, log)

	if failed {
		os.Exit(1)
	}
}
