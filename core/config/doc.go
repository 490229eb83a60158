// Package config provides configuration management for the bookmark reconciler.
//
// It utilizes Viper for loading configuration from environment variables and an
// optional .env file. Defaults come from the `default` struct tags of each section.
//
// # Configuration Structure
//
//   - Server: HTTP port, API key, body limit, metrics endpoint
//   - Database: bookmark store connection (mysql or sqlite)
//   - Storage: S3/MinIO credentials and the snapshot bucket
//   - Log: logging level and format
//   - Reconcile: batch size, concurrency, move collapse threshold, per-operation timeout
//   - Apply: backups before apply, report uploads, convergence passes
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Reconcile.BatchSize)
package config
