// Package config provides configuration management for the overlay engine.
//
// It utilizes Viper for loading configuration from environment variables and an
// optional .env file. Defaults live next to each partial configuration as `default`
// struct tags and are registered through reflection, so every key is reachable from
// the environment (e.g. PRICING_SLEEP_MS -> pricing.sleep_ms).
//
// # Configuration Structure
//
//   - Server: HTTP server settings (port, API key)
//   - Database: MySQL (or SQLite) connection details
//   - Storage: S3/MinIO credentials used by the overlay archive
//   - Log: Logging level and format
//   - Market: external market API endpoint, batch cap and retry policy
//   - Pricing: tier staleness intervals and refresh pacing
//   - Overlay: worker pool, writer coalescing and expansion depth
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Overlay.Workers)
package config
