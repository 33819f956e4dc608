// Package config handles loading and validating Sentinel Core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Loading a local .env file when one exists
//   - Overriding with SENTINEL_* environment variables
//   - Validation of required fields
//
// Security Considerations:
//   - Sensitive values (JWT secret, DSN, broker passwords) should be set via environment variables
//   - The config file should have restricted permissions (0600)
//   - Startup fails when the JWT secret is missing or shorter than 32 characters
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.API.Port)
package config
