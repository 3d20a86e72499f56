// Package config loads the service configuration from YAML.
//
// Values are layered: defaults, then the file, then a .env file read with
// godotenv, then DEVICEHEALTH_* environment variables such as
// DEVICEHEALTH_DATABASE_DSN or DEVICEHEALTH_SMTP_PASSWORD. Credentials
// belong in the environment rather than the file.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//		return err
//	}
//
// Validate collects every problem before failing, so a bad file is fixed
// in one pass.
package config
