// Package config handles loading and validating dccutils server configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with DCCUTILS_* environment variables
//   - Validation of every section in one pass
//   - Default value handling (the server runs with no file at all)
//
// Security Considerations:
//   - MQTT and InfluxDB credentials should be set via environment variables
//   - The HTTP surface is unauthenticated; bind api.host to 127.0.0.1 when
//     the machine is shared
//
// Usage:
//
//	cfg, err := config.Load(os.Getenv(config.EnvConfigPath))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.API.PortRange.Start)
package config
