// Package config loads client configuration from YAML files, with
// ${VAR_NAME} environment variable expansion and Go duration strings for
// timing fields. Missing fields fall back to built-in defaults, so an empty
// or absent file yields a usable config.
package config
