package config

import "strings"

// Environment names accepted in server.environment
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// IsDevelopment reports whether the server runs with development defaults
func (s ServerConfig) IsDevelopment() bool {
	return strings.EqualFold(s.Environment, EnvDevelopment)
}

// IsProductionLike reports whether production requirements apply (staging or production)
func (s ServerConfig) IsProductionLike() bool {
	return isProductionLike(s.Environment)
}

func isProductionLike(environment string) bool {
	env := strings.ToLower(environment)
	return env == EnvStaging || env == EnvProduction
}
