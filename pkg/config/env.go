package config

import "strings"

// Deployment environments, set with MEDFLOW_SERVER_ENVIRONMENT.
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// IsProductionLike reports whether env is staging or production, where
// localhost endpoints and the memory store are refused.
func IsProductionLike(env string) bool {
	switch strings.ToLower(env) {
	case EnvStaging, EnvProduction:
		return true
	}
	return false
}
