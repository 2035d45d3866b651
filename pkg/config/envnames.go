package config

// EnvPrefix is passed to envconfig; individual vars carry the full
// FROSTLINE_ prefix in their tags so the prefix itself stays empty.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

// Environment variable names referenced outside struct tags (tests, error
// messages, tooling).
const (
	EnvAppEnv     = "FROSTLINE_APP_ENV"
	EnvPort       = "FROSTLINE_APP_PORT"
	EnvDBDSN      = "FROSTLINE_DB_DSN"
	EnvDBHost     = "FROSTLINE_DB_HOST"
	EnvDBUser     = "FROSTLINE_DB_USER"
	EnvDBName     = "FROSTLINE_DB_NAME"
	EnvRedisURL   = "FROSTLINE_REDIS_URL"
	EnvJWTSecret  = "FROSTLINE_JWT_SECRET"
	EnvJWTIssuer  = "FROSTLINE_JWT_ISSUER"
	EnvJWTExpMins = "FROSTLINE_JWT_EXPIRATION_MINUTES"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
