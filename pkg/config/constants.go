package config

// EnvPrefix namespaces every environment variable the service reads.
const EnvPrefix = "STRIDE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "STRIDE_DB_DSN"
	EnvDBHost = "STRIDE_DB_HOST"
	EnvDBUser = "STRIDE_DB_USER"
	EnvDBName = "STRIDE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
