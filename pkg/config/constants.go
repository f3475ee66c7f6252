package config

const (
	EnvPrefix = "PERKSHOP"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv              = "PERKSHOP_APP_ENV"
	EnvPort                = "PERKSHOP_APP_PORT"
	EnvRedisURL            = "PERKSHOP_REDIS_URL"
	EnvJWTSecret           = "PERKSHOP_JWT_SECRET"
	EnvJWTIssuer           = "PERKSHOP_JWT_ISSUER"
	EnvOrderServiceURL     = "PERKSHOP_ORDER_SERVICE_URL"
	EnvOrderServiceTimeout = "PERKSHOP_ORDER_SERVICE_TIMEOUT"
	EnvBudgetCacheTTL      = "PERKSHOP_BUDGET_CACHE_TTL"
	EnvInflightGuardTTL    = "PERKSHOP_INFLIGHT_GUARD_TTL"
	EnvGCPProjectID        = "PERKSHOP_GCP_PROJECT_ID"
	EnvPubSubAuditTopic    = "PERKSHOP_PUBSUB_AUDIT_TOPIC"
)
