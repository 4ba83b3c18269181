// Package config loads orgaccess configuration.
//
// Values are layered, each layer overriding the previous one:
//
//  1. built-in defaults
//  2. an optional YAML file
//  3. a .env file in the working directory, loaded into the environment if present
//  4. ORGACCESS_* environment variables
//
// # Usage
//
//	cfg, err := config.Load("orgaccess.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
// # Environment Variables
//
//	ORGACCESS_HOST, ORGACCESS_PORT            listen address
//	ORGACCESS_DATABASE_URL                    PostgreSQL connection string
//	ORGACCESS_DB_MAX_CONNS                    connection pool size
//	ORGACCESS_CACHE_BACKEND                   none, lru or redis
//	ORGACCESS_CACHE_TTL                       entry lifetime, e.g. 5m
//	ORGACCESS_REDIS_URL                       redis://host:6379/0
//	ORGACCESS_USER_FIELDS                     comma separated optional user columns, or "auto"
//	ORGACCESS_USER_FIELDS_REFRESH             cron schedule for re-detecting user columns
//	ORGACCESS_LOG_LEVEL, ORGACCESS_LOG_FORMAT logging
//	ORGACCESS_OTEL_ENABLED, ORGACCESS_OTEL_ENDPOINT
package config
