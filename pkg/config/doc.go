// Package config loads application configuration from environment
// variables with sensible defaults for all settings.
//
// # Configuration Structure
//
// Server settings:
//
//	CRM_HOST="0.0.0.0"
//	CRM_PORT="8080"
//	CRM_HEALTH_PORT="9090"
//	CRM_READ_TIMEOUT="15s"
//	CRM_WRITE_TIMEOUT="15s"
//
// Storage settings:
//
//	CRM_POSTGRES_URL="postgres://localhost/crm"
//	CRM_POSTGRES_MAX_CONNS="20"
//	CRM_S3_ENDPOINT="https://s3.eu-central-1.amazonaws.com"
//	CRM_S3_BUCKET="crm-documents"
//	CRM_REDIS_URL="redis://localhost:6379"
//	CRM_CACHE_ENABLED="true"
//
// Mail ingestion settings (crm-ingest):
//
//	CRM_IMAP_SERVER="imap.yandex.ru:993"
//	CRM_IMAP_USERNAME="intake@example.com"
//	CRM_IMAP_PASSWORD="..."
//	CRM_IMAP_MAILBOX="INBOX"
//	CRM_INGEST_SCHEDULE="0 */2 * * *"
//
// Bot settings (crm-bot):
//
//	CRM_TELEGRAM_TOKEN="..."
//	CRM_NOTIFY_SCHEDULE="0 8 * * *"
//	CRM_NOTIFY_WINDOW="24h"
//
// Observability settings:
//
//	CRM_LOG_LEVEL="info"
//	CRM_METRICS_ENABLED="true"
//	CRM_OTEL_ENABLED="false"
//	CRM_OTEL_ENDPOINT="localhost:4317"
package config
