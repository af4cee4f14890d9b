package storage

import "os"

// Mode selects the durable backend for ledgers and audit entries
type Mode string

const (
	ModeFile        Mode = "file"
	ModeDynamoLocal Mode = "dynamo-local"
	ModeDynamoAWS   Mode = "dynamo-aws"
)

// Config holds storage configuration
type Config struct {
	Mode    Mode
	DataDir string // file mode

	Endpoint         string // dynamo-local mode
	Region           string
	AgentEventsTable string
	WrapUpsTable     string
	AuditTable       string
	CallRecordsTable string
}

// LoadConfig loads storage config from environment
func LoadConfig() Config {
	mode := Mode(getEnv("STORE_MODE", string(ModeFile)))
	if mode != ModeDynamoLocal && mode != ModeDynamoAWS {
		mode = ModeFile
	}

	return Config{
		Mode:             mode,
		DataDir:          getEnv("DATA_DIR", "./data"),
		Endpoint:         getEnv("DYNAMO_ENDPOINT", "http://localhost:8000"),
		Region:           getEnv("DYNAMO_REGION", "eu-central-1"),
		AgentEventsTable: getEnv("DYNAMO_AGENT_EVENTS_TABLE", "callctl-agent-events"),
		WrapUpsTable:     getEnv("DYNAMO_WRAPUPS_TABLE", "callctl-wrapups"),
		AuditTable:       getEnv("DYNAMO_AUDIT_TABLE", "callctl-supervisor-audit"),
		CallRecordsTable: getEnv("DYNAMO_CALL_RECORDS_TABLE", "callctl-call-records"),
	}
}

// Dynamo reports whether the config selects a DynamoDB backend
func (c Config) Dynamo() bool {
	return c.Mode == ModeDynamoLocal || c.Mode == ModeDynamoAWS
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
