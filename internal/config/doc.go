// Package config handles configuration loading for finmcp.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from FINMCP_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/finmcp/config.yaml
//  3. ~/.config/finmcp/config.yaml
//
// Files ending in .toml are parsed as TOML; anything else is YAML.
//
// # Environment Variables
//
// Values can reference environment variables with ${VAR_NAME}:
//
//	llm:
//	  api_key: "${OPENAI_API_KEY}"
//
// FINMCP_LLM_PROVIDER, FINMCP_LLM_MODEL, FINMCP_LLM_BASE_URL, FINMCP_LLM_API_KEY,
// FINMCP_LLM_TEMPERATURE, and FINMCP_LLM_REQUESTS_PER_MINUTE override the llm
// section after the file is read.
//
// # Configuration Sections
//
//	server:
//	  name: "finmcp"
//	  transport: "stdio"           # stdio or http
//	  http_addr: "127.0.0.1:8080"
//	  strict_handshake: false      # reject requests before initialize
//	  max_message_bytes: 1048576
//	  session_ttl: "30m"
//
//	database:
//	  driver: "sqlite"             # sqlite (pure Go) or sqlite3 (cgo)
//	  path: "~/.local/share/finmcp/finance.db"
//
//	tools:
//	  timeout: "30s"
//
//	orchestrator:
//	  stage_timeout: "2m"
//	  analysis_months: 6           # 0 means all time
//
//	llm:
//	  provider: "openai"           # openai or template
//	  model: "gpt-4o-mini"
//	  base_url: ""
//	  api_key: "${OPENAI_API_KEY}"
//	  temperature: 0.7
//	  requests_per_minute: 60
//	  timeout: "60s"
//
//	logging:
//	  level: "info"                # debug, info, warn, error
//	  format: "text"               # text, json
//
//	metrics:
//	  enabled: true
//	  path: "/metrics"
//	  addr: "127.0.0.1:9090"       # stdio transport only
//
// Only database.path is required. Load applies defaults for everything else
// and then validates the result.
package config
