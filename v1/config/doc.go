// Package config loads the vecmigrate application configuration.
//
// Sources are applied in order: a .env file, a YAML file decoded over Default(), and
// environment variables named by the env tags of the section structs. Every tag also
// accepts a VECMIGRATE_ prefixed variable, which wins over the bare name:
//
//	VECMIGRATE_QDRANT_ENDPOINT=qdrant.internal
//	TRANSFER_MAX_BATCH_SIZE=50
//	OPENAI_APIKEY=sk-...
//
// The embedding and generative clients are enabled when they have an API key. A key
// missing from their section falls back to OPENAI_APIKEY, or COHERE_APIKEY for
// endpoints on cohere.ai.
package config
