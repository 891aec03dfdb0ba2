package types

type ContextKey string

const (
	ContextKeyGenerationID  ContextKey = "generation_id"
	ContextKeyRequestSource ContextKey = "request_source"
	ContextKeyStage         ContextKey = "stage"
)
