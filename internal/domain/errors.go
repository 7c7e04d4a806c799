package domain

import "fmt"

// AppError is the base domain error type.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Cause   error  `json:"-"`
	// Context carries structured request fields rendered as request_context
	// in the HTTP error body when present.
	Context map[string]string `json:"-"`
	// Retryable marks transient failures the orchestrator may retry.
	Retryable bool `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// Standard domain error constructors.

func ErrNotFound(entity, id string) *AppError {
	return &AppError{Code: "NOT_FOUND", Message: fmt.Sprintf("%s %s not found", entity, id), Status: 404}
}

func ErrValidation(msg string) *AppError {
	return &AppError{Code: "VALIDATION_ERROR", Message: msg, Status: 400}
}

func ErrUnauthorized(msg string) *AppError {
	return &AppError{Code: "UNAUTHORIZED", Message: msg, Status: 401}
}

func ErrInternal(msg string, cause error) *AppError {
	return &AppError{Code: "INTERNAL_ERROR", Message: msg, Status: 500, Cause: cause}
}

// ErrGameNotCompleted is returned by the settlement engine while the score
// provider has no final score. Retryable on the next sweep.
func ErrGameNotCompleted(eventID string) *AppError {
	return &AppError{Code: "GAME_NOT_COMPLETED", Message: fmt.Sprintf("event %s has no final score yet", eventID), Status: 409, Retryable: true}
}

// ErrMissingProviderID means the event has no provider event id mapped.
// Grading cannot proceed; an operator must run the backfill tool.
func ErrMissingProviderID(eventID, provider string) *AppError {
	return &AppError{Code: "PROVIDER_ID_MISSING", Message: fmt.Sprintf("event %s has no %s event id", eventID, provider), Status: 422}
}

// ErrMappingDrift freezes grading for the event until operator reconciliation.
func ErrMappingDrift(eventID, detail string) *AppError {
	return &AppError{Code: "MAPPING_DRIFT", Message: fmt.Sprintf("provider mapping drift on event %s: %s", eventID, detail), Status: 409}
}

func ErrIntegrityViolation(detail string) *AppError {
	return &AppError{Code: "INTEGRITY_VIOLATION", Message: detail, Status: 422}
}

// ErrMarketContractMismatch rejects an invalid (sport, market, settlement)
// combination at the HTTP boundary. It never reaches the engine.
func ErrMarketContractMismatch(sport, marketType, settlement string) *AppError {
	return &AppError{
		Code:    "MARKET_CONTRACT_MISMATCH",
		Message: fmt.Sprintf("sport %s does not support market_type=%s with market_settlement=%s", sport, marketType, settlement),
		Status:  409,
		Context: map[string]string{
			"sport":             sport,
			"market_type":       marketType,
			"market_settlement": settlement,
		},
	}
}

// ErrWriterUnauthorized indicates a programming defect: a module attempted
// to write a collection it is not listed for. The worker aborts.
func ErrWriterUnauthorized(caller, collection string) *AppError {
	return &AppError{Code: "WRITER_UNAUTHORIZED", Message: fmt.Sprintf("module %q may not write collection %q", caller, collection), Status: 500}
}

func ErrSimTimeout(eventID string) *AppError {
	return &AppError{Code: "SIM_TIMEOUT", Message: fmt.Sprintf("simulation for event %s exceeded wall-clock ceiling", eventID), Status: 504}
}

func ErrStaleSnapshot(eventID string) *AppError {
	return &AppError{Code: "STALE_SNAPSHOT", Message: fmt.Sprintf("no fresh market snapshot for event %s", eventID), Status: 422}
}

// ErrDuplicateIdempotency is a successful no-op: the record already exists.
func ErrDuplicateIdempotency(key string) *AppError {
	return &AppError{Code: "DUPLICATE_IDEMPOTENCY", Message: fmt.Sprintf("record already graded under key %s", key), Status: 200}
}

func ErrTransportTimeout(target string, cause error) *AppError {
	return &AppError{Code: "TRANSPORT_TIMEOUT", Message: fmt.Sprintf("call to %s timed out", target), Status: 504, Cause: cause, Retryable: true}
}

// ErrConfigInvalid is fatal at startup.
func ErrConfigInvalid(msg string) *AppError {
	return &AppError{Code: "CONFIG_INVALID", Message: msg, Status: 500}
}
