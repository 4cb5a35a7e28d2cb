package viscull

// Error types attached to errors returned by the tree and the culler.
// Inspect them with errors.Type from github.com/aukilabs/go-tooling/pkg/errors.
const (
	ErrTypeEntityExists      = "viscull_entity_exists"
	ErrTypeEntityMissing     = "viscull_entity_missing"
	ErrTypeUpdateRejected    = "viscull_update_rejected"
	ErrTypeNotRegistered     = "viscull_not_registered"
	ErrTypeAlreadyRegistered = "viscull_already_registered"
	ErrTypeInvalidConfig     = "viscull_invalid_config"
	ErrTypeQueryAllocation   = "viscull_query_allocation"
)
