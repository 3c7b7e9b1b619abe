package log

// Common field names for structured logging
const (
	FieldComponent = "component"
	FieldOperation = "operation"
	FieldError     = "error"
	FieldID        = "id"
	FieldAmount    = "amount"
	FieldCategory  = "category"
	FieldPath      = "path"
	FieldBackend   = "backend"
)

// Components defines standard component names
const (
	ComponentApp        = "app"
	ComponentExpense    = "expense"
	ComponentStorage    = "storage"
	ComponentBackend    = "backend"
	ComponentCategories = "categories"
)

// Operations defines standard operation names
const (
	OpLoad   = "load"
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)
