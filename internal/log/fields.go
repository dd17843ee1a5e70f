package log

// Common field names for structured logging
const (
	FieldComponent = "component"
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status_code"
	FieldDuration  = "duration_ms"
	FieldError     = "error"
	FieldOperation = "operation"
	FieldResource  = "resource"
	FieldUserID    = "user_id"
	FieldEntityID  = "entity_id"
	FieldCacheKey  = "cache_key"
	FieldBackend   = "backend"
	FieldQueue     = "queue"
	FieldExchange  = "exchange"
	FieldSheetsRef = "sheets_ref"
)

// Components defines standard component names
const (
	ComponentApp      = "app"
	ComponentAPI      = "api"
	ComponentSession  = "session"
	ComponentFinance  = "finance"
	ComponentState    = "state"
	ComponentCache    = "cache"
	ComponentNotify   = "notify"
	ComponentExport   = "export"
	ComponentCLI      = "cli"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpLogin    = "login"
	OpLogout   = "logout"
	OpRegister = "register"
	OpFetch    = "fetch"
	OpExport   = "export"
	OpPublish  = "publish"
	OpCleanup  = "cleanup"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)
