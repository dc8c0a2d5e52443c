package httpserver

const (
	ErrInvalidJSON = "invalid json"
	ErrMissingID   = "missing id"
	ErrDependency  = "dependency error"
	ErrNotFound    = "not found"
	ErrBadForm     = "bad form"
	ErrBadCSV      = "bad csv"
)
