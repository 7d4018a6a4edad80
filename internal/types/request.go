package types

// RequestType classifies an API call for logging and error context
type RequestType string

const (
	RequestTypeListOrSearch   RequestType = "list_or_search"
	RequestTypeMutation       RequestType = "mutation"
	RequestTypeUpload         RequestType = "upload"
	RequestTypeAuthentication RequestType = "authentication"
)

// RequestContext carries the trace information for a single API call
type RequestContext struct {
	InvolvedFileIDs   []string
	InvolvedParentIDs []string
	RequestType       RequestType
	TraceID           string
}
