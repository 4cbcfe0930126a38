package router

import "strings"

// RequestType is the declared kind of an inbound request.
type RequestType string

const (
	TypeText     RequestType = "text"
	TypeImage    RequestType = "image"
	TypeDocument RequestType = "document"
	TypeAdapter  RequestType = "adapter"
)

// ParseType maps the wire type onto a RequestType; unknown values are text.
func ParseType(s string) RequestType {
	switch RequestType(strings.ToLower(strings.TrimSpace(s))) {
	case TypeImage:
		return TypeImage
	case TypeDocument:
		return TypeDocument
	case TypeAdapter:
		return TypeAdapter
	default:
		return TypeText
	}
}

// Classification is derived once per request.
type Classification struct {
	Type RequestType
}

// Branch is the backend path chosen for a request.
type Branch string

const (
	BranchAdapter   Branch = "adapter"
	BranchDocument  Branch = "document"
	BranchRetrieval Branch = "retrieval"
	BranchImage     Branch = "image"
	BranchText      Branch = "text"
)

// Inputs are everything branch selection depends on.
type Inputs struct {
	HasAdapterID     bool
	AdapterReady     bool
	Type             RequestType
	HasExtractedText bool
	RetrievalWanted  bool
}

// Select picks the branch for a request. Earlier rules always win.
func Select(in Inputs) Branch {
	switch {
	case in.HasAdapterID && in.AdapterReady:
		return BranchAdapter
	case in.Type == TypeDocument && in.HasExtractedText:
		return BranchDocument
	case in.RetrievalWanted:
		return BranchRetrieval
	case in.Type == TypeImage:
		return BranchImage
	default:
		return BranchText
	}
}
