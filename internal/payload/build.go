package payload

import "encoding/json"

// BuildInput carries everything the request is assembled from. Gathering
// the inputs (environment, repository reads) happens before; Build itself
// does no I/O.
type BuildInput struct {
	DefaultBranch string
	Config        json.RawMessage
	Changes       []Change
	PushOptions   []string
	Signature     Signature
	Metadata      Metadata
}

// Build assembles the request body. Changes keep their input order.
func Build(in BuildInput) *Request {
	return &Request{
		Version:       Version,
		DefaultBranch: in.DefaultBranch,
		Config:        in.Config,
		Changes:       in.Changes,
		PushOptions:   in.PushOptions,
		Signature:     in.Signature,
		Metadata:      in.Metadata,
	}
}
