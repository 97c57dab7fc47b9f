package transfer

import "net/http"

// Method selects the HTTP verb for a transfer.
type Method int

const (
	MethodGet Method = iota
	MethodPost
)

// Status reports how a transfer concluded. Completions receive the full
// response body only for StatusOK; otherwise the body is empty.
type Status int

const (
	// StatusOK means a 2xx response whose body was fully read.
	StatusOK Status = iota
	// StatusTransportError covers connect, read and protocol failures.
	StatusTransportError
	// StatusHTTPError means the server replied with a non-2xx status.
	StatusHTTPError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusTransportError:
		return "transport_error"
	case StatusHTTPError:
		return "http_error"
	}
	return "unknown"
}

// HeaderSet is an immutable named set of request headers shared across
// transfers. Adapters reference header-sets rather than building headers per
// request.
type HeaderSet struct {
	name   string
	header http.Header
}

// NewHeaderSet builds a header-set from key/value pairs.
func NewHeaderSet(name string, pairs ...string) *HeaderSet {
	h := http.Header{}
	for i := 0; i+1 < len(pairs); i += 2 {
		h.Add(pairs[i], pairs[i+1])
	}
	return &HeaderSet{name: name, header: h}
}

func (h *HeaderSet) Name() string {
	return h.name
}

// apply copies the set into a request's headers.
func (h *HeaderSet) apply(req *http.Request) {
	for k, vs := range h.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
}

// DefaultHeaders is the header-set used by plain HTML endpoints.
var DefaultHeaders = NewHeaderSet("default")

// JSONAPIHeaders is used by retailers whose search endpoint is a JSON API.
var JSONAPIHeaders = NewHeaderSet("json-api", "Accept", "application/json, text/plain")

// Options carries the per-transfer request parameters.
type Options struct {
	Method  Method
	Body    string
	Headers *HeaderSet
}

// headerSet resolves the effective header-set, defaulting when unset.
func (o Options) headerSet() *HeaderSet {
	if o.Headers == nil {
		return DefaultHeaders
	}
	return o.Headers
}
