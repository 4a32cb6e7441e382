package strategy

import "fmt"

type CacheStatusStatus string

const (
	StatusHit CacheStatusStatus = "hit"
	StatusFwd CacheStatusStatus = "fwd"
)

type FwdReason string

const (
	// The store did not contain a response for the request.
	FwdReasonUriMiss FwdReason = "uri-miss"

	// The strategy always asks the network first.
	FwdReasonRequest FwdReason = "request"
)

const (
	// A stored response was used because the network failed.
	DetailNetworkError = "network-error"

	// The offline page was used because the network failed and nothing was stored for the request.
	DetailOffline = "offline"
)

// Status describes how a request was resolved.
// Its string form follows the syntax of the Cache-Status header field.
type Status struct {
	Status    CacheStatusStatus
	FwdReason FwdReason
	Stored    bool
	Detail    string
}

func (cs *Status) Hit() {
	cs.Status = StatusHit
	cs.FwdReason = ""
}

func (cs *Status) Forward(reason FwdReason) {
	cs.Status = StatusFwd
	cs.FwdReason = reason
}

// Source returns a short label for metrics and logs: cache, network or offline.
func (cs Status) Source() string {
	switch {
	case cs.Detail == DetailOffline:
		return "offline"
	case cs.Status == StatusHit:
		return "cache"
	default:
		return "network"
	}
}

func (cs Status) String() string {
	status := fmt.Sprintf("Offline-Worker; %s", cs.Status)
	if cs.Status == StatusFwd && cs.FwdReason != "" {
		status = fmt.Sprintf("%s=%s", status, cs.FwdReason)
	}
	if cs.Stored {
		status = status + "; stored"
	}
	if cs.Detail != "" {
		status = status + "; detail=" + cs.Detail
	}
	return status
}
