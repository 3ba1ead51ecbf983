package rpcserver

import "github.com/warehoused/warehoused/internal/model"

// registerProcessRequest is `{process:{name,tags:map<string,Value>}}` (§6).
type registerProcessRequest struct {
	Process *model.WireProcess `json:"process"`
}

type registerProcessResponse struct {
	ProcessID string `json:"process_id"`
}

// recordSpanRequest is `{span:<wire-span>}` (§6).
type recordSpanRequest struct {
	Span *model.WireSpan `json:"span"`
}

type recordSpanResponse struct{}

// recordEventRequest is `{log:<wire-log>}` (§6). The RPC method name
// (RecordEvent) differs from the Go type it carries (WireLog) because
// the spec names the call after what the client observed, not what the
// warehouse stores it as.
type recordEventRequest struct {
	Log *model.WireLog `json:"log"`
}

type recordEventResponse struct{}
