package httpserver

import (
	"strconv"
	"time"

	"github.com/warehoused/warehoused/internal/model"
)

// envelope is the Jaeger-compatible response shape for /api/traces (§6).
type envelope struct {
	Data   interface{} `json:"data"`
	Total  int         `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
	Errors interface{} `json:"errors"`
}

func newEnvelope(data interface{}, total, limit, offset int) envelope {
	return envelope{Data: data, Total: total, Limit: limit, Offset: offset, Errors: nil}
}

type tagDTO struct {
	Key   string      `json:"key"`
	Type  string      `json:"type"`
	Value interface{} `json:"value"`
}

func tagsToDTO(tags map[string]model.Value) []tagDTO {
	out := make([]tagDTO, 0, len(tags))
	for k, v := range tags {
		if (k == model.TagBusy || k == model.TagIdle) && v.Kind == model.KindU64 {
			out = append(out, tagDTO{Key: k, Type: v.TypeName(), Value: model.FormatTiming(v.U64)})
			continue
		}
		out = append(out, tagDTO{Key: k, Type: v.TypeName(), Value: valueToJSON(v)})
	}
	return out
}

func valueToJSON(v model.Value) interface{} {
	switch v.Kind {
	case model.KindStr:
		return v.Str
	case model.KindU64:
		return v.U64
	case model.KindI64:
		return v.I64
	case model.KindBool:
		return v.Bool
	default:
		return nil
	}
}

type processDTO struct {
	ServiceName string   `json:"serviceName"`
	Tags        []tagDTO `json:"tags"`
}

type spanDTO struct {
	SpanID        string   `json:"spanID"`
	TraceID       string   `json:"traceID"`
	ParentSpanID  string   `json:"parentSpanID,omitempty"`
	OperationName string   `json:"operationName"`
	ProcessID     string   `json:"processID"`
	StartTime     int64    `json:"startTime"`
	Duration      int64    `json:"duration"`
	Tags          []tagDTO `json:"tags"`
}

type traceDTO struct {
	TraceID   string                `json:"traceID"`
	Spans     []spanDTO             `json:"spans"`
	Processes map[string]processDTO `json:"processes"`
}

func traceToDTO(t *model.Trace) traceDTO {
	now := time.Now()
	out := traceDTO{
		TraceID:   strconv.FormatUint(t.ID, 10),
		Spans:     make([]spanDTO, 0, len(t.Spans)),
		Processes: make(map[string]processDTO, len(t.Processes)),
	}
	for _, s := range t.Spans {
		d := spanDTO{
			SpanID:        strconv.FormatUint(s.ID, 10),
			TraceID:       strconv.FormatUint(s.TraceID, 10),
			OperationName: s.Name,
			ProcessID:     s.ProcessID,
			Tags:          tagsToDTO(s.Tags),
		}
		if s.ParentID != nil {
			d.ParentSpanID = strconv.FormatUint(*s.ParentID, 10)
		}
		if s.Start != nil {
			d.StartTime = s.Start.UnixMicro()
			d.Duration = s.Duration(now).Microseconds()
		}
		out.Spans = append(out.Spans, d)
	}
	for id, p := range t.Processes {
		out.Processes[id] = processDTO{ServiceName: p.ServiceName, Tags: tagsToDTO(p.Tags)}
	}
	return out
}
