// Package report receives flow breadcrumbs and errors. The flows only depend
// on the Reporter interface; the host wires a queue-backed sink that the
// report worker persists.
package report

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"a55pay-sdk/types"
)

// Fields is the context attached to a report.
type Fields map[string]interface{}

type Reporter interface {
	Report(event string, fields Fields)
	ReportError(err error, fields Fields)
}

// LogReporter writes reports to the standard logger.
type LogReporter struct{}

func (LogReporter) Report(event string, fields Fields) {
	log.Printf("[Report] %s%s", event, formatFields(fields))
}

func (LogReporter) ReportError(err error, fields Fields) {
	log.Printf("[Report] error (%s): %v%s", Kind(err), err, formatFields(fields))
}

// OrLog returns r, or a LogReporter when r is nil.
func OrLog(r Reporter) Reporter {
	if r == nil {
		return LogReporter{}
	}
	return r
}

// Kind names the taxonomy kind of err ("validation", "timeout", ...).
func Kind(err error) string {
	for _, k := range []struct {
		kind error
		name string
	}{
		{types.ErrValidation, "validation"},
		{types.ErrNotFound, "not_found"},
		{types.ErrNetwork, "network"},
		{types.ErrProvider, "provider"},
		{types.ErrTimeout, "timeout"},
		{types.ErrCancellation, "cancellation"},
		{types.ErrUnexpectedStatus, "unexpected_status"},
		{context.Canceled, "cancellation"},
		{context.DeadlineExceeded, "timeout"},
	} {
		if errors.Is(err, k.kind) {
			return k.name
		}
	}
	return "internal"
}

func formatFields(fields Fields) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(" ")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(strings.TrimSpace(toString(fields[k])))
	}
	return b.String()
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.ReplaceAll(t, "\n", " ")
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return strings.ReplaceAll(fmt.Sprint(t), "\n", " ")
	}
}
