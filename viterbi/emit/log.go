// Package emit provides event emission and observability for a decode run.
package emit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// LogEmitter implements Emitter by writing structured log output to a
// writer.
//
// Supports two output modes:
// - Text mode (default): human-readable key=value pairs.
// - JSON mode: one JSON object per line.
//
// Example text output:
//
//	[step_start] runID=run-001 step=0
//
// Example JSON output:
//
//	{"runID":"run-001","step":0,"msg":"step_start","meta":null}
//
// Usage:
//
//	emitter := emit.NewLogEmitter(os.Stdout, false)
//
//	f, _ := os.Create("events.jsonl")
//	defer func() { _ = f.Close() }()
//	emitter := emit.NewLogEmitter(f, true)
type LogEmitter struct {
	writer   io.Writer
	jsonMode bool
}

// NewLogEmitter creates a new LogEmitter.
//
// writer is where log output is written (e.g. os.Stdout, a file). If
// jsonMode is true, events are emitted as JSONL; otherwise as text.
func NewLogEmitter(writer io.Writer, jsonMode bool) *LogEmitter {
	if writer == nil {
		writer = os.Stdout
	}
	return &LogEmitter{
		writer:   writer,
		jsonMode: jsonMode,
	}
}

// Emit writes an event to the configured writer.
func (l *LogEmitter) Emit(event Event) {
	if l.jsonMode {
		l.emitJSON(event)
	} else {
		l.emitText(event)
	}
}

func (l *LogEmitter) emitJSON(event Event) {
	data, err := json.Marshal(struct {
		RunID string                 `json:"runID"`
		Step  int                    `json:"step"`
		Msg   string                 `json:"msg"`
		Meta  map[string]interface{} `json:"meta"`
	}{
		RunID: event.RunID,
		Step:  event.Step,
		Msg:   event.Msg,
		Meta:  event.Meta,
	})
	if err != nil {
		_, _ = fmt.Fprintf(l.writer, "{\"error\":\"failed to marshal event: %v\"}\n", err)
		return
	}
	_, _ = fmt.Fprintf(l.writer, "%s\n", data)
}

func (l *LogEmitter) emitText(event Event) {
	_, _ = fmt.Fprintf(l.writer, "[%s] runID=%s step=%d", event.Msg, event.RunID, event.Step)

	if len(event.Meta) > 0 {
		metaJSON, err := json.Marshal(event.Meta)
		if err == nil {
			_, _ = fmt.Fprintf(l.writer, " meta=%s", metaJSON)
		} else {
			_, _ = fmt.Fprintf(l.writer, " meta=%v", event.Meta)
		}
	}

	_, _ = fmt.Fprint(l.writer, "\n")
}

// EmitBatch writes each event in order. In text mode events are written
// line by line; in JSON mode as JSONL.
//
// Always attempts to write every event. Write errors are ignored, so the
// returned error is always nil.
func (l *LogEmitter) EmitBatch(_ context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}

	if l.jsonMode {
		for _, event := range events {
			l.emitJSON(event)
		}
	} else {
		for _, event := range events {
			l.emitText(event)
		}
	}

	return nil
}

// Flush is a no-op: LogEmitter writes directly to its underlying writer
// with no internal buffering. Wrap the writer in a bufio.Writer and flush
// that directly if buffering is needed.
func (l *LogEmitter) Flush(_ context.Context) error {
	return nil
}
