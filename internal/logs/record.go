package logs

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"contentfactory/internal/logging"
)

// Record is one decoded JSON log line.
type Record struct {
	Time      string
	Level     string
	Message   string
	Component string
	RunID     string
	Worker    string
	Fields    map[string]any
}

var reservedKeys = map[string]struct{}{
	"ts": {}, "level": {}, "msg": {}, "source": {},
	logging.FieldComponent: {}, logging.FieldRunID: {}, logging.FieldWorker: {},
}

// ParseRecord decodes a JSON log line. Non-JSON lines return ok=false.
func ParseRecord(line string) (Record, bool) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Record{}, false
	}
	rec := Record{
		Time:      stringField(raw, "ts"),
		Level:     strings.ToLower(stringField(raw, "level")),
		Message:   stringField(raw, "msg"),
		Component: stringField(raw, logging.FieldComponent),
		RunID:     stringField(raw, logging.FieldRunID),
		Worker:    stringField(raw, logging.FieldWorker),
		Fields:    map[string]any{},
	}
	for key, value := range raw {
		if _, skip := reservedKeys[key]; !skip {
			rec.Fields[key] = value
		}
	}
	return rec, true
}

func stringField(raw map[string]any, key string) string {
	value, ok := raw[key]
	if !ok || value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}

// Format renders a record on one line for terminal output.
func (r Record) Format() string {
	var b strings.Builder
	b.WriteString(r.Time)
	b.WriteByte(' ')
	b.WriteString(strings.ToUpper(r.Level))
	if r.Component != "" {
		b.WriteString(" [" + r.Component + "]")
	}
	if r.Worker != "" {
		b.WriteString(" " + r.Worker)
	}
	b.WriteString(" " + r.Message)
	if r.RunID != "" {
		b.WriteString(" run=" + r.RunID)
	}
	keys := make([]string, 0, len(r.Fields))
	for key := range r.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(&b, " %s=%v", key, r.Fields[key])
	}
	return b.String()
}

var levelRank = map[string]int{"debug": 0, "info": 1, "warn": 2, "error": 3}

// Filter narrows records. Zero fields match everything.
type Filter struct {
	RunID    string
	Worker   string
	MinLevel string
}

func (f Filter) empty() bool {
	return f.RunID == "" && f.Worker == "" && f.MinLevel == ""
}

// Match reports whether rec passes the filter.
func (f Filter) Match(rec Record) bool {
	if f.RunID != "" && rec.RunID != f.RunID {
		return false
	}
	if f.Worker != "" && rec.Worker != f.Worker {
		return false
	}
	if floor, ok := levelRank[strings.ToLower(f.MinLevel)]; ok {
		if rank, known := levelRank[rec.Level]; known && rank < floor {
			return false
		}
	}
	return true
}

// MatchLine applies the filter to a raw line. Lines that are not JSON only
// pass an empty filter.
func (f Filter) MatchLine(line string) bool {
	if f.empty() {
		return true
	}
	rec, ok := ParseRecord(line)
	return ok && f.Match(rec)
}
