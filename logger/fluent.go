package logger

import (
	"encoding/json"
	"fmt"

	"github.com/fluent/fluent-logger-golang/fluent"
)

// poster is the subset of *fluent.Fluent used by FluentWriter
type poster interface {
	Post(tag string, message interface{}) error
	Close() error
}

// FluentWriter forwards zerolog JSON events to Fluent Bit, tagged by level.
type FluentWriter struct {
	client poster
}

// NewFluentWriter connects to a Fluent Bit forward input
func NewFluentWriter(host string, port int, tagPrefix string) (*FluentWriter, error) {
	if tagPrefix == "" {
		return nil, fmt.Errorf("fluent tag prefix is required")
	}
	client, err := fluent.New(fluent.Config{
		FluentHost: host,
		FluentPort: port,
		TagPrefix:  tagPrefix,
		Async:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create fluent client: %w", err)
	}
	return &FluentWriter{client: client}, nil
}

// Write posts one event. Undecodable input is forwarded as a raw message.
func (w *FluentWriter) Write(p []byte) (int, error) {
	record := map[string]interface{}{}
	if err := json.Unmarshal(p, &record); err != nil {
		record = map[string]interface{}{"message": string(p)}
	}

	tag := "log"
	if level, ok := record["level"].(string); ok && level != "" {
		tag = level
	}

	// A lost log line must not fail the caller.
	_ = w.client.Post(tag, record)
	return len(p), nil
}

// Close flushes and closes the fluent client
func (w *FluentWriter) Close() error {
	return w.client.Close()
}
