package queue

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "sjsage522/estateworker/pkg/errors"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const messageSchema = `{
	"type": "object",
	"required": ["url"],
	"properties": {
		"url": {"type": "string", "pattern": "^https?://"},
		"urlNumber": {"type": "integer", "minimum": 0},
		"timestamp": {"type": "string"}
	}
}`

var schema = jsonschema.MustCompileString("message.json", messageSchema)

// Message is one listing URL to scrape.
type Message struct {
	URL       string    `json:"url"`
	URLNumber int       `json:"urlNumber,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage creates a message for the n-th URL found by the dispatcher
func NewMessage(url string, n int, now time.Time) Message {
	return Message{URL: url, URLNumber: n, Timestamp: now.UTC()}
}

// Encode returns the canonical JSON body.
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// DecodeMessage parses a queue body. Besides the canonical JSON object it
// accepts a bare URL, either as a JSON string or as raw text.
func DecodeMessage(body []byte) (Message, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return Message{}, apperrors.NewValidation("queue", "empty message body")
	}

	switch body[0] {
	case '{':
		var doc any
		if err := json.Unmarshal(body, &doc); err != nil {
			return Message{}, invalid(err)
		}
		if err := schema.Validate(doc); err != nil {
			return Message{}, invalid(err)
		}
		var m Message
		if err := json.Unmarshal(body, &m); err != nil {
			return Message{}, invalid(err)
		}
		m.URL = strings.TrimSpace(m.URL)
		return m, nil
	case '"':
		var url string
		if err := json.Unmarshal(body, &url); err != nil {
			return Message{}, invalid(err)
		}
		return bareURL(url)
	default:
		return bareURL(string(body))
	}
}

func bareURL(url string) (Message, error) {
	url = strings.TrimSpace(url)
	if err := schema.Validate(map[string]any{"url": url}); err != nil {
		return Message{}, invalid(err)
	}
	return Message{URL: url}, nil
}

func invalid(err error) error {
	return apperrors.NewValidation("queue", fmt.Sprintf("malformed message: %v", err))
}
