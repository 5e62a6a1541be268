package protocol

import (
	"encoding/json"
	"fmt"
)

// Response is the payload returned by the thread's HTTP endpoints.
// Message is only present on a successful message creation, Messages on a
// history listing.
type Response struct {
	Success  bool      `json:"success"`
	Message  *Message  `json:"message,omitempty"`
	Messages []Message `json:"messages,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// Encode encodes the response as JSON
func (r *Response) Encode() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}
	return data, nil
}

// Decode decodes a JSON response body.
// A successful response that carries a message must carry a valid one.
func (r *Response) Decode(data []byte) error {
	if err := json.Unmarshal(data, r); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if r.Message != nil {
		if r.Success {
			if err := r.Message.Validate(); err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}
		}
		r.Message.normalize()
	}
	for i := range r.Messages {
		if err := r.Messages[i].Validate(); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		r.Messages[i].normalize()
	}
	return nil
}
