// Package mailapi is the client for the external transactional-email HTTP
// API. One POST per BCC batch; success is HTTP 200 plus status=="success"
// in the response body, any other combination is a failure.
package mailapi

import "fmt"

// Attachment is a file on the wire: filename plus base64-encoded content.
type Attachment struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// SendRequest is the JSON payload for one outbound send. All recipients are
// addressed together as one BCC group; nothing is personalized per address.
type SendRequest struct {
	Subject     string       `json:"subject"`
	Body        string       `json:"body"`
	ReplyTo     string       `json:"replyTo"`
	SenderName  string       `json:"senderName"`
	Recipients  []string     `json:"recipients"`
	Attachments []Attachment `json:"attachments"`
}

// sendResponse is the API's response envelope.
type sendResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// APIError means the API was reached but refused the send: a non-success
// HTTP status, or a 200 whose body did not report status "success".
type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("mail API returned status %q (http %d)", e.Status, e.StatusCode)
	}
	return fmt.Sprintf("mail API returned http %d: %s", e.StatusCode, e.Body)
}

// TransportError means the request never got a usable response: marshal
// failures, connection errors, timeouts.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("mail API transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
