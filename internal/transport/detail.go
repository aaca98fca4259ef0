package transport

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const maxDetailLen = 200

// errorDetail extracts a short human-readable reason from an error response.
// Gateways in front of the CRM often answer with HTML pages, so their title or
// first heading is used instead of the raw markup.
func errorDetail(resp *Response) string {
	if resp == nil || len(resp.Body) == 0 || resp.StatusCode < 400 {
		return ""
	}

	contentType := resp.Header.Get("Content-Type")
	switch {
	case strings.Contains(contentType, "html"):
		return truncate(htmlDetail(resp.Body))
	case strings.Contains(contentType, "json"):
		if msg := jsonDetail(resp.Body); msg != "" {
			return truncate(msg)
		}
	}
	return truncate(strings.TrimSpace(string(resp.Body)))
}

func htmlDetail(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	for _, sel := range []string{"title", "h1"} {
		if text := strings.TrimSpace(doc.Find(sel).First().Text()); text != "" {
			return strings.Join(strings.Fields(text), " ")
		}
	}
	return ""
}

// jsonDetail understands the common {"message": ...} and {"error": ...} shapes.
func jsonDetail(body []byte) string {
	var payload struct {
		Message json.RawMessage `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	for _, raw := range []json.RawMessage{payload.Message, payload.Error} {
		if len(raw) == 0 {
			continue
		}
		var s string
		if json.Unmarshal(raw, &s) == nil {
			if s != "" {
				return s
			}
			continue
		}
		var list []string
		if json.Unmarshal(raw, &list) == nil && len(list) > 0 {
			return strings.Join(list, "; ")
		}
	}
	return ""
}

func truncate(s string) string {
	if len(s) <= maxDetailLen {
		return s
	}
	return s[:maxDetailLen] + "..."
}
