package content

import (
	"context"
	"strconv"
	"strings"
)

// ProbeResult is a raw view of one service response, for diagnostics.
type ProbeResult struct {
	OK         bool              `json:"ok"`
	Status     int               `json:"status"`
	StatusText string            `json:"statusText"`
	Headers    map[string]string `json:"headers"`
	BodyText   string            `json:"bodyText"`
	JSON       any               `json:"json,omitempty"`
}

// Probe fetches path from the primary base URL and reports what came back.
// Transport failures are reported in the result, never returned.
func (c *Client) Probe(ctx context.Context, path string) ProbeResult {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.http.Raw(ctx, c.base+path, nil)
	if err != nil {
		return ProbeResult{
			StatusText: err.Error(),
			Headers:    map[string]string{},
			BodyText:   err.Error(),
		}
	}

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[strings.ToLower(k)] = resp.Header.Get(k)
	}
	res := ProbeResult{
		OK:         resp.StatusCode >= 200 && resp.StatusCode < 300,
		Status:     resp.StatusCode,
		StatusText: strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode))),
		Headers:    headers,
		BodyText:   string(resp.Body),
	}
	if len(resp.Body) > 0 {
		if v, err := decode(resp.Body); err == nil {
			res.JSON = v
		}
	}
	return res
}
