// Package exchange holds the REST clients for the upstream market data
// providers. Every client reports failures through the apierr taxonomy so
// retry behaviour stays uniform across providers.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"liqflow/internal/apierr"
)

// getJSON performs a GET request and decodes the JSON body into out.
// Non-200 responses classify through the status code; transport failures
// classify as transient.
func getJSON(ctx context.Context, client *http.Client, endpoint, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return apierr.Wrap(endpoint, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return apierr.Wrap(endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apierr.FromStatus(endpoint, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

// parseFloat converts the string-encoded numbers most exchange APIs return.
func parseFloat(endpoint, field, value string) (float64, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s field %s %q: %w", endpoint, field, value, err)
	}
	return f, nil
}

// asFloat coerces a value from a mixed-type JSON array. Kline rows mix
// numbers and string-encoded numbers in one array.
func asFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
