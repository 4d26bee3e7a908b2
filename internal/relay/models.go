// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

// =============================================================================
// MODEL LISTING
// =============================================================================

// tagsPath is the fixed listing path appended to the endpoint's origin.
const tagsPath = "/api/tags"

// ListModels queries the endpoint's tags listing and returns model names
// in upstream order. The listing URL is derived from the endpoint's scheme
// and host only; any path or query on the supplied endpoint is dropped.
func (c *Client) ListModels(ctx context.Context, endpoint, apiKey string) ([]string, error) {
	tagsURL, err := tagsEndpoint(endpoint)
	if err != nil {
		return nil, err
	}

	req, err := newProxyRequest(ctx, http.MethodGet, tagsURL, apiKey, nil)
	if err != nil {
		return nil, transportError("failed to create request", err)
	}

	resp, err := newHTTPClient(c.config.ListTimeout).Do(req)
	if err != nil {
		return nil, transportError("request failed", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, readUpstreamError(resp)
	}

	var tags TagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, decodeError(err)
	}

	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}

	return names, nil
}

// tagsEndpoint rebuilds the listing URL from the endpoint's origin.
// Port numbers survive; path and query do not.
func tagsEndpoint(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", endpointError("invalid API endpoint URL", err)
	}
	if u.Host == "" {
		return "", endpointError("missing host", nil)
	}

	return u.Scheme + "://" + u.Host + tagsPath, nil
}
