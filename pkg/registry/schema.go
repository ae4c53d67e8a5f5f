// pkg/registry/schema.go
package registry

// EndpointRegistry is the catalog of backend operations the portal calls.
type EndpointRegistry struct {
	Version     string     `json:"version"`
	LastUpdated string     `json:"lastUpdated"`
	Endpoints   []Endpoint `json:"endpoints"`
}

// Endpoint describes one backend operation. Path, CacheKey and Invalidates are
// templates whose {name} placeholders are filled from the call parameters;
// Query names the parameters sent in the query string.
type Endpoint struct {
	ID             string                 `json:"id"`
	DisplayName    string                 `json:"displayName"`
	Category       string                 `json:"category"`
	Method         string                 `json:"method"`
	Path           string                 `json:"path"`
	Query          []string               `json:"query,omitempty"`
	Upload         bool                   `json:"upload,omitempty"`
	Retries        int                    `json:"retries"`
	CacheKey       string                 `json:"cacheKey,omitempty"`
	Invalidates    []string               `json:"invalidates,omitempty"`
	FailureMessage string                 `json:"failureMessage"`
	ResponseSchema map[string]interface{} `json:"responseSchema"`
}

// IsMutation reports whether the endpoint changes backend state.
func (e Endpoint) IsMutation() bool {
	return e.Method != "GET"
}
