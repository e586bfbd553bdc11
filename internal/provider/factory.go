package provider

// New picks the pipeline implementation for this process. Mock mode is
// explicit opt-in; a real deployment without an API key fails here
// rather than on the first request.
func New(mock bool, baseURL, apiKey string) (Client, error) {
	if mock {
		return NewMock(), nil
	}
	return NewDashScope(baseURL, apiKey)
}
