package types

type RequestSendText struct {
	SessionID string `json:"session_id"`
	Number    string `json:"number"`
	Message   string `json:"message"`
}

type RequestSendImage struct {
	SessionID string `json:"session_id"`
	Number    string `json:"number"`
	ImageURL  string `json:"image_url"`
	Caption   string `json:"caption"`
}

type RequestSendBulk struct {
	SessionID string   `json:"session_id"`
	Numbers   []string `json:"numbers"`
	Message   string   `json:"message"`
	ImageURL  string   `json:"image_url"`
	Caption   string   `json:"caption"`
	// Async runs the job in the background and answers with its id.
	Async bool `json:"async"`
}

type RequestCheckNumbers struct {
	SessionID string   `json:"session_id"`
	Numbers   []string `json:"numbers"`
}

type RequestGroupID struct {
	SessionID string `json:"session_id"`
	GroupName string `json:"group_name"`
}

type RequestVersionRefresh struct {
	Force bool `json:"force"`
}
