package browser

// TabInfo describes an open browser tab.
type TabInfo struct {
	TargetID string `json:"targetId"`
	URL      string `json:"url"`
	Title    string `json:"title"`
}

// StatusInfo describes the running browser.
type StatusInfo struct {
	Running bool   `json:"running"`
	Tabs    int    `json:"tabs,omitempty"`
	URL     string `json:"url,omitempty"`
}
