package domain

// VideoFormat is one downloadable format advertised by the extractor.
type VideoFormat struct {
	FormatID string `json:"format_id"`
	Note     string `json:"format_note,omitempty"`
	Ext      string `json:"ext,omitempty"`
	Height   int    `json:"height,omitempty"`
}

// VideoMetadata is the typed record decoded from the extractor's structured
// (JSON) metadata output.
type VideoMetadata struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	Thumbnail  string        `json:"thumbnail,omitempty"`
	Duration   float64       `json:"duration,omitempty"`
	Uploader   string        `json:"uploader,omitempty"`
	WebpageURL string        `json:"webpage_url,omitempty"`
	Formats    []VideoFormat `json:"formats,omitempty"`
}
