package sentimentgate

import "time"

// Account is the identity resolved by the Gate from a bearer credential.
type Account struct {
	ID string
}

// UploadTarget is a short-lived authorization to write exactly one object.
// It is never persisted.
type UploadTarget struct {
	URL         string    `json:"url"`
	Key         string    `json:"key"`
	ContentType string    `json:"-"`
	ExpiresAt   time.Time `json:"-"`
}

// Analysis is the normalized verdict returned by the inference engine.
type Analysis struct {
	OverallSentiment string    `json:"overallSentiment"`
	Confidence       float64   `json:"confidence"`
	Segments         []Segment `json:"segments"`
}

// Segment is the verdict for one time range of the analyzed media.
type Segment struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Sentiment  string  `json:"sentiment"`
	Confidence float64 `json:"confidence"`
	Text       string  `json:"text,omitempty"`
	Emotion    string  `json:"emotion,omitempty"`
}
