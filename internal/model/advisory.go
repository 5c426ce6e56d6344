package model

// FrameAnalysis is the classification of a single proctoring camera frame.
// Both fields are always present; ProhibitedObjects is empty, never nil,
// when nothing is detected.
type FrameAnalysis struct {
	IsLookingAway     bool     `json:"is_looking_away"`
	ProhibitedObjects []string `json:"prohibited_objects"`
}

// AnalyzeFrameRequest carries a base64 data URI of a camera frame.
type AnalyzeFrameRequest struct {
	PhotoDataURI string `json:"photo_data_uri" binding:"required"`
}
