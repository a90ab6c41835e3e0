package insight

// EmbedRequest for POST /embed
type EmbedRequest struct {
	Img      string `json:"img"`      // base64 encoded image
	Model    string `json:"model"`    // "buffalo_l", "antelopev2"
	Detector string `json:"detector"` // "retinaface", "scrfd"
}

// EmbedResponse from POST /embed
type EmbedResponse struct {
	Faces []EmbedResult `json:"faces"`
}

type EmbedResult struct {
	Embedding    []float32  `json:"embedding"`
	QualityScore float64    `json:"quality_score"`
	FacialArea   FacialArea `json:"facial_area"`
}

type FacialArea struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// LivenessRequest for POST /liveness
type LivenessRequest struct {
	Img string `json:"img"`
}

// LivenessResponse from POST /liveness
type LivenessResponse struct {
	Score     float64 `json:"score"`
	FaceCount int     `json:"face_count"`
}
