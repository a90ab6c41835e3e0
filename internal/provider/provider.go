package provider

import "context"

// Embedding is the output of a face embedding extraction.
type Embedding struct {
	Vector  []float32 `json:"vector"`
	Quality float64   `json:"quality"`
}

// EmbeddingProvider extracts a face embedding from an image.
type EmbeddingProvider interface {
	// Embed detects the most prominent face in the image and returns its
	// embedding together with a capture quality score in [0, 1]. A nil
	// result with a nil error means no face was found.
	Embed(ctx context.Context, image []byte) (*Embedding, error)
}

// LivenessChecker performs passive liveness detection on an image.
type LivenessChecker interface {
	// CheckLiveness returns whether the image shows a live subject and the
	// score the decision was made on.
	CheckLiveness(ctx context.Context, image []byte, threshold float64) (isLive bool, score float64, err error)
}
