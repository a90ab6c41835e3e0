package insight

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/facegate/facegate/internal/provider"
)

// Provider implements provider.EmbeddingProvider and provider.LivenessChecker
// against an InsightFace sidecar service.
type Provider struct {
	client *Client
}

// NewProvider creates a new InsightFace provider
func NewProvider(config Config) *Provider {
	return &Provider{
		client: NewClient(config),
	}
}

// Embed extracts a face embedding from the image. When multiple faces are
// present the largest facial area wins, matching the capture expectation of
// a single subject in front of the camera.
func (p *Provider) Embed(ctx context.Context, image []byte) (*provider.Embedding, error) {
	if len(image) == 0 {
		return nil, ErrInvalidImage
	}

	imageBase64 := base64.StdEncoding.EncodeToString(image)

	resp, err := p.client.Embed(ctx, imageBase64)
	if err != nil {
		return nil, fmt.Errorf("embed face: %w", err)
	}

	if len(resp.Faces) == 0 {
		return nil, nil
	}

	best := resp.Faces[0]
	bestArea := best.FacialArea.W * best.FacialArea.H
	for _, face := range resp.Faces[1:] {
		if area := face.FacialArea.W * face.FacialArea.H; area > bestArea {
			best = face
			bestArea = area
		}
	}

	return &provider.Embedding{
		Vector:  best.Embedding,
		Quality: best.QualityScore,
	}, nil
}

// CheckLiveness scores the image for presentation attacks.
func (p *Provider) CheckLiveness(ctx context.Context, image []byte, threshold float64) (bool, float64, error) {
	if len(image) == 0 {
		return false, 0, ErrInvalidImage
	}

	imageBase64 := base64.StdEncoding.EncodeToString(image)

	resp, err := p.client.Liveness(ctx, imageBase64)
	if err != nil {
		return false, 0, fmt.Errorf("check liveness: %w", err)
	}

	// No subject in frame cannot be live.
	if resp.FaceCount == 0 {
		return false, 0, nil
	}

	return resp.Score >= threshold, resp.Score, nil
}

var (
	_ provider.EmbeddingProvider = (*Provider)(nil)
	_ provider.LivenessChecker   = (*Provider)(nil)
)
