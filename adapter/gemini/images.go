package gemini

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"

	"google.golang.org/genai"

	"github.com/skosovsky/aibridge"
	"github.com/skosovsky/aibridge/adapter"
)

// GenerateImage creates images from req.Prompt with an Imagen model. Options.Size is read as an
// aspect ratio ("1:1", "16:9"), Options.OutputFormat as the image subtype. Imagen reports no token
// usage, so the response carries none.
func (a *Adapter) GenerateImage(ctx context.Context, req *aibridge.ImageRequest) (*aibridge.AIResponse, error) {
	if req == nil || req.Prompt == "" {
		return nil, fmt.Errorf("%w: image prompt is required", adapter.ErrInvalidRequest)
	}
	if !a.gate.Capabilities().ImageGeneration {
		return nil, fmt.Errorf("%w: model %s cannot generate images", adapter.ErrUnsupportedOperation, a.model.ID)
	}
	model := req.Options.Model
	if model == "" {
		model = a.model.ID
	}
	config := &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		AspectRatio:    req.Options.Size,
	}
	if req.Options.OutputFormat != "" {
		config.OutputMIMEType = "image/" + req.Options.OutputFormat
	}
	resp, err := a.client.Models.GenerateImages(ctx, model, req.Prompt, config)
	if err != nil {
		return nil, fmt.Errorf("gemini: generate images: %w", err)
	}
	var blocks []aibridge.ContentBlock
	for i, img := range resp.GeneratedImages {
		switch {
		case img == nil:
		case img.Image != nil && len(img.Image.ImageBytes) > 0:
			mimeType := img.Image.MIMEType
			if mimeType == "" {
				mimeType = "image/png"
			}
			blocks = append(blocks, aibridge.ImageDataBlock{
				ID:         strconv.Itoa(i),
				MIMEType:   mimeType,
				Base64Data: base64.StdEncoding.EncodeToString(img.Image.ImageBytes),
			})
		case img.RAIFilteredReason != "":
			blocks = append(blocks, adapter.SoftFailure(adapter.CodeSafety, img.RAIFilteredReason))
		}
	}
	if len(blocks) == 0 {
		return nil, adapter.ErrMalformedResponse
	}
	return adapter.FinishResponse("", model, "completed", blocks, nil), nil
}
