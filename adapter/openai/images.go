package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/openai/openai-go/v3"

	"github.com/skosovsky/aibridge"
	"github.com/skosovsky/aibridge/adapter"
)

// GenerateImage creates images from req.Prompt through the Images API. Each image is returned
// as an ImageDataBlock; usage is priced with the image output rate.
func (a *Adapter) GenerateImage(ctx context.Context, req *aibridge.ImageRequest) (*aibridge.AIResponse, error) {
	if req == nil || req.Prompt == "" {
		return nil, fmt.Errorf("%w: image prompt is required", adapter.ErrInvalidRequest)
	}
	if err := a.requireImageGeneration(); err != nil {
		return nil, err
	}
	params := openai.ImageGenerateParams{
		Prompt:       req.Prompt,
		Model:        openai.ImageModel(a.imageModel(req.Options)),
		Size:         openai.ImageGenerateParamsSize(req.Options.Size),
		Quality:      openai.ImageGenerateParamsQuality(req.Options.Quality),
		Background:   openai.ImageGenerateParamsBackground(req.Options.Background),
		OutputFormat: openai.ImageGenerateParamsOutputFormat(req.Options.OutputFormat),
	}
	resp, err := a.client.Images.Generate(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: images: %w", err)
	}
	return a.parseImages(resp, params.Model)
}

// EditImage edits req.Images guided by req.Prompt and an optional mask.
func (a *Adapter) EditImage(ctx context.Context, req *aibridge.ImageEditRequest) (*aibridge.AIResponse, error) {
	if req == nil || req.Prompt == "" {
		return nil, fmt.Errorf("%w: image prompt is required", adapter.ErrInvalidRequest)
	}
	if len(req.Images) == 0 {
		return nil, fmt.Errorf("%w: at least one source image is required", adapter.ErrInvalidRequest)
	}
	if err := a.requireImageGeneration(); err != nil {
		return nil, err
	}
	files := make([]io.Reader, 0, len(req.Images))
	for i, img := range req.Images {
		f, err := imageFile(img, "image-"+strconv.Itoa(i))
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	params := openai.ImageEditParams{
		Image:        openai.ImageEditParamsImageUnion{OfFileArray: files},
		Prompt:       req.Prompt,
		Model:        openai.ImageModel(a.imageModel(req.Options)),
		Size:         openai.ImageEditParamsSize(req.Options.Size),
		Quality:      openai.ImageEditParamsQuality(req.Options.Quality),
		Background:   openai.ImageEditParamsBackground(req.Options.Background),
		OutputFormat: openai.ImageEditParamsOutputFormat(req.Options.OutputFormat),
	}
	if req.Mask != nil {
		mask, err := imageFile(*req.Mask, "mask")
		if err != nil {
			return nil, err
		}
		params.Mask = mask
	}
	resp, err := a.client.Images.Edit(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: images: %w", err)
	}
	return a.parseImages(resp, params.Model)
}

func (a *Adapter) requireImageGeneration() error {
	if !a.gate.Capabilities().ImageGeneration {
		return fmt.Errorf("%w: model %s cannot generate images", adapter.ErrUnsupportedOperation, a.model.ID)
	}
	return nil
}

func (a *Adapter) imageModel(opts aibridge.ImageOptions) string {
	if opts.Model != "" {
		return opts.Model
	}
	return a.model.ID
}

func (a *Adapter) parseImages(resp *openai.ImagesResponse, model openai.ImageModel) (*aibridge.AIResponse, error) {
	if resp == nil {
		return nil, adapter.ErrMalformedResponse
	}
	mimeType := "image/png"
	if resp.OutputFormat != "" {
		mimeType = "image/" + string(resp.OutputFormat)
	}
	var blocks []aibridge.ContentBlock
	for i, img := range resp.Data {
		switch {
		case img.B64JSON != "":
			blocks = append(blocks, aibridge.ImageDataBlock{
				ID:         strconv.Itoa(i),
				MIMEType:   mimeType,
				Base64Data: img.B64JSON,
			})
		case img.URL != "":
			blocks = append(blocks, aibridge.ImageBlock{URL: img.URL})
		}
		if img.RevisedPrompt != "" {
			blocks = append(blocks, aibridge.TextBlock{Text: img.RevisedPrompt})
		}
	}
	if len(blocks) == 0 {
		return nil, adapter.ErrMalformedResponse
	}
	var usage *aibridge.Usage
	if resp.JSON.Usage.Valid() {
		usage = adapter.ComputeUsage(a.model, &adapter.TokenCounts{
			Input:            resp.Usage.InputTokens,
			Output:           resp.Usage.OutputTokens,
			DidGenerateImage: true,
		})
	}
	return adapter.FinishResponse("", string(model), "completed", blocks, usage), nil
}

// imageFile decodes an inline image into a multipart file part.
func imageFile(img aibridge.ImageDataBlock, name string) (io.Reader, error) {
	data, err := base64.StdEncoding.DecodeString(img.Base64Data)
	if err != nil {
		return nil, fmt.Errorf("%w: image %s is not valid base64: %w", adapter.ErrInvalidRequest, name, err)
	}
	mimeType := img.MIMEType
	if mimeType == "" {
		mimeType = "image/png"
	}
	ext := strings.TrimPrefix(mimeType, "image/")
	return openai.File(bytes.NewReader(data), name+"."+ext, mimeType), nil
}
