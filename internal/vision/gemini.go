// Package vision implements the vision-model collaborator on Vertex AI
// Gemini. A text/vision model handles identification and frame selection; an
// image model handles segmentation and shot generation.
package vision

import (
	"context"
	"fmt"
	"os"

	"cloud.google.com/go/vertexai/genai"
)

// --- Prompts ---

const identifyProductPrompt = "Analyze these frames from a product video. Identify the main product " +
	"being showcased. Return only the product name (e.g., 'iPhone 15 Pro')."

const selectTopFramesPromptFmt = "From these %d video frames, choose the %d frames that best represent " +
	"the product being showcased: clearly visible, well-lit, minimal motion blur. " +
	"Return only the 0-based frame indices as a comma-separated list (e.g., '0, 4, 9')."

const selectBestFramePromptFmt = "From these images, select the frame where the '%s' is most clearly " +
	"visible, well-lit, and prominently shown. Return only the frame index number (0-based)."

const segmentPromptFmt = "Remove the background from this image, keeping only the '%s' perfectly " +
	"isolated on a transparent background. Return the resulting image."

// Client holds the pre-configured generative models.
type Client struct {
	textModel  *genai.GenerativeModel
	imageModel *genai.GenerativeModel
	base       *genai.Client
}

// Config locates the Vertex AI endpoint and names the models.
type Config struct {
	ProjectID  string
	Region     string
	TextModel  string
	ImageModel string
}

// NewClient creates a vision client. The text model is pinned to a low
// temperature so index and name responses stay deterministic.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ProjectID == "" || cfg.Region == "" {
		return nil, fmt.Errorf("vision.NewClient: project ID and region cannot be empty")
	}

	base, err := genai.NewClient(ctx, cfg.ProjectID, cfg.Region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	textModel := base.GenerativeModel(cfg.TextModel)
	textModel.GenerationConfig = genai.GenerationConfig{
		Temperature: genai.Ptr[float32](0.0),
	}

	imageModel := base.GenerativeModel(cfg.ImageModel)

	return &Client{
		textModel:  textModel,
		imageModel: imageModel,
		base:       base,
	}, nil
}

func (c *Client) Close() error {
	if c.base != nil {
		return c.base.Close()
	}
	return nil
}

// IdentifyProduct names the product shown across the frames.
func (c *Client) IdentifyProduct(ctx context.Context, framePaths []string) (string, error) {
	if len(framePaths) == 0 {
		return "", fmt.Errorf("no frames provided for product identification")
	}

	parts, err := imageParts(framePaths, "jpeg")
	if err != nil {
		return "", err
	}
	parts = append(parts, genai.Text(identifyProductPrompt))

	resp, err := c.textModel.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("product identification: %w", err)
	}

	return responseText(resp), nil
}

// SelectTopFrames asks for n representative frame indices. The response is
// parsed leniently; range checking and padding are the caller's policy.
func (c *Client) SelectTopFrames(ctx context.Context, framePaths []string, n int) ([]int, error) {
	if len(framePaths) == 0 {
		return nil, fmt.Errorf("no frames provided for top frame selection")
	}

	parts, err := imageParts(framePaths, "jpeg")
	if err != nil {
		return nil, err
	}
	parts = append(parts, genai.Text(fmt.Sprintf(selectTopFramesPromptFmt, len(framePaths), n)))

	resp, err := c.textModel.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("top frame selection: %w", err)
	}

	return parseIndexList(responseText(resp)), nil
}

// SelectBestFrame returns the model's 0-based pick for the clearest frame.
func (c *Client) SelectBestFrame(ctx context.Context, framePaths []string, productName string) (int, error) {
	if len(framePaths) == 0 {
		return 0, fmt.Errorf("no frames provided for best frame selection")
	}

	parts, err := imageParts(framePaths, "jpeg")
	if err != nil {
		return 0, err
	}
	parts = append(parts, genai.Text(fmt.Sprintf(selectBestFramePromptFmt, productName)))

	resp, err := c.textModel.GenerateContent(ctx, parts...)
	if err != nil {
		return 0, fmt.Errorf("best frame selection: %w", err)
	}

	text := responseText(resp)
	idx, err := firstInteger(text)
	if err != nil {
		return 0, fmt.Errorf("unable to parse frame index from model response %q: %w", text, err)
	}
	return idx, nil
}

// Segment asks the image model for a background-free cut of the product.
func (c *Client) Segment(ctx context.Context, framePath, productName string) ([]byte, error) {
	data, err := os.ReadFile(framePath)
	if err != nil {
		return nil, fmt.Errorf("reading frame for segmentation: %w", err)
	}

	resp, err := c.imageModel.GenerateContent(ctx,
		genai.ImageData("jpeg", data),
		genai.Text(fmt.Sprintf(segmentPromptFmt, productName)),
	)
	if err != nil {
		return nil, fmt.Errorf("segmentation: %w", err)
	}

	img := responseImage(resp)
	if img == nil {
		return nil, fmt.Errorf("model did not return image data for segmentation")
	}
	return img, nil
}

// GenerateShot produces a styled marketing image from the segmented product.
func (c *Client) GenerateShot(ctx context.Context, prompt, imagePath string) ([]byte, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("reading segmented image for enhancement: %w", err)
	}

	resp, err := c.imageModel.GenerateContent(ctx,
		genai.ImageData("png", data),
		genai.Text(prompt),
	)
	if err != nil {
		return nil, fmt.Errorf("shot generation: %w", err)
	}

	img := responseImage(resp)
	if img == nil {
		return nil, fmt.Errorf("model did not return image data for shot generation")
	}
	return img, nil
}

// imageParts loads frames as inline image parts, skipping files that have
// disappeared from disk.
func imageParts(paths []string, format string) ([]genai.Part, error) {
	parts := make([]genai.Part, 0, len(paths)+1)
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("reading frame %s: %w", p, err)
		}
		parts = append(parts, genai.ImageData(format, data))
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("none of the %d frames could be read", len(paths))
	}
	return parts, nil
}
