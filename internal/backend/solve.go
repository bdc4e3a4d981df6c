package backend

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/codeturtle/turtle-web/internal/models/dto"
)

// Image is one file part of a solve upload.
type Image struct {
	Name        string
	ContentType string
	Data        []byte
}

// SolveRequest is the multipart payload for /api/upload.
type SolveRequest struct {
	Images                 []Image
	Model                  string
	AdditionalInstructions string
}

// Solve posts the images. A 2xx answer is decoded even when its success flag is false;
// the caller decides what that means.
func (c *Client) Solve(ctx context.Context, in SolveRequest) (dto.SolveResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, img := range in.Images {
		if err := writeImagePart(mw, img); err != nil {
			return dto.SolveResponse{}, err
		}
	}
	if m := strings.TrimSpace(in.Model); m != "" {
		if err := mw.WriteField("model", m); err != nil {
			return dto.SolveResponse{}, fmt.Errorf("write model field: %w", err)
		}
	}
	if extra := strings.TrimSpace(in.AdditionalInstructions); extra != "" {
		if err := mw.WriteField("additionalInstructions", extra); err != nil {
			return dto.SolveResponse{}, fmt.Errorf("write instructions field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return dto.SolveResponse{}, fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/upload", &buf)
	if err != nil {
		return dto.SolveResponse{}, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out dto.SolveResponse
	if err := c.do(req, &out); err != nil {
		return dto.SolveResponse{}, err
	}
	return out, nil
}

func writeImagePart(mw *multipart.Writer, img Image) error {
	ct := img.ContentType
	if ct == "" {
		ct = http.DetectContentType(img.Data)
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="images"; filename="%s"`, escapeQuotes(img.Name)))
	h.Set("Content-Type", ct)
	part, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("create image part: %w", err)
	}
	if _, err := part.Write(img.Data); err != nil {
		return fmt.Errorf("write image part: %w", err)
	}
	return nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
