package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const DefaultAssemblyEndpoint = "https://api2.transloadit.com/assemblies"

// AssemblyClient uploads files through a hosted assembly service.
type AssemblyClient struct {
	Endpoint string
	Signer   Signer
	HTTP     *http.Client
}

func NewAssemblyClient(endpoint string, signer Signer) *AssemblyClient {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = DefaultAssemblyEndpoint
	}
	return &AssemblyClient{
		Endpoint: endpoint,
		Signer:   signer,
		HTTP:     &http.Client{Timeout: 2 * time.Minute},
	}
}

// Upload posts the signed params and the file as multipart form data.
// The params string is sent exactly as signed.
func (c *AssemblyClient) Upload(ctx context.Context, name string, r io.Reader) (string, error) {
	if c == nil || c.Signer == nil {
		return "", fmt.Errorf("upload: assembly client is not configured")
	}
	env, err := c.Signer.Sign(ctx)
	if err != nil {
		return "", fmt.Errorf("upload: sign: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("params", env.Params); err != nil {
		return "", err
	}
	if err := mw.WriteField("signature", env.Signature); err != nil {
		return "", err
	}
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(fw, r); err != nil {
		return "", fmt.Errorf("upload: read file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("upload: post assembly: %w", err)
	}
	defer resp.Body.Close()

	var res AssemblyResult
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&res); err != nil {
		return "", fmt.Errorf("upload: decode assembly (HTTP %d): %w", resp.StatusCode, err)
	}
	if res.Error != "" {
		log.Printf("upload: assembly error %s: %s", res.Error, res.Message)
	}
	url, err := ExtractURL(res)
	if err != nil {
		return "", err
	}
	return url, nil
}

func (c *AssemblyClient) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}
