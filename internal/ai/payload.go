package ai

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"
)

const (
	snapshotFilePrefix = "snapshot-"
	defaultMaxImage    = 10 << 20
)

// PayloadDecoder turns a snapshot's image payload into bytes. Payloads are
// data URIs or bare base64. http(s) URLs are fetched only when their host is
// on the allowlist given to NewPayloadDecoder; with no allowlist every URL is
// rejected.
type PayloadDecoder struct {
	httpClient   *http.Client
	maxBytes     int64
	allowedHosts map[string]bool
}

// NewPayloadDecoder returns a decoder that may fetch images from the given
// hosts. Entries match either the host name or host:port of the URL.
func NewPayloadDecoder(allowedHosts ...string) *PayloadDecoder {
	d := &PayloadDecoder{
		maxBytes:     defaultMaxImage,
		allowedHosts: make(map[string]bool),
	}
	for _, host := range allowedHosts {
		if host = strings.ToLower(strings.TrimSpace(host)); host != "" {
			d.allowedHosts[host] = true
		}
	}

	d.httpClient = &http.Client{
		Timeout: 15 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return fmt.Errorf("too many redirects")
			}
			if !d.hostAllowed(req.URL) {
				return fmt.Errorf("redirect to %s is not allowed", req.URL.Host)
			}
			return nil
		},
	}
	return d
}

func (d *PayloadDecoder) hostAllowed(u *url.URL) bool {
	return d.allowedHosts[strings.ToLower(u.Host)] || d.allowedHosts[strings.ToLower(u.Hostname())]
}

// Decode returns the image for the snapshot at position index. The index is
// encoded into the filename so the provider echoes it back with the results.
func (d *PayloadDecoder) Decode(ctx context.Context, payload string, index int) (Image, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return Image{}, fmt.Errorf("empty image payload")
	}

	var (
		data        []byte
		contentType string
		err         error
	)

	switch {
	case strings.HasPrefix(payload, "data:"):
		data, contentType, err = decodeDataURI(payload)
	case strings.HasPrefix(payload, "http://"), strings.HasPrefix(payload, "https://"):
		data, contentType, err = d.fetch(ctx, payload)
	default:
		data, err = decodeBase64(payload)
	}
	if err != nil {
		return Image{}, err
	}

	if int64(len(data)) > d.maxBytes {
		return Image{}, fmt.Errorf("image is %d bytes, limit is %d", len(data), d.maxBytes)
	}
	if len(data) == 0 {
		return Image{}, fmt.Errorf("image payload decoded to zero bytes")
	}

	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = mediaType
	}

	return Image{
		Filename:    SnapshotFilename(index, contentType),
		ContentType: contentType,
		Data:        data,
	}, nil
}

func decodeDataURI(uri string) ([]byte, string, error) {
	header, encoded, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return nil, "", fmt.Errorf("invalid data URI: missing comma")
	}

	isBase64 := false
	contentType := ""
	for i, param := range strings.Split(header, ";") {
		switch {
		case i == 0:
			contentType = param
		case strings.EqualFold(param, "base64"):
			isBase64 = true
		}
	}

	if isBase64 {
		data, err := decodeBase64(encoded)
		if err != nil {
			return nil, "", err
		}
		return data, contentType, nil
	}

	unescaped, err := url.PathUnescape(encoded)
	if err != nil {
		return nil, "", fmt.Errorf("invalid data URI encoding: %w", err)
	}
	return []byte(unescaped), contentType, nil
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		if data, err := enc.DecodeString(s); err == nil {
			return data, nil
		}
	}
	return nil, fmt.Errorf("image payload is not valid base64")
}

func (d *PayloadDecoder) fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid image URL: %w", err)
	}
	if !d.hostAllowed(u) {
		return nil, "", fmt.Errorf("image URLs from %q are not allowed, send a data URI", u.Host)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetching image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetching image returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, d.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("reading image: %w", err)
	}

	return data, resp.Header.Get("Content-Type"), nil
}

func SnapshotFilename(index int, contentType string) string {
	ext := ""
	switch contentType {
	case "image/jpeg":
		ext = ".jpg"
	case "image/png":
		ext = ".png"
	case "image/webp":
		ext = ".webp"
	case "image/gif":
		ext = ".gif"
	}
	return fmt.Sprintf("%s%04d%s", snapshotFilePrefix, index, ext)
}

// ParseSnapshotFilename recovers the batch position from a name produced by
// SnapshotFilename.
func ParseSnapshotFilename(filename string) (int, bool) {
	base := path.Base(filename)
	if !strings.HasPrefix(base, snapshotFilePrefix) {
		return 0, false
	}
	digits := strings.TrimPrefix(base, snapshotFilePrefix)
	if dot := strings.IndexByte(digits, '.'); dot >= 0 {
		digits = digits[:dot]
	}
	if digits == "" {
		return 0, false
	}
	index, err := strconv.Atoi(digits)
	if err != nil || index < 0 {
		return 0, false
	}
	return index, true
}
