package inputprocessor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"picturereader/internal/models"
)

// DefaultMaxBytes bounds the size of an image read from any source.
const DefaultMaxBytes = 20 << 20

// Result holds a loaded image and where it came from.
type Result struct {
	Image       []byte
	ContentType string
	Source      string     // Path, URL or "stdin"
	FilePath    *string    // Absolute path if the input was a file
	URL         *string    // URL if the input was fetched
	Mtime       *time.Time // File modification time if applicable
}

// Processor loads image bytes from a user supplied input.
type Processor interface {
	Process(ctx context.Context, input string) (Result, error)
}

type Option func(*defaultProcessor)

// WithHTTPClient sets the client used for URL inputs.
func WithHTTPClient(c *http.Client) Option {
	return func(p *defaultProcessor) { p.client = c }
}

// WithMaxBytes sets the image size limit.
func WithMaxBytes(n int64) Option {
	return func(p *defaultProcessor) { p.maxBytes = n }
}

// WithStdin sets the reader used for the "-" input.
func WithStdin(r io.Reader) Option {
	return func(p *defaultProcessor) { p.stdin = r }
}

// New creates the default processor. It accepts a file path, an http(s) URL
// or "-" for standard input.
func New(opts ...Option) Processor {
	p := &defaultProcessor{
		client:   &http.Client{Timeout: 30 * time.Second},
		maxBytes: DefaultMaxBytes,
		stdin:    os.Stdin,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type defaultProcessor struct {
	client   *http.Client
	maxBytes int64
	stdin    io.Reader
}

var _ Processor = (*defaultProcessor)(nil)

func (p *defaultProcessor) Process(ctx context.Context, input string) (Result, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Result{}, fmt.Errorf("no image given: %w", models.ErrValidation)
	}
	if input == "-" {
		data, err := p.readLimited(p.stdin)
		if err != nil {
			return Result{}, fmt.Errorf("failed to read image from stdin: %w", err)
		}
		return p.result(data, "stdin")
	}

	fi, err := os.Stat(input)
	if err == nil {
		if fi.IsDir() {
			return Result{}, fmt.Errorf("input '%s' is a directory, not an image: %w", input, models.ErrValidation)
		}
		if fi.Size() > p.maxBytes {
			return Result{}, fmt.Errorf("image '%s' is %d bytes, over the %d byte limit: %w", input, fi.Size(), p.maxBytes, models.ErrValidation)
		}
		data, readErr := os.ReadFile(input)
		if readErr != nil {
			if errors.Is(readErr, os.ErrPermission) {
				return Result{}, fmt.Errorf("permission denied reading file '%s': %w", input, readErr)
			}
			return Result{}, fmt.Errorf("failed to read file '%s': %w", input, readErr)
		}
		absPath, pathErr := filepath.Abs(input)
		if pathErr != nil {
			log.Warnf("Failed to get absolute path for '%s': %v. Using original path.", input, pathErr)
			absPath = input
		}
		res, err := p.result(data, absPath)
		if err != nil {
			return res, err
		}
		mtime := fi.ModTime()
		res.FilePath = &absPath
		res.Mtime = &mtime
		log.Debugf("Loaded image file %s (%d bytes)", absPath, len(data))
		return res, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return Result{}, fmt.Errorf("failed to stat input '%s': %w", input, err)
	}

	parsedURL, urlErr := url.Parse(input)
	if urlErr == nil && (parsedURL.Scheme == "http" || parsedURL.Scheme == "https") {
		return p.fetch(ctx, parsedURL)
	}

	return Result{}, fmt.Errorf("input '%s' is neither an existing file nor an http(s) URL: %w", input, models.ErrValidation)
}

func (p *defaultProcessor) fetch(ctx context.Context, u *url.URL) (Result, error) {
	urlStr := u.String()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create request for URL '%s': %w", urlStr, err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("failed to fetch URL '%s': %w", urlStr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		hint, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Result{}, fmt.Errorf("failed to fetch URL '%s': status code %d %s - Body Hint: %s", urlStr, resp.StatusCode, http.StatusText(resp.StatusCode), string(hint))
	}

	data, err := p.readLimited(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read response body from URL '%s': %w", urlStr, err)
	}
	res, err := p.result(data, urlStr)
	if err != nil {
		return res, err
	}
	res.URL = &urlStr
	log.Debugf("Fetched image %s (%d bytes)", urlStr, len(data))
	return res, nil
}

func (p *defaultProcessor) readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, p.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > p.maxBytes {
		return nil, fmt.Errorf("image is over the %d byte limit: %w", p.maxBytes, models.ErrValidation)
	}
	return data, nil
}

// result sniffs the content type; anything that is not an image is rejected.
func (p *defaultProcessor) result(data []byte, source string) (Result, error) {
	if len(data) == 0 {
		return Result{}, fmt.Errorf("'%s' is empty: %w", source, models.ErrUnsupportedImage)
	}
	ct := http.DetectContentType(data)
	if !strings.HasPrefix(ct, "image/") {
		return Result{}, fmt.Errorf("'%s' is %s: %w", source, ct, models.ErrUnsupportedImage)
	}
	return Result{Image: data, ContentType: ct, Source: source}, nil
}
