// Package http implements transport.Transport over net/http, the concrete
// collaborator that RetryingRequest attempts are built against.
package http

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/bft-labs/syncdispatch/pkg/log"
	"github.com/bft-labs/syncdispatch/pkg/transport"
)

// Client is the subset of *http.Client the sender needs. Satisfied by
// *http.Client; tests can substitute a fake.
type Client interface {
	Do(req *http.Request) (*http.Response, error)
}

// Sender implements transport.Transport using an HTTP client.
type Sender struct {
	client Client
	logger log.Logger
}

// New creates a Sender. client is typically &http.Client{Timeout: ...}.
func New(client Client, logger log.Logger) *Sender {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Sender{client: client, logger: logger}
}

// IsShutdown always reports false: the HTTP client has no notion of
// shutdown, unlike the request executor it runs on.
func (s *Sender) IsShutdown() bool { return false }

// Do executes one outbound request and decodes its response per req.Type.
func (s *Sender) Do(ctx context.Context, req transport.Request) (*transport.Response, error) {
	if req.Type == transport.MultipartUpload && req.Method != http.MethodPut && req.Method != http.MethodPost {
		return nil, transport.ErrInvalidMethod
	}

	body := req.Body
	if req.Compressed && body != nil {
		compressed, contentEncoding, err := gzipReader(body)
		if err != nil {
			return nil, fmt.Errorf("compress body: %w", err)
		}
		body = compressed
		if req.Headers == nil {
			req.Headers = make(http.Header)
		}
		req.Headers.Set("Content-Encoding", contentEncoding)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", transport.ErrInvalidURL, err)
	}
	for k, vs := range req.Headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if req.Type == transport.MultipartDownload {
		httpReq.Header.Set("Accept", "multipart/mixed, multipart/related")
	} else if req.Type == transport.MultipartUpload {
		httpReq.Header.Set("Accept", "*/*")
	}
	if req.Auth != nil {
		if err := req.Auth.Authenticate(ctx, httpReq); err != nil {
			return nil, fmt.Errorf("authenticate: %w", err)
		}
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && req.Suppress404Logging {
		s.logger.Debug("transport attempt returned 404", log.String("url", req.URL))
	} else if resp.StatusCode >= 400 {
		s.logger.Warn("transport attempt returned error status",
			log.String("url", req.URL), log.Int("status", resp.StatusCode))
	}

	switch req.Type {
	case transport.MultipartDownload:
		return s.decodeMultipart(resp)
	default:
		return s.decodeSimple(resp)
	}
}

func (s *Sender) decodeSimple(resp *http.Response) (*transport.Response, error) {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	out := &transport.Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}
	if resp.StatusCode >= 400 {
		return out, &transport.StatusError{StatusCode: resp.StatusCode, Body: data}
	}
	return out, nil
}

func (s *Sender) decodeMultipart(resp *http.Response) (*transport.Response, error) {
	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		return &transport.Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data},
			&transport.StatusError{StatusCode: resp.StatusCode, Body: data}
	}

	_, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("parse content-type: %w", err)
	}
	boundary, ok := params["boundary"]
	if !ok {
		return nil, fmt.Errorf("multipart response missing boundary")
	}

	reader := multipart.NewReader(resp.Body, boundary)
	out := &transport.Response{StatusCode: resp.StatusCode, Header: resp.Header}
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read multipart part: %w", err)
		}
		data, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			return nil, fmt.Errorf("read part body: %w", err)
		}
		out.Parts = append(out.Parts, transport.Part{Header: http.Header(part.Header), Body: data})
	}
	return out, nil
}

func gzipReader(r io.Reader) (io.Reader, string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", err
	}
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, "gzip", nil
}
