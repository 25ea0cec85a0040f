package blobsvc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/tutorly/core"
)

// SupabaseStore stores files in a public Supabase storage bucket.
type SupabaseStore struct {
	baseURL    string
	bucket     string
	serviceKey string
	httpClient *http.Client
}

var _ core.BlobStore = (*SupabaseStore)(nil)

func NewSupabaseStore(conf *core.Config, httpClient *http.Client) *SupabaseStore {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &SupabaseStore{
		baseURL:    strings.TrimRight(conf.Storage.SupabaseURL, "/"),
		bucket:     conf.Storage.SupabaseBucket,
		serviceKey: conf.Storage.SupabaseServiceKey,
		httpClient: httpClient,
	}
}

func (s *SupabaseStore) objectURL(objectPath string, public bool) string {
	if public {
		return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, escapePath(objectPath))
	}
	return fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, s.bucket, escapePath(objectPath))
}

func (s *SupabaseStore) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("apikey", s.serviceKey)
}

func (s *SupabaseStore) Upload(ctx context.Context, objectPath string, r io.Reader, contentType string) (string, error) {
	objectPath = strings.Trim(objectPath, "/")
	if contentType == "" {
		head := make([]byte, 512)
		n, err := io.ReadFull(r, head)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
			return "", errors.Wrap(err, "reading upload")
		}
		contentType = http.DetectContentType(head[:n])
		r = io.MultiReader(bytes.NewReader(head[:n]), r)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.objectURL(objectPath, false), r)
	if err != nil {
		return "", errors.Wrap(err, "building upload request")
	}
	s.authorize(req)
	req.Header.Set("x-upsert", "true")
	req.Header.Set("Content-Type", contentType)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "uploading file")
	}
	defer resp.Body.Close()

	if err = checkStatus(resp); err != nil {
		return "", errors.Wrap(err, "uploading file")
	}
	return s.objectURL(objectPath, true), nil
}

func (s *SupabaseStore) Delete(ctx context.Context, fileURL string) error {
	objectPath, err := s.objectPathFromURL(fileURL)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.objectURL(objectPath, false), nil)
	if err != nil {
		return errors.Wrap(err, "building delete request")
	}
	s.authorize(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "deleting file")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	return errors.Wrap(checkStatus(resp), "deleting file")
}

func (s *SupabaseStore) objectPathFromURL(fileURL string) (string, error) {
	parsed, err := url.Parse(fileURL)
	if err != nil {
		return "", errors.Wrap(err, "parsing file url")
	}
	publicPrefix := "/storage/v1/object/public/" + s.bucket + "/"
	objectPrefix := "/storage/v1/object/" + s.bucket + "/"

	switch {
	case strings.HasPrefix(parsed.Path, publicPrefix):
		return strings.TrimPrefix(parsed.Path, publicPrefix), nil
	case strings.HasPrefix(parsed.Path, objectPrefix):
		return strings.TrimPrefix(parsed.Path, objectPrefix), nil
	}
	return "", errors.Errorf("file url %q does not belong to bucket %q", fileURL, s.bucket)
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return errors.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}
