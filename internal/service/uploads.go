package service

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/shoplocal/onboarding-api/internal/models"
)

// ImageUploader sends a pending image to blob storage and returns its durable
// public URL.
type ImageUploader interface {
	Upload(ctx context.Context, img *models.PendingImage) (string, error)
}

// UploadTicketSource issues the pre-signed grant for one direct upload.
type UploadTicketSource interface {
	RequestUploadTicket(ctx context.Context, filename string) (*models.UploadTicket, error)
}

// ImageUploadService drives the two-phase upload protocol: ticket from the
// backend, then raw bytes straight to storage. No automatic retry; failures
// surface to the caller for a manual re-attempt. Concurrent uploads are
// independent of each other.
type ImageUploadService struct {
	tickets    UploadTicketSource
	logger     *zerolog.Logger
	httpClient *http.Client
}

func NewImageUploadService(tickets UploadTicketSource, logger *zerolog.Logger) *ImageUploadService {
	return &ImageUploadService{
		tickets: tickets,
		logger:  logger,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Upload transfers the image and returns the durable resource URL. The
// storage convention is that the upload target before any query-string
// credential is the public URL.
func (s *ImageUploadService) Upload(ctx context.Context, img *models.PendingImage) (string, error) {
	if img == nil || len(img.Data) == 0 {
		return "", errors.New("no image data to upload")
	}

	ticket, err := s.tickets.RequestUploadTicket(ctx, img.FileName)
	if err != nil {
		uploadFailureCount.Inc()
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, ticket.UploadTarget, bytes.NewReader(img.Data))
	if err != nil {
		return "", errors.Wrap(err, "failed to create upload request")
	}
	req.Header.Set("Content-Type", img.ContentType)
	req.ContentLength = int64(len(img.Data))

	resp, err := s.httpClient.Do(req)
	if err != nil {
		uploadFailureCount.Inc()
		return "", fmt.Errorf("%w: %s", ErrTransfer, err.Error())
	}
	defer resp.Body.Close() //nolint

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		uploadFailureCount.Inc()
		return "", fmt.Errorf("%w: status %d", ErrTransfer, resp.StatusCode)
	}

	resolved := strings.SplitN(ticket.UploadTarget, "?", 2)[0]
	if ticket.ResolvedURL != "" && !strings.HasPrefix(resolved, ticket.ResolvedURL) {
		// The backend told us where the image will be served from; a mismatch
		// means the durable URL we hand out may be wrong.
		s.logger.Warn().Str("url", resolved).Str("resolvedUrlPrefix", ticket.ResolvedURL).Msg("upload target does not match the ticket's resolved URL prefix")
	}
	s.logger.Debug().Str("fileName", img.FileName).Str("url", resolved).Msg("image uploaded")
	return resolved, nil
}
