// Package generation forwards generation requests to the external vendor
// configured for each feature.
package generation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ManuelReschke/SoundSmith/app/models"
	"github.com/ManuelReschke/SoundSmith/app/repository"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/apperror"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/feature"
	"github.com/ManuelReschke/SoundSmith/internal/pkg/vault"
)

const (
	HeaderRequestID = "X-Request-ID"

	maxResponseBytes = 32 << 20
)

type Service struct {
	creds  repository.VendorCredentialRepository
	vault  *vault.Vault
	client *http.Client
}

func NewService(creds repository.VendorCredentialRepository, v *vault.Vault, timeout time.Duration) *Service {
	return &Service{
		creds:  creds,
		vault:  v,
		client: &http.Client{Timeout: timeout},
	}
}

// VendorInput is the admin payload for configuring a vendor.
type VendorInput struct {
	EndpointURL string `json:"endpoint_url" validate:"required,url,max=500"`
	APIKey      string `json:"api_key" validate:"required,max=500"`
}

// SetVendor stores the endpoint and the sealed API key for f, replacing any
// previous configuration.
func (s *Service) SetVendor(ctx context.Context, f feature.Type, in VendorInput, adminID uint) (*models.VendorCredential, error) {
	if !f.Valid() {
		return nil, apperror.NotFound("Feature")
	}
	in.EndpointURL = strings.TrimSpace(in.EndpointURL)
	in.APIKey = strings.TrimSpace(in.APIKey)
	if err := apperror.Validate(in); err != nil {
		return nil, err
	}
	sealed, err := s.vault.Seal(in.APIKey, f.String())
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("seal vendor key: %w", err))
	}
	cred := &models.VendorCredential{
		Feature:      f.String(),
		EndpointURL:  in.EndpointURL,
		APIKeyCipher: sealed,
		KeyHint:      vault.Hint(in.APIKey),
		UpdatedBy:    adminID,
	}
	if err := s.creds.Upsert(ctx, cred); err != nil {
		return nil, err
	}
	log.Infof("[Generation] admin %d configured vendor for %s (%s)", adminID, f, cred.KeyHint)
	return cred, nil
}

// Response is the vendor reply, passed back to the caller unchanged.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
	RequestID   string
}

func (r *Response) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Forward posts body to the vendor of f with the decrypted API key.
func (s *Service) Forward(ctx context.Context, f feature.Type, userID uint, body []byte) (*Response, error) {
	cred, err := s.creds.GetByFeature(ctx, f.String())
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.VendorUnavailable(f.String(), errors.New("no vendor configured"))
	}
	if err != nil {
		return nil, err
	}
	apiKey, err := s.vault.Open(cred.APIKeyCipher, f.String())
	if err != nil {
		return nil, apperror.VendorUnavailable(f.String(), err)
	}

	requestID := uuid.NewString()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cred.EndpointURL, bytes.NewReader(body))
	if err != nil {
		return nil, apperror.VendorUnavailable(f.String(), err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderRequestID, requestID)

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		log.Errorf("[Generation] %s request %s for user %d failed: %v", f, requestID, userID, err)
		return nil, apperror.VendorUnavailable(f.String(), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, apperror.VendorUnavailable(f.String(), err)
	}
	log.Infof("[Generation] %s request %s for user %d: status=%d in %s", f, requestID, userID, resp.StatusCode, time.Since(start).Round(time.Millisecond))

	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        raw,
		RequestID:   requestID,
	}, nil
}
