package blob

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/eslsoft/deeplisten/internal/infrastructure/config"
)

// NewSignerFromConfig builds the URL signer. Without a configured secret a
// random one is generated, so links do not survive a restart.
func NewSignerFromConfig(cfg *config.Config, logger logrus.FieldLogger) (*URLSigner, error) {
	secret := cfg.Storage.SigningSecret
	if secret == "" {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("generate signing secret: %w", err)
		}
		secret = hex.EncodeToString(buf)
		logger.Warn("storage.signing_secret is empty, using an ephemeral secret")
	}
	return NewURLSigner(secret, cfg.Server.PublicURL)
}

// NewBackendFromConfig opens the configured backend.
func NewBackendFromConfig(cfg *config.Config, signer *URLSigner, logger logrus.FieldLogger) (Backend, func(), error) {
	var (
		backend Backend
		err     error
	)
	switch strings.ToLower(cfg.Storage.Backend) {
	case "", "badger":
		backend, err = OpenBadger(BadgerConfig{
			Path:     cfg.Storage.Badger.Path,
			InMemory: cfg.Storage.Badger.InMemory,
			Logger:   logger,
		}, signer)
	case "gcs":
		backend, err = NewGCSBackend(context.Background(), GCSConfig{
			ProjectID:       cfg.Storage.GCS.ProjectID,
			CredentialsFile: cfg.Storage.GCS.CredentialsFile,
		})
	default:
		err = fmt.Errorf("unsupported storage backend %q", cfg.Storage.Backend)
	}
	if err != nil {
		return nil, nil, err
	}
	return backend, func() {
		if err := backend.Close(); err != nil {
			logger.WithError(err).Warn("close blob backend")
		}
	}, nil
}

// NewGatewayFromConfig wires the configured bucket ceilings and fallback.
func NewGatewayFromConfig(backend Backend, cfg *config.Config, logger logrus.FieldLogger) *Gateway {
	b := cfg.Storage.Buckets
	policies := []BucketPolicy{
		{Name: b.Archive.Name, MaxObjectBytes: b.Archive.MaxObjectBytes},
		{Name: b.ArchiveFallback.Name, MaxObjectBytes: b.ArchiveFallback.MaxObjectBytes},
		{Name: b.Media.Name, MaxObjectBytes: b.Media.MaxObjectBytes},
		{Name: b.Uploads.Name, MaxObjectBytes: b.Uploads.MaxObjectBytes},
	}
	return NewGateway(backend, policies, b.ArchiveFallback.Name, logger)
}
