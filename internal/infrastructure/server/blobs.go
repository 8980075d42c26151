package server

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path"

	"github.com/sirupsen/logrus"

	"github.com/eslsoft/deeplisten/internal/entity"
	"github.com/eslsoft/deeplisten/internal/infrastructure/blob"
)

// newBlobHandler serves objects behind links issued by the URL signer.
func newBlobHandler(blobs *blob.Gateway, signer *blob.URLSigner, logger logrus.FieldLogger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ref := entity.ObjectRef{Bucket: r.PathValue("bucket"), Key: r.PathValue("key")}
		q := r.URL.Query()
		switch err := signer.Verify(ref.Bucket, ref.Key, q.Get("expires"), q.Get("sig")); {
		case errors.Is(err, blob.ErrSignatureExpired):
			http.Error(w, "link expired", http.StatusGone)
			return
		case err != nil:
			http.Error(w, "invalid signature", http.StatusForbidden)
			return
		}

		body, err := blobs.Open(r.Context(), ref)
		switch {
		case errors.Is(err, blob.ErrObjectNotFound), errors.Is(err, blob.ErrBucketNotFound):
			http.NotFound(w, r)
			return
		case err != nil:
			logger.WithError(err).WithField("object", ref.String()).Error("open blob")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		defer body.Close()

		name := path.Base(ref.Key)
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
		if _, err := io.Copy(w, body); err != nil {
			logger.WithError(err).WithField("object", ref.String()).Warn("stream blob")
		}
	})
}
