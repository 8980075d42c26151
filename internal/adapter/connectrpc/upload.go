package connectrpc

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	backupv1 "github.com/eslsoft/deeplisten/api/backup/v1"
	"github.com/eslsoft/deeplisten/internal/entity"
)

// UploadPath receives archive uploads for later import.
const UploadPath = "/v1/uploads"

// UploadHandler stores a request body as an import archive and answers with
// its reference. The caller must be authenticated with RequireUserID.
type UploadHandler struct {
	uc      JobUsecase
	maxSize int64
	logger  logrus.FieldLogger
}

func NewUploadHandler(uc JobUsecase, maxSize int64, logger logrus.FieldLogger) *UploadHandler {
	return &UploadHandler{uc: uc, maxSize: maxSize, logger: logger}
}

func (h *UploadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut && r.Method != http.MethodPost {
		w.Header().Set("Allow", "PUT, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := UserIDFrom(r.Context())
	if !ok {
		http.Error(w, errNoCaller.Error(), http.StatusUnauthorized)
		return
	}

	body := io.Reader(r.Body)
	if h.maxSize > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxSize)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "upload too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "read upload", http.StatusBadRequest)
		return
	}

	ref, err := h.uc.Upload(r.Context(), userID, data)
	switch {
	case errors.Is(err, entity.ErrInvalidJobRequest):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		h.logger.WithError(err).WithField("user_id", userID).Error("store upload")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.logger.WithFields(logrus.Fields{"user_id": userID, "archive": ref.String(), "bytes": len(data)}).Info("archive uploaded")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(backupv1.UploadArchiveResponse{ArchiveRef: ref.String()})
}
