package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/TWRT/smarttask/internal/auth"
	"github.com/TWRT/smarttask/internal/metrics"
	"github.com/TWRT/smarttask/internal/storage"
)

type StorageHandler struct {
	objects        storage.ObjectStore
	bucket         string
	maxUploadBytes int64
	logger         *zap.Logger
	metrics        *metrics.Metrics
}

func NewStorageHandler(objects storage.ObjectStore, bucket string, maxUploadBytes int64, logger *zap.Logger, m *metrics.Metrics) *StorageHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StorageHandler{
		objects:        objects,
		bucket:         bucket,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
		metrics:        m,
	}
}

// Upload stores the raw request body. Callers may only write below "<their user id>/".
func (h *StorageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.PathValue("bucket") != h.bucket {
		writeError(w, http.StatusNotFound, "Bucket not found")
		return
	}
	name := r.PathValue("path")
	if err := storage.ValidateName(name); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	userID := auth.ClaimsFromContext(r.Context()).UserID()
	if !strings.HasPrefix(name, userID+"/") {
		writeError(w, http.StatusForbidden, `new row violates row-level security policy for bucket "`+h.bucket+`"`)
		return
	}

	var body io.Reader = r.Body
	if h.maxUploadBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}
	data, err := io.ReadAll(body)
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("object exceeds the maximum allowed size of %d bytes", h.maxUploadBytes))
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "Error trying to read the body: "+err.Error())
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "empty object")
		return
	}

	// Both the declared and the sniffed type must be an image. The stored type is the sniffed one.
	contentType, ok := imageContentType(r.Header.Get("Content-Type"), data)
	if !ok {
		writeError(w, http.StatusUnsupportedMediaType, "only image uploads are accepted")
		return
	}

	if err := h.objects.Put(r.Context(), name, data, contentType); err != nil {
		h.logger.Error("store object failed", zap.String("path", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Error trying to store the object")
		return
	}
	h.metrics.ObserveUpload(len(data))

	writeJSON(w, http.StatusOK, map[string]string{
		"Key": h.bucket + "/" + name,
	})
}

// Public serves an object without authentication.
func (h *StorageHandler) Public(w http.ResponseWriter, r *http.Request) {
	if r.PathValue("bucket") != h.bucket {
		writeError(w, http.StatusNotFound, "Bucket not found")
		return
	}

	obj, err := h.objects.Get(r.Context(), r.PathValue("path"))
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "Object not found")
		return
	case errors.Is(err, storage.ErrInvalidName):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.logger.Error("read object failed", zap.String("path", r.PathValue("path")), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Error trying to read the object")
		return
	}

	contentType, ok := imageContentType(obj.ContentType, obj.Data)
	if !ok {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, "", obj.ModTime, bytes.NewReader(obj.Data))
}

// imageContentType reports the sniffed type of data when both it and declared
// are image types. SVG never sniffs as an image, so scripts cannot be served inline.
func imageContentType(declared string, data []byte) (string, bool) {
	mediaType, _, err := mime.ParseMediaType(declared)
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return "", false
	}
	sniffed := http.DetectContentType(data)
	if !strings.HasPrefix(sniffed, "image/") {
		return "", false
	}
	return sniffed, true
}
