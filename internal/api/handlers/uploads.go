package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/hugh/turnout-tracker/internal/api/dto"
)

// Parts larger than this spill to temp files during multipart parsing.
const multipartMemory = 8 << 20

// formFile reads the "file" part of a multipart upload capped at maxBytes.
// On failure it has already written the response.
func formFile(w http.ResponseWriter, r *http.Request, maxBytes int64) (multipart.File, *multipart.FileHeader, bool) {
	tooLarge := func() {
		writeError(w, http.StatusRequestEntityTooLarge, dto.KindValidation,
			fmt.Sprintf("Upload exceeds %d MiB", maxBytes>>20))
	}
	if r.ContentLength > maxBytes {
		tooLarge()
		return nil, nil, false
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			tooLarge()
			return nil, nil, false
		}
		writeError(w, http.StatusBadRequest, dto.KindValidation, "Expected a multipart form upload")
		return nil, nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeValidation(w, map[string]string{"file": "A file is required"})
		return nil, nil, false
	}
	return file, header, true
}
