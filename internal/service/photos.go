package service

import (
	"errors"
	"io"
	"strings"

	"github.com/wb-go/wbf/ginext"

	"tourbook/internal/dto"
	"tourbook/internal/gallery"
	"tourbook/internal/model"
)

func (s *service) ListPhotos(ctx *ginext.Context) {
	photos, err := s.gallery.List()
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list photos")
		dto.InternalServerError(ctx)
		return
	}
	dto.SuccessResponse(ctx, photos)
}

func (s *service) UploadPhoto(ctx *ginext.Context) {
	s.storeUpload(ctx, s.gallery.SavePhoto)
}

func (s *service) storeUpload(ctx *ginext.Context, save func(name, contentType string, r io.Reader) (*gallery.Stored, error)) {
	header, err := ctx.FormFile("file")
	if err != nil {
		dto.BadResponseError(ctx, dto.ValidationFailed, "No file uploaded")
		return
	}
	f, err := header.Open()
	if err != nil {
		s.log.Error().Err(err).Str("name", header.Filename).Msg("failed to open uploaded file")
		dto.InternalServerError(ctx)
		return
	}
	defer f.Close()

	stored, err := save(header.Filename, header.Header.Get("Content-Type"), f)
	if err != nil {
		if errors.Is(err, model.ErrValidation) {
			dto.BadResponseError(ctx, dto.FieldIncorrect, validationDesc(err))
			return
		}
		s.log.Error().Err(err).Str("name", header.Filename).Msg("failed to store upload")
		dto.InternalServerError(ctx)
		return
	}
	dto.SuccessCreatedResponse(ctx, stored)
}

func (s *service) DeletePhoto(ctx *ginext.Context) {
	var req dto.DeletePhotoRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid request body")
		return
	}

	err := s.gallery.Delete(req.Filename)
	switch {
	case err == nil:
		dto.SuccessResponse(ctx, map[string]string{"filename": req.Filename})
	case errors.Is(err, gallery.ErrNotFound):
		dto.PhotoNotFoundError(ctx)
	case errors.Is(err, model.ErrValidation):
		s.log.Warn().Str("filename", req.Filename).Msg("rejected photo delete request")
		dto.BadResponseError(ctx, dto.FieldIncorrect, validationDesc(err))
	default:
		s.log.Error().Err(err).Str("filename", req.Filename).Msg("failed to delete photo")
		dto.InternalServerError(ctx)
	}
}

// validationDesc strips the sentinel prefix from a wrapped validation error.
func validationDesc(err error) string {
	return strings.TrimPrefix(err.Error(), model.ErrValidation.Error()+": ")
}
