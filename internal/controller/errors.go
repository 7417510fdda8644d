package controller

import (
	"context"
	"errors"

	"site-cloner/internal/codec"
	"site-cloner/internal/database"
	"site-cloner/internal/model"
	"site-cloner/internal/provision"
	"site-cloner/internal/repository"
	"site-cloner/internal/rewrite"
	"site-cloner/internal/service"
	"site-cloner/internal/utils"
)

// toAppError maps service errors onto API error codes.
func toAppError(err error) *utils.AppError {
	var storeErr *database.StoreError
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return utils.NewValidationError("", err)
	case errors.Is(err, model.ErrInvalidIdentity):
		return utils.NewAppError(utils.ErrCodeInvalidIdentity, "", err)
	case errors.Is(err, repository.ErrSiteNotFound):
		return utils.NewAppError(utils.ErrCodeSiteNotFound, "", err)
	case errors.Is(err, repository.ErrUserNotFound):
		return utils.NewAppError(utils.ErrCodeUserNotFound, "", err)
	case errors.Is(err, provision.ErrAddressTaken), errors.Is(err, repository.ErrSiteExists):
		return utils.NewAppError(utils.ErrCodeAddressTaken, "", err)
	case errors.Is(err, rewrite.ErrKeyCollision), errors.Is(err, rewrite.ErrTooManyLayers), errors.Is(err, codec.ErrMalformed):
		return utils.NewAppError(utils.ErrCodeRewriteFailed, "", err)
	case errors.Is(err, context.DeadlineExceeded):
		return utils.NewAppError(utils.ErrCodeTimeout, "", err)
	case errors.As(err, &storeErr):
		return utils.NewAppError(utils.ErrCodeDatabaseError, "", err)
	default:
		return utils.AsAppError(err)
	}
}
