package listing

import (
	"errors"
	"fmt"

	"github.com/evcraddock/house-market/internal/geocode"
)

var (
	// ErrValidation is returned when a draft breaks a field or price rule.
	ErrValidation = errors.New("validation failed")

	// ErrTooManyImages is a validation failure for exceeding MaxImages.
	ErrTooManyImages = fmt.Errorf("%w: too many images for this listing", ErrValidation)

	// ErrInvalidAddress is returned when the address cannot be geocoded.
	ErrInvalidAddress = geocode.ErrInvalidAddress

	// ErrImageUploadFailed is returned when any new image fails to upload.
	ErrImageUploadFailed = errors.New("image upload failed")

	// ErrImageDeleteFailed marks a removed image that could not be deleted.
	// It is reported as a warning and never fails a write.
	ErrImageDeleteFailed = errors.New("image delete failed")

	// ErrPersistence is returned when the listing cannot be written.
	ErrPersistence = errors.New("saving listing failed")

	// ErrForbidden is returned when the requester does not own the listing.
	ErrForbidden = errors.New("not authorized to change this listing")

	// ErrNotFound is returned when a listing does not exist.
	ErrNotFound = errors.New("listing not found")
)
