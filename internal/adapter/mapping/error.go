package mapping

import (
	"errors"

	"connectrpc.com/connect"

	"github.com/eslsoft/deeplisten/internal/entity"
)

// ToConnectError maps domain errors onto Connect codes. Unknown errors are
// reported as internal without leaking their text.
func ToConnectError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, entity.ErrInvalidUserID):
		return connect.NewError(connect.CodeUnauthenticated, err)
	case errors.Is(err, entity.ErrInvalidJobRequest),
		errors.Is(err, entity.ErrInvalidObjectRef),
		errors.Is(err, entity.ErrInvalidFilterOrder),
		errors.Is(err, entity.ErrInvalidArchive):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, entity.ErrJobNotFound), errors.Is(err, entity.ErrUserNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, entity.ErrJobNotDownloadable):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	default:
		return connect.NewError(connect.CodeInternal, errors.New("internal error"))
	}
}
