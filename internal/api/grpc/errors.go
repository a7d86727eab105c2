package grpc

import (
	"errors"

	"github.com/formai/engine/internal/api/auth"
	"github.com/formai/engine/internal/api/validation"
	"github.com/formai/engine/internal/forms"
	"github.com/formai/engine/internal/generation"
	"github.com/formai/engine/internal/schema"
	"github.com/formai/engine/internal/storage/namespace"
	"github.com/formai/engine/internal/submissions"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// convertToGRPCStatus converts an error to a gRPC status
func convertToGRPCStatus(err error) error {
	if err == nil {
		return nil
	}

	if st, ok := status.FromError(err); ok {
		return st.Err()
	}

	return status.Error(codeOf(err), messageOf(err))
}

func codeOf(err error) codes.Code {
	var (
		requestErr     validation.RequestError
		schemaErr      *schema.InvalidError
		submissionErr  *submissions.ValidationFailedError
		inputErr       *forms.InvalidInputError
		statusErr      *namespace.InvalidStatusError
		recordErr      *namespace.InvalidRecordError
		filterErr      *namespace.InvalidFilterError
		unauthorized   auth.UnauthorizedError
		forbidden      auth.ForbiddenError
		formNotFound   *forms.NotFoundError
		recordNotFound *namespace.RecordNotFoundError
		published      *forms.AlreadyPublishedError
		closed         *submissions.SubmissionsClosedError
		transition     *forms.InvalidTransitionError
		conflict       *forms.ConflictError
		upstream       *generation.UpstreamUnavailableError
		malformed      *generation.MalformedOutputError
	)

	switch {
	case errors.As(err, &requestErr), errors.As(err, &schemaErr), errors.As(err, &submissionErr),
		errors.As(err, &inputErr), errors.As(err, &statusErr), errors.As(err, &recordErr),
		errors.As(err, &filterErr):
		return codes.InvalidArgument
	case errors.As(err, &unauthorized):
		return codes.Unauthenticated
	case errors.As(err, &forbidden):
		return codes.PermissionDenied
	case errors.As(err, &formNotFound), errors.As(err, &recordNotFound):
		return codes.NotFound
	case errors.As(err, &published):
		return codes.AlreadyExists
	case errors.As(err, &closed), errors.As(err, &transition):
		return codes.FailedPrecondition
	case errors.As(err, &conflict):
		return codes.Aborted
	case errors.As(err, &upstream), errors.As(err, &malformed):
		return codes.Unavailable
	}
	return codes.Internal
}

func messageOf(err error) string {
	if codeOf(err) == codes.Internal {
		return "internal error"
	}
	return err.Error()
}
