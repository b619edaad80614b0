package guirpc

import (
	stderrors "errors"
	"fmt"

	"github.com/rileyhilliard/boincwatch/internal/errors"
)

// ErrUnauthorized is the cause of every error produced when the peer answers
// with an <unauthorized/> marker.
var ErrUnauthorized = stderrors.New("unauthorized")

// ResponseError carries the text of an <error> element returned by the peer.
type ResponseError struct {
	Message string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("peer returned error: %s", e.Message)
}

func unauthorizedError() error {
	return errors.WrapWithCode(ErrUnauthorized, errors.ErrUnauthorized,
		"The BOINC client rejected the request as unauthorized",
		"Check the password matches gui_rpc_auth.cfg on that host")
}

func responseError(message string) error {
	return errors.WrapWithCode(&ResponseError{Message: message}, errors.ErrResponse,
		"The BOINC client returned an error",
		"")
}

func protocolError(cause error, message string) error {
	return errors.WrapWithCode(cause, errors.ErrProtocol, message,
		"The peer may not be a BOINC client, or speaks an unsupported protocol version")
}

func connectionError(cause error, message string) error {
	return errors.WrapWithCode(cause, errors.ErrConnection, message,
		suggestionForNetError(cause))
}
