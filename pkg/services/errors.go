package services

import "errors"

// ProtocolError is an error whose text is sent verbatim to the client
// as the reply body. Deployed clients dispatch on these exact ASCII
// tokens, so they must never be reworded.
type ProtocolError string

func (e ProtocolError) Error() string { return string(e) }

const (
	// ErrFail is the generic failure token for errors with no more
	// specific classification, including unauthenticated access.
	ErrFail ProtocolError = "fail"

	// ErrTokenFail is returned when bearer token verification or the
	// user upsert behind it fails.
	ErrTokenFail ProtocolError = "token_fail"

	// ErrInvalidFormat is returned when a payload does not split into
	// the fields the command expects.
	ErrInvalidFormat ProtocolError = "invalid_format"

	// ErrMissingFields is returned when an assertion payload has fewer
	// than its four comma-separated fields.
	ErrMissingFields ProtocolError = "missing_fields"

	// ErrInvalidChatID is returned when a chat id field is not a
	// decimal integer.
	ErrInvalidChatID ProtocolError = "invalid_chat_id"

	// ErrInvalidName is returned when a chat name is empty after
	// trimming.
	ErrInvalidName ProtocolError = "invalid_name"

	// ErrNotMember is returned when the caller is not a member of the
	// chat the operation targets.
	ErrNotMember ProtocolError = "not_member"

	// ErrAlreadyMember is returned when a join token names a chat the
	// caller already belongs to.
	ErrAlreadyMember ProtocolError = "already_member"

	// ErrNoMembers is returned by the member listing when the chat is
	// unknown or empty.
	ErrNoMembers ProtocolError = "no_members"

	// ErrInvalidToken is returned for any malformed or tampered join
	// token.
	ErrInvalidToken ProtocolError = "invalid_token"

	// ErrSecretFail is returned when the server runs without a join
	// token secret.
	ErrSecretFail ProtocolError = "secret_fail"

	// ErrCreateFailed is returned when persisting a new chat or
	// assertion fails.
	ErrCreateFailed ProtocolError = "create_failed"

	// ErrMessageFailed is returned when persisting a sent message
	// fails.
	ErrMessageFailed ProtocolError = "message_failed"

	// ErrAddFailed is returned when a membership write fails, and for
	// a repeated prediction on the same assertion.
	ErrAddFailed ProtocolError = "add_failed"

	// ErrVoteFailed is returned when persisting a vote fails.
	ErrVoteFailed ProtocolError = "vote_failed"

	// ErrAssertionNotFound is returned when an assertion id resolves
	// to nothing.
	ErrAssertionNotFound ProtocolError = "assertion_not_found"

	// ErrAssertionComplete is returned when predicting or voting on a
	// completed assertion.
	ErrAssertionComplete ProtocolError = "assertion_complete"

	// ErrCastingDeadlinePast is returned when creating an assertion
	// whose casting deadline is already over.
	ErrCastingDeadlinePast ProtocolError = "casting_deadline_past"

	// ErrValidationBeforeCasting is returned when creating an
	// assertion whose validation date does not follow its casting
	// deadline.
	ErrValidationBeforeCasting ProtocolError = "validation_before_casting"

	// ErrCastingDeadlinePassed is returned when predicting after the
	// casting deadline.
	ErrCastingDeadlinePassed ProtocolError = "casting_deadline_passed"

	// ErrInvalidConfidence is returned when a confidence is not a
	// real number in [0,1].
	ErrInvalidConfidence ProtocolError = "invalid_confidence"

	// ErrInvalidForecast is returned when a forecast is neither true
	// nor false.
	ErrInvalidForecast ProtocolError = "invalid_forecast"

	// ErrVotingNotOpen is returned when voting before the validation
	// date.
	ErrVotingNotOpen ProtocolError = "voting_not_open"
)

// Token extracts the protocol token from err. Errors that carry no
// token collapse into the generic fail token.
func Token(err error) string {
	var perr ProtocolError
	if errors.As(err, &perr) {
		return string(perr)
	}
	return string(ErrFail)
}
