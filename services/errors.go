package services

import "repdayAPI/internal/apperr"

var (
	ErrChallengeNotFound   = apperr.NotFound("challenge_not_found", "challenge not found")
	ErrInviteNotFound      = apperr.NotFound("invite_not_found", "invite code not found")
	ErrParticipantNotFound = apperr.NotFound("participant_not_found", "participant not found")
	ErrUserNotFound        = apperr.NotFound("user_not_found", "user not found")

	ErrNotParticipant = apperr.Forbidden("not_participant", "you are not a participant of this challenge")
	ErrNotOwner       = apperr.Forbidden("not_owner", "only the challenge owner can do this")

	ErrCannotRemoveSelf = apperr.Validation("cannot_remove_self", "owner cannot remove themselves")

	ErrInviteLinkUnavailable = apperr.New(apperr.KindInternal, "invite_link_unavailable", "bot username is not configured")

	ErrInvalidInitData = apperr.Unauthorized("invalid_init_data", "invalid init_data")
)

func validation(code, message string) error {
	return apperr.Validation(code, message)
}
