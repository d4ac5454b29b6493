package app

// Reason codes surfaced to clients on failed acks. Validation and
// not-found reasons are final; state-conflict reasons mean "wait for the
// in-flight operation", not "retry".
const (
	ReasonMissingRoomOrUser = "missing-room-or-user"
	ReasonAlreadyJoining    = "already-joining"
	ReasonAlreadyLeaving    = "already-leaving"
	ReasonUserNotFound      = "user-not-found"
	ReasonRoomNotFound      = "room-not-found"
	ReasonRoomFull          = "room-full"
	ReasonStorage           = "storage-error"
	ReasonNotJoined         = "not-joined"
	ReasonSuperseded        = "superseded"
	ReasonBadPayload        = "bad-payload"
	ReasonInvalidLength     = "invalid-length"
	ReasonNameTaken         = "name-taken"
	ReasonNotOwner          = "not-owner"
	ReasonInvalidCode       = "invalid-code"
	ReasonMissingFields     = "missing-fields"
)
