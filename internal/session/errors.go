package session

import dErrors "waypost/pkg/domain-errors"

var (
	errSessionDestroyed  = dErrors.New(dErrors.CodeUnauthorized, "session destroyed")
	errBodyNotReplayable = dErrors.New(dErrors.CodeBadRequest, "request body cannot be replayed")
)
