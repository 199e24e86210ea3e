package circulation

import "errors"

var (
	ErrNoCapture         = errors.New("no code captured")
	ErrCapturePending    = errors.New("a code is already captured, cancel it first")
	ErrEmptyCode         = errors.New("code is empty")
	ErrMemberRequired    = errors.New("select a member before checking out")
	ErrPending           = errors.New("a request is already in flight")
	ErrAlreadyDispatched = errors.New("code already processed, waiting for reset")
	ErrTrackMode         = errors.New("track mode looks codes up as soon as they are captured")
	ErrInvalidMode       = errors.New("invalid mode")
	ErrInvalidMember     = errors.New("invalid member id")
	ErrStopped           = errors.New("controller stopped")
	ErrRunning           = errors.New("controller already running")
)
