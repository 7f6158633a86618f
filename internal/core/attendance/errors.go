package attendance

import "errors"

// Expected, recoverable outcomes of the decision engine. None of these abort
// the capture loop; they are reported per face and processing continues.
var (
	// ErrSessionNotFound means no session exists for the (name, subject) key.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionWindowExpired means the session's marking window has passed.
	ErrSessionWindowExpired = errors.New("session window expired")

	// ErrDuplicateAttendance means the person is already marked for this
	// session and date.
	ErrDuplicateAttendance = errors.New("attendance already marked")

	// ErrSessionExists means a session with the same (name, subject) key has
	// already been created.
	ErrSessionExists = errors.New("session already exists")

	// ErrNoFaceDetected means the detector found no face in the supplied
	// registration images.
	ErrNoFaceDetected = errors.New("no face detected")
)
