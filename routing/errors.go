package routing

import "errors"

var (
	ErrEmptyTrajectory = errors.New("empty trajectory")
	ErrNoCandidate     = errors.New("no candidate edge within range")
	ErrNoFeasiblePath  = errors.New("no feasible path between consecutive observations")
	// ErrNoMatch means no observation could be placed on the network at all
	ErrNoMatch = errors.New("no match")
	// ErrProjectionMismatch means the trajectory matched but the decoded states cannot be
	// calibrated against the input timestamps
	ErrProjectionMismatch = errors.New("decoded states do not line up with observations")
	ErrMissingTimestamps  = errors.New("observations carry no timestamps")
	ErrInvalidConfig      = errors.New("invalid matcher config")
)
