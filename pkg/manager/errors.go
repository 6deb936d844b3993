package manager

import "errors"

// Failures returned by the Manager. Every rejected call leaves the
// environment's state untouched.
var (
	ErrAlreadyExists        = errors.New("environment already exists")
	ErrNotFound             = errors.New("environment does not exist")
	ErrInvalidLabel         = errors.New("environment label is empty")
	ErrAlreadyRunning       = errors.New("environment is already running")
	ErrAlreadyPaused        = errors.New("environment is already paused")
	ErrAlreadyStopped       = errors.New("environment is already stopped")
	ErrNotRunning           = errors.New("environment is not running")
	ErrCannotRestartStopped = errors.New("environment is stopped and cannot be restarted")
	ErrCannotPauseStopped   = errors.New("environment is stopped and cannot be paused")
	ErrEnvironmentStarted   = errors.New("environment has already left initialization")
)
