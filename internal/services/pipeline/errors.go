package pipeline

import "errors"

var (
	// ErrSourceOpen means the video file or camera device could not be
	// opened. Fatal for that one operation; nothing was processed.
	ErrSourceOpen = errors.New("could not open frame source")

	// ErrEncoderUnavailable means every codec in the preference list failed
	// to open an output writer.
	ErrEncoderUnavailable = errors.New("no available video encoder")

	// ErrCameraActive is returned when a second live session is requested
	// while one is already running.
	ErrCameraActive = errors.New("camera session already active")

	// ErrNoCameraSession is returned by stop/status calls when no live
	// session exists.
	ErrNoCameraSession = errors.New("no active camera session")
)
