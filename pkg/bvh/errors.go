package bvh

import "errors"

var (
	// ErrMalformed is returned when a BVH file cannot be parsed.
	ErrMalformed = errors.New("malformed bvh data")

	// ErrUnknownJoint is returned when a joint name is not in the skeleton.
	ErrUnknownJoint = errors.New("unknown joint")

	// ErrFrameRange is returned when a frame index is outside the clip.
	ErrFrameRange = errors.New("frame out of range")

	// ErrNoClips is returned when a directory holds no BVH files.
	ErrNoClips = errors.New("no bvh clips found")
)
