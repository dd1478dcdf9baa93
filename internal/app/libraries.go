package app

import (
	"fmt"
	"path/filepath"

	"github.com/teslashibe/go-locomotion/internal/config"
	"github.com/teslashibe/go-locomotion/pkg/bvh"
	"github.com/teslashibe/go-locomotion/pkg/motion"
)

// LoadSelecter reads the idle folder and every mode folder and authors the
// segment libraries.
func LoadSelecter(lib config.Library, ch config.Character) (*motion.Selecter, error) {
	opts := motion.LibraryOptions{
		ContactJoints:    ch.ContactJoints,
		FacingJoints:     ch.FacingJoints,
		MinSegmentFrames: lib.MinSegmentFrames,
		WindowFrames:     lib.IdleSegmentFrames,
	}

	clips, err := bvh.LoadDir(lib.Idle)
	if err != nil {
		return nil, fmt.Errorf("idle library: %w", err)
	}
	idle, err := motion.NewIdleLibrary(libraryName(lib.Idle), clips, opts)
	if err != nil {
		return nil, fmt.Errorf("idle library: %w", err)
	}

	modes := make([]*motion.Library, 0, len(lib.Modes))
	for i, dir := range lib.Modes {
		clips, err := bvh.LoadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("mode %d library: %w", i, err)
		}
		l, err := motion.NewLibrary(libraryName(dir), clips, opts)
		if err != nil {
			return nil, fmt.Errorf("mode %d library: %w", i, err)
		}
		modes = append(modes, l)
	}

	return motion.NewSelecter(idle, modes, motion.SelecterOptions{
		RotationTolerance:    lib.RotationTolerance,
		TranslationTolerance: lib.TranslationTolerance,
	})
}

func libraryName(dir string) string {
	return filepath.Base(filepath.Clean(dir))
}
