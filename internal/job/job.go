package job

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrEmptyTarget = errors.New("empty target")
	ErrInvalidTag  = errors.New("invalid tag")
)

// DefaultReportsDir is the root of tag job outputs.
const DefaultReportsDir = "reports"

type Kind int

const (
	KindFile Kind = iota
	KindTag
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindTag:
		return "tag"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Job describes one unit of test work. It is an immutable value passed to
// exactly one worker.
type Job struct {
	ID        string
	Kind      Kind
	Target    string // file path or tag
	WorkDir   string
	OutputDir string
}

// NewFile returns a job for a single test file. Output goes to
// <parent>/reports/<file name>, so two distinct files never share it.
func NewFile(path string) (Job, error) {
	if path == "" {
		return Job{}, ErrEmptyTarget
	}
	path = filepath.Clean(path)
	return Job{
		ID:        uuid.New().String(),
		Kind:      KindFile,
		Target:    path,
		WorkDir:   ".",
		OutputDir: filepath.Join(filepath.Dir(path), DefaultReportsDir, filepath.Base(path)),
	}, nil
}

// NewTag returns a job running every test tagged with tag. Output goes to
// <root>/<tag>; an empty root means DefaultReportsDir.
func NewTag(root, tag string) (Job, error) {
	if err := validTag(tag); err != nil {
		return Job{}, err
	}
	if root == "" {
		root = DefaultReportsDir
	}
	return Job{
		ID:        uuid.New().String(),
		Kind:      KindTag,
		Target:    tag,
		WorkDir:   ".",
		OutputDir: filepath.Join(root, tag),
	}, nil
}

// a tag is a single path element, otherwise two tags could share an output dir
func validTag(tag string) error {
	switch {
	case tag == "":
		return ErrEmptyTarget
	case tag == "." || tag == "..":
		return fmt.Errorf("%w: %q", ErrInvalidTag, tag)
	case strings.ContainsAny(tag, `/\`) || strings.ContainsRune(tag, filepath.Separator):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidTag, tag)
	}
	return nil
}
