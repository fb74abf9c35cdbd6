package operators

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/sluice/pkg/domain"
)

// performFile runs the file instructions. Only the existence test yields a
// value. Failures of the side effect itself are wrapped in
// domain.ErrFileOperation so the controller can keep going.
func (i *Interpreter) performFile(op domain.Operator, vars *domain.VariableStore) (domain.Value, error) {
	src, err := resolvePath(vars, op.Input1)
	if err != nil {
		return domain.Value{}, err
	}

	switch op.Kind {
	case domain.OpBoolFileExists:
		_, err := os.Stat(src)
		return domain.BoolValue(err == nil), nil

	case domain.OpStringTouchFile:
		return domain.Value{}, fileErr(touch(src))

	case domain.OpStringDeleteFile:
		return domain.Value{}, fileErr(os.Remove(src))
	}

	dst, err := resolvePath(vars, op.Input2)
	if err != nil {
		return domain.Value{}, err
	}
	switch op.Kind {
	case domain.OpStringCopyFile:
		return domain.Value{}, fileErr(copyFile(src, dst))
	case domain.OpStringMoveFile:
		return domain.Value{}, fileErr(moveFile(src, dst))
	}
	return domain.Value{}, fmt.Errorf("%w: %s is not a file operator", domain.ErrInvalidOperator, op.Kind)
}

func fileErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", domain.ErrFileOperation, err)
}

func touch(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	now := time.Now()
	return os.Chtimes(path, now, now)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// moveFile renames src, copying across file systems when rename is refused.
func moveFile(src, dst string) error {
	if _, err := os.Stat(src); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) {
		return err
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}
