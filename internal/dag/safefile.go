package dag

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
)

// SafeWrite writes data to path atomically: tempfile -> fsync -> rename.
// The tempfile lives next to path so the rename stays on one filesystem.
func SafeWrite(path string, data []byte, perm os.FileMode) (retErr error) {
	f, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()
	defer func() {
		if retErr != nil {
			retErr = multierr.Append(retErr, ignoreNotExist(os.Remove(tmp)))
		}
	}()

	if _, err := f.Write(data); err != nil {
		return multierr.Append(fmt.Errorf("write temp file: %w", err), f.Close())
	}
	if err := f.Sync(); err != nil {
		return multierr.Append(fmt.Errorf("fsync temp file: %w", err), f.Close())
	}
	if err := f.Chmod(perm); err != nil {
		return multierr.Append(fmt.Errorf("chmod temp file: %w", err), f.Close())
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename temp to target: %w", err)
	}
	return nil
}

// SafeAppend opens path for append, writes data, fsyncs, and closes.
func SafeAppend(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open for append: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		return multierr.Append(fmt.Errorf("append write: %w", err), f.Close())
	}
	if err := f.Sync(); err != nil {
		return multierr.Append(fmt.Errorf("append fsync: %w", err), f.Close())
	}
	return f.Close()
}

func ignoreNotExist(err error) error {
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
