package fuse

import (
	"github.com/hanwen/go-fuse/v2/fs"
	gofuse "github.com/hanwen/go-fuse/v2/fuse"
	"github.com/systemshift/gitdag/internal/dag"
	"go.uber.org/zap"
)

// MountFS mounts a read-only view of repo at mountpoint.
// Returns the server (call server.Wait() to block, server.Unmount() to stop).
func MountFS(mountpoint string, repo *dag.Repository, logger *zap.Logger, debug bool) (*gofuse.Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	root := &RootNode{repo: repo, logger: logger.Named("fuse")}

	opts := &fs.Options{
		MountOptions: gofuse.MountOptions{
			FsName:        "gitdag",
			Name:          "gitdag",
			DisableXAttrs: true,
			Debug:         debug,
			Options:       []string{"ro"},
		},
	}

	server, err := fs.Mount(mountpoint, root, opts)
	if err != nil {
		return nil, err
	}
	root.logger.Info("mounted", zap.String("mountpoint", mountpoint), zap.String("repo", repo.DataDir()))
	return server, nil
}
