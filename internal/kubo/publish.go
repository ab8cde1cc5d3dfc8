package kubo

import (
	"context"
	"fmt"
	"sync/atomic"

	gocid "github.com/ipfs/go-cid"
	"github.com/systemshift/gitdag/internal/dag"
	"github.com/systemshift/gitdag/internal/gitobj"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultParallelism is how many blocks Publish uploads at once.
const DefaultParallelism = 8

// Publish uploads root and every stored object reachable from it, checking
// that the daemon derives the same CID for each block. The root is pinned
// once every block is in place when pin is set. It returns the number of
// blocks sent.
func Publish(ctx context.Context, k *Client, repo *dag.Repository, root gocid.Cid, pin bool) (int, error) {
	var cids []gocid.Cid
	err := repo.Walk(root, func(c gocid.Cid, _ gitobj.Node) error {
		cids = append(cids, c)
		return nil
	})
	if err != nil {
		return 0, err
	}

	var sent atomic.Int64
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(DefaultParallelism)
	for _, c := range cids {
		c := c
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			raw, err := repo.Raw(c)
			if err != nil {
				return err
			}
			got, err := k.BlockPut(raw)
			if err != nil {
				return err
			}
			if !got.Equals(c) {
				return fmt.Errorf("publish %s: daemon stored it as %s", c, got)
			}
			sent.Add(1)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return int(sent.Load()), err
	}

	if pin {
		if err := k.Pin(root); err != nil {
			return int(sent.Load()), err
		}
	}
	k.logger.Info("published", zap.Stringer("root", root), zap.Int64("blocks", sent.Load()), zap.Bool("pinned", pin))
	return int(sent.Load()), nil
}
