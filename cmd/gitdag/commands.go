package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	gocid "github.com/ipfs/go-cid"
	"github.com/spf13/cobra"
	"github.com/systemshift/gitdag/internal/config"
	"github.com/systemshift/gitdag/internal/dag"
	gitfuse "github.com/systemshift/gitdag/internal/fuse"
	"github.com/systemshift/gitdag/internal/gitobj"
	"github.com/systemshift/gitdag/internal/kubo"
	"github.com/systemshift/gitdag/internal/logging"
	"github.com/systemshift/gitdag/internal/loose"
	"go.uber.org/zap"
)

// resolve accepts a CID in any multibase or the name of a ref.
func resolve(repo *dag.Repository, arg string) (gocid.Cid, error) {
	if c, err := gocid.Decode(arg); err == nil {
		return c, nil
	}
	c, err := repo.Refs.Get(arg)
	if err != nil {
		return gocid.Undef, fmt.Errorf("%q is neither a CID nor a known ref", arg)
	}
	return c, nil
}

func newConfigInitCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a config file with default values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Init(g.configPath, config.Default()); err != nil {
				return fmt.Errorf("failed to initialize config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration initialized at %s\n", g.configPath)
			return nil
		},
	}
}

func newConfigShowCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			return config.Write(cmd.OutOrStdout(), cfg)
		},
	}
}

func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse [file|-]",
		Short: "Decode a raw git object and print its identifier and links",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				raw []byte
				err error
			)
			if len(args) == 0 || args[0] == "-" {
				raw, err = io.ReadAll(cmd.InOrStdin())
			} else {
				raw, err = os.ReadFile(args[0])
			}
			if err != nil {
				return err
			}
			node, err := gitobj.ParseObject(raw)
			if err != nil {
				return err
			}
			c, err := gitobj.Sum(raw)
			if err != nil {
				return err
			}
			return printNode(cmd.OutOrStdout(), c, node)
		},
	}
}

func printNode(out io.Writer, c gocid.Cid, node gitobj.Node) error {
	w := tabwriter.NewWriter(out, 0, 4, 1, ' ', 0)
	fmt.Fprintf(w, "cid\t%s\n", c)
	fmt.Fprintf(w, "kind\t%s\n", node.Kind())
	switch n := node.(type) {
	case *gitobj.BlobNode:
		fmt.Fprintf(w, "size\t%s\n", humanize.Bytes(uint64(len(n.Data()))))
	case *gitobj.TreeNode:
		for _, e := range n.Entries() {
			fmt.Fprintf(w, "entry\t%s %s\t%s\n", e.Mode, e.Name, e.Cid)
		}
	case *gitobj.CommitNode:
		fmt.Fprintf(w, "tree\t%s\n", n.Tree)
		for _, p := range n.Parents {
			fmt.Fprintf(w, "parent\t%s\n", p)
		}
		printUser(w, "author", n.Author)
		printUser(w, "committer", n.Committer)
	}
	return w.Flush()
}

func printUser(w io.Writer, role string, u gitobj.UserInfo) {
	when := u.Timestamp + " " + u.Timezone
	if t, err := u.Time(); err == nil {
		when = t.Format("2006-01-02 15:04:05 -0700")
	}
	fmt.Fprintf(w, "%s\t%s <%s> %s\n", role, u.Name, u.Email, when)
}

func newImportCmd(g *globalFlags) *cobra.Command {
	var gitDir string
	cmd := &cobra.Command{
		Use:   "import <rev>...",
		Short: "Import objects reachable from revisions of a git repository",
		Long: "Import copies every loose object reachable from each revision " +
			"(a hex object id, HEAD, or a branch or tag name) into the store. " +
			"Ref names are recorded as refs of the same name.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.newEnv(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			src, err := loose.Open(gitDir)
			if err != nil {
				return err
			}
			unlock, err := e.lock(cmd.Context())
			if err != nil {
				return err
			}
			defer unlock()

			for _, rev := range args {
				root, err := src.Resolve(rev)
				if err != nil {
					return err
				}
				n, err := importRoot(e, src, root)
				if err != nil {
					return err
				}
				if _, hexErr := gitobj.HexToCID(rev); hexErr != nil {
					if err := e.repo.SetRef(rev, root, "import: "+gitDir); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d new objects\n", rev, root, n)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&gitDir, "git-dir", ".git", "Path to the git directory")
	return cmd
}

func importRoot(e *env, src dag.ObjectReader, root gocid.Cid) (int, error) {
	defer logging.Defer(e.logger, "import", zap.Stringer("root", root))()
	return e.repo.ImportGraph(src, root)
}

func newFetchCmd(g *globalFlags) *cobra.Command {
	var refName string
	cmd := &cobra.Command{
		Use:   "fetch <cid>",
		Short: "Import an object graph from the IPFS daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.newEnv(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			root, err := gocid.Decode(args[0])
			if err != nil {
				return fmt.Errorf("parse cid: %w", err)
			}
			client := kubo.NewClient(e.cfg.Kubo.APIURL, e.cfg.Kubo.Timeout.Duration, e.logger)
			if !client.IsAvailable() {
				return fmt.Errorf("kubo daemon not available at %s", e.cfg.Kubo.APIURL)
			}
			unlock, err := e.lock(cmd.Context())
			if err != nil {
				return err
			}
			defer unlock()

			n, err := importRoot(e, client, root)
			if err != nil {
				return err
			}
			if refName != "" {
				if err := e.repo.SetRef(refName, root, "fetch: "+e.cfg.Kubo.APIURL); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d new objects\n", root, n)
			return nil
		},
	}
	cmd.Flags().StringVar(&refName, "ref", "", "Record the fetched root under this ref name")
	return cmd
}

func newLinksCmd(g *globalFlags) *cobra.Command {
	var reverse bool
	cmd := &cobra.Command{
		Use:   "links <cid|ref>",
		Short: "List the links recorded for an object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.newEnv(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			c, err := resolve(e.repo, args[0])
			if err != nil {
				return err
			}
			id := dag.CIDToFilename(c)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 1, ' ', 0)
			if reverse {
				for _, l := range e.repo.Links.LinksTo(id) {
					fmt.Fprintf(w, "%s\t%s\n", l.Type, l.Source)
				}
			} else {
				for _, l := range e.repo.Links.LinksFrom(id) {
					fmt.Fprintf(w, "%s\t%s\n", l.Type, l.Target)
				}
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVarP(&reverse, "reverse", "r", false, "List objects linking to this one instead")
	return cmd
}

func newWalkCmd(g *globalFlags) *cobra.Command {
	var kindFilter string
	cmd := &cobra.Command{
		Use:   "walk <cid|ref>",
		Short: "List stored objects reachable from an object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.newEnv(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			var only gitobj.ObjectKind
			if kindFilter != "" {
				if only, err = gitobj.ParseObjectKind([]byte(kindFilter)); err != nil {
					return err
				}
			}
			root, err := resolve(e.repo, args[0])
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 1, ' ', 0)
			var total uint64
			err = e.repo.Walk(root, func(c gocid.Cid, node gitobj.Node) error {
				raw, err := e.repo.Raw(c)
				if err != nil {
					return err
				}
				total += uint64(len(raw))
				if only != 0 && node.Kind() != only {
					return nil
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", c, node.Kind(), humanize.Bytes(uint64(len(raw))))
				return nil
			})
			if err != nil {
				return err
			}
			if err := w.Flush(); err != nil {
				return err
			}
			e.logger.Debug("walk done", zap.Stringer("root", root), zap.String("total", humanize.Bytes(total)))
			return nil
		},
	}
	cmd.Flags().StringVar(&kindFilter, "kind", "", "Only print objects of this kind [blob,tree,commit]")
	return cmd
}

func newRefsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "refs",
		Short: "List refs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.newEnv(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			names, err := e.repo.Refs.List()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 1, ' ', 0)
			for _, name := range names {
				c, err := e.repo.Refs.Get(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%s\n", name, c)
			}
			return w.Flush()
		},
	}
}

func newRefLogCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "reflog [ref]",
		Short: "Show the history of ref updates, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.newEnv(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			var ref string
			if len(args) == 1 {
				ref = args[0]
			}
			entries, err := e.repo.RefLog.History(ref)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 1, ' ', 0)
			for _, entry := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", entry.Time, entry.Ref, entry.New, entry.Message)
			}
			return w.Flush()
		},
	}
}

func newPublishCmd(g *globalFlags) *cobra.Command {
	var pin bool
	cmd := &cobra.Command{
		Use:   "publish <cid|ref>",
		Short: "Upload an object graph to the IPFS daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.newEnv(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			root, err := resolve(e.repo, args[0])
			if err != nil {
				return err
			}
			client := kubo.NewClient(e.cfg.Kubo.APIURL, e.cfg.Kubo.Timeout.Duration, e.logger)
			if !client.IsAvailable() {
				return fmt.Errorf("kubo daemon not available at %s", e.cfg.Kubo.APIURL)
			}
			n, err := kubo.Publish(cmd.Context(), client, e.repo, root, pin)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d blocks\n", root, n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&pin, "pin", true, "Pin the root after upload")
	return cmd
}

func newMountCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mount <dir>",
		Short: "Mount a read-only view of the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.newEnv(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			mountpoint := args[0]
			if err := os.MkdirAll(mountpoint, 0755); err != nil {
				return fmt.Errorf("create mountpoint: %w", err)
			}
			server, err := gitfuse.MountFS(mountpoint, e.repo, e.logger, e.cfg.Fuse.Debug)
			if err != nil {
				return fmt.Errorf("mount failed: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				e.logger.Info("shutting down")
				if err := server.Unmount(); err != nil {
					e.logger.Warn("unmount", zap.Error(err))
				}
			}()

			e.logger.Info("ready", zap.Int("pid", os.Getpid()))
			server.Wait()
			return nil
		},
	}
}
