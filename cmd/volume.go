package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/deploymenttheory/go-vfs/internal/config"
	"github.com/deploymenttheory/go-vfs/internal/logger"
	"github.com/deploymenttheory/go-vfs/internal/vfs"
	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X .../cmd.Version=..."
var Version = "dev"

func newFormatCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "format [label]",
		Short: "Create a new, empty container",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := containerPath()
			if err != nil {
				return err
			}
			opts, err := containerOptions()
			if err != nil {
				return err
			}

			label := config.Instance.Container.Label
			if len(args) == 1 {
				label = args[0]
			}
			if cmd.Flags().Changed("cluster-size") {
				size, _ := cmd.Flags().GetInt("cluster-size")
				opts = append(opts, vfs.WithClusterSize(size))
			}

			fs := vfs.New(path, opts...)
			if err := fs.Create(force, label); err != nil {
				return err
			}
			if err := fs.Close(); err != nil {
				return err
			}
			logger.LogInfo("container ready", map[string]interface{}{
				"path":  fs.Path(),
				"label": label,
				"force": force,
			})
			fmt.Fprintf(cmd.OutOrStdout(), "formatted %s\n", fs.Path())
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing container")
	cmd.Flags().Int("cluster-size", vfs.DefaultClusterSize, "cluster size in bytes, a multiple of 32")
	return cmd
}

func newLabelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "label [name]",
		Short: "Show or set the volume label",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(func(fs *vfs.FS) error {
				if len(args) == 1 {
					if err := fs.Label(args[0]); err != nil {
						return err
					}
					logger.LogInfo("label changed", map[string]interface{}{"path": fs.Path(), "label": fs.GetLabel()})
				}
				fmt.Fprintln(cmd.OutOrStdout(), fs.GetLabel())
				return nil
			})
		},
	}
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Describe the container",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(func(fs *vfs.FS) error {
				info, err := fs.Stat()
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), outputFormat(cmd), info, func(w io.Writer) error {
					tw := table(w)
					fmt.Fprintf(tw, "Path:\t%s\n", info.Path)
					fmt.Fprintf(tw, "Label:\t%s\n", info.Label)
					fmt.Fprintf(tw, "Version:\t%#x (build %d)\n", info.Version, info.Build)
					fmt.Fprintf(tw, "Cluster size:\t%d\n", info.ClusterSize)
					fmt.Fprintf(tw, "Created:\t%s\n", info.Created.Format(time.RFC3339))
					fmt.Fprintf(tw, "Modified:\t%s\n", info.Modified.Format(time.RFC3339))
					fmt.Fprintf(tw, "Clusters:\t%d used, %d free, %d total\n", info.SlotsUsed, info.SlotsFree, info.SlotCount)
					fmt.Fprintf(tw, "Nodes:\t%d in %d index blocks\n", info.Nodes, info.IndexBlocks)
					return tw.Flush()
				})
			})
		},
	}
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify every file chain against the allocator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(func(fs *vfs.FS) error {
				report, err := fs.Check()
				if err != nil {
					return err
				}
				err = render(cmd.OutOrStdout(), outputFormat(cmd), report, func(w io.Writer) error {
					for _, p := range report.Problems {
						fmt.Fprintln(w, p)
					}
					_, err := fmt.Fprintf(w, "%d directories, %d files, %d clusters, %d problems\n",
						report.Directories, report.Files, report.Clusters, len(report.Problems))
					return err
				})
				if err != nil {
					return err
				}
				log := logger.WithFields(map[string]interface{}{"path": fs.Path()})
				if !report.OK() {
					for _, p := range report.Problems {
						log.Debugw("check problem", "problem", p)
					}
					logger.LogWarn("check found problems", map[string]interface{}{
						"path":     fs.Path(),
						"problems": len(report.Problems),
					})
					return fmt.Errorf("%w: %d problems found", vfs.ErrCorrupt, len(report.Problems))
				}
				log.Infow("check complete", "files", report.Files, "clusters", report.Clusters)
				return nil
			})
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "vfs %s (container format %#x)\n", Version, vfs.CurrentVersion)
			return err
		},
	}
}
