package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/deploymenttheory/go-vfs/internal/vfs"
	"github.com/spf13/cobra"
)

type listing struct {
	Path    string          `json:"path" yaml:"path"`
	Entries []vfs.EntryInfo `json:"entries" yaml:"entries"`
}

func newLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls [folder]",
		Short: "List a folder",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(func(fs *vfs.FS) error {
				if len(args) == 1 {
					if _, err := fs.ChangeToFolder(args[0]); err != nil {
						return err
					}
				}
				out := listing{
					Path:    fs.FullPath(),
					Entries: append(fs.GetDirectories(), fs.GetFiles()...),
				}
				return render(cmd.OutOrStdout(), outputFormat(cmd), out, func(w io.Writer) error {
					tw := table(w)
					for _, e := range out.Entries {
						size := fmt.Sprint(e.Size)
						if e.Directory {
							size = "<DIR>"
						}
						fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Attributes, e.Modified.Local().Format(time.DateTime), size, e.Name)
					}
					return tw.Flush()
				})
			})
		},
	}
}

func newMkdirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <folder>...",
		Short: "Create folders",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(func(fs *vfs.FS) error {
				for _, path := range args {
					if _, err := fs.CreateFolder(path); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func newRmdirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rmdir <folder>...",
		Short: "Remove empty folders",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(func(fs *vfs.FS) error {
				for _, path := range args {
					if err := fs.RemoveDirectory(path); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}
