package cmd

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/deploymenttheory/go-vfs/internal/transform"
	"github.com/deploymenttheory/go-vfs/internal/vfs"
	"github.com/deploymenttheory/go-vfs/internal/vfs/checksum"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/zeebo/blake3"
)

func newTouchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "touch <file>...",
		Short: "Create empty files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(func(fs *vfs.FS) error {
				for _, path := range args {
					if _, err := fs.Touch(path); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <file>...",
		Short: "Delete files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(func(fs *vfs.FS) error {
				for _, path := range args {
					if err := fs.DeleteFile(path); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func newPutCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "put <host-file>...",
		Short: "Copy host files into a folder of the container",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(func(fs *vfs.FS) error {
				if _, err := fs.ChangeToFolder(dir); err != nil {
					return err
				}
				for _, src := range args {
					node, err := fs.Copy(src)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", node.Name(), node.Size())
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", vfs.Separator, "destination folder")
	return cmd
}

func newPatchCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "patch <host-file> <file>",
		Short: "Update a container file from a host file when its content differs",
		Long: `patch stores the host file under the given container path, creating it if
needed. Without --transform the write is skipped when the content is already
identical. With --transform the source is converted first when it carries the
transform's extension; "auto" picks the transform by extension or magic number.

Transforms: ` + strings.Join(transform.Names(), ", "),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := patchTransform(name, args[0])
			if err != nil {
				return err
			}
			return withContainer(func(fs *vfs.FS) error {
				var pt vfs.PatchTransform
				if t != nil {
					pt = t
				}
				node, err := fs.Patch(args[0], args[1], pt)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\t%s\n", node.Name(), node.Size(), node.Flags())
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&name, "transform", "t", "", `transform to apply: a name, an extension or "auto"`)
	return cmd
}

func patchTransform(name, src string) (*transform.Transform, error) {
	switch name {
	case "":
		return nil, nil
	case "auto":
		return transform.ForFile(afero.NewOsFs(), src)
	default:
		return transform.Lookup(name)
	}
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <file> <host-file>",
		Short: "Export a container file to the host",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(func(fs *vfs.FS) error {
				return fs.Export(args[0], args[1])
			})
		},
	}
}

func newCatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cat <file>",
		Short: "Write a container file to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(func(fs *vfs.FS) error {
				s, err := fs.GetFileStream(args[0])
				if err != nil {
					return err
				}
				if _, err := io.Copy(cmd.OutOrStdout(), s); err != nil {
					s.Close()
					return err
				}
				return s.Close()
			})
		},
	}
}

func newAttribCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "attrib <path> [+ARHS] [-ARHS]",
		Short: "Show or change attributes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var set, clear vfs.Flags
			for _, arg := range args[1:] {
				if len(arg) < 2 || (arg[0] != '+' && arg[0] != '-') {
					return fmt.Errorf("attribute change %q must look like +R or -H", arg)
				}
				f, err := vfs.ParseFlags(arg[1:])
				if err != nil {
					return err
				}
				if arg[0] == '+' {
					set |= f
				} else {
					clear |= f
				}
			}

			return withContainer(func(fs *vfs.FS) error {
				if set|clear != 0 {
					if err := fs.SetFlags(args[0], set, clear); err != nil {
						return err
					}
				}
				node, err := lookupNode(fs, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", node.Flags(), args[0])
				return nil
			})
		},
	}
}

// lookupNode resolves a file, or failing that a folder
func lookupNode(fs *vfs.FS, path string) (*vfs.Node, error) {
	node, err := fs.GetFile(path)
	if vfs.IsNotFound(err) || vfs.IsInvalidOperation(err) {
		d, derr := fs.ChangeToFolder(path)
		if derr != nil {
			return nil, err
		}
		return d.Node(), nil
	}
	return node, err
}

func newSumCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sum <file>...",
		Short: "Print BLAKE3 and CRC-32 digests of container files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(func(fs *vfs.FS) error {
				for _, path := range args {
					b3, crc, err := digest(fs, path)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s  %08x  %s\n", b3, crc, path)
				}
				return nil
			})
		},
	}
}

func digest(fs *vfs.FS, path string) (string, uint32, error) {
	s, err := fs.GetFileStream(path)
	if err != nil {
		return "", 0, err
	}
	defer s.Close()

	h := blake3.New()
	crc := checksum.New()
	if _, err := io.Copy(io.MultiWriter(h, crc), s); err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), crc.Value(), nil
}
