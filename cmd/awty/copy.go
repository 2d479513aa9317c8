package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/konveyor/awty/config"
	"github.com/konveyor/awty/progress"
	"github.com/konveyor/awty/progress/stream"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
)

func CopyCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "copy SRC DST",
		Short: "Copy a file, reporting progress as bytes are read",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			rt, err := newRuntime(c.Context(), cfg, "copy",
				attribute.String("src", args[0]), attribute.String("dst", args[1]))
			if err != nil {
				return err
			}
			defer rt.close()

			if err := copyFile(rt, args[0], args[1]); err != nil {
				rt.log.Error(err, "copy failed", "src", args[0], "dst", args[1])
				return err
			}
			return nil
		},
	}
}

func copyFile(rt *runtime, src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	info, err := in.Stat()
	if err != nil {
		in.Close()
		return err
	}
	if info.IsDir() {
		in.Close()
		return fmt.Errorf("%s is a directory", src)
	}

	out, err := os.Create(dst)
	if err != nil {
		in.Close()
		return err
	}
	defer out.Close()

	// an empty file has no valid total, there is nothing to report
	if info.Size() == 0 {
		in.Close()
		return nil
	}

	_, id := progress.EnsureContextID(rt.ctx)
	op, err := progress.NewOperation(filepath.Base(src), info.Size(), rt.strategy(),
		progress.WithID(id), progress.WithLogger(rt.log))
	if err != nil {
		in.Close()
		return err
	}
	op.Report(rt.dispatcher)

	reader, err := stream.NewReader(in, op.Sink)
	if err != nil {
		in.Close()
		op.Done(err)
		return err
	}
	defer reader.Close()

	_, err = io.Copy(out, reader)
	if err == nil {
		err = out.Sync()
	}
	op.Done(err)
	return err
}
