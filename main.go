// bbnand: NAND backup/restore and BBFS file utility for BB game
// consoles, operating on the parallel nand+spare image pairs the
// console link produces.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"bbnand/bbfs"
	"bbnand/blockview"
	"bbnand/nand"
)

var (
	nandPath  string
	sparePath string
)

func must(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
}

func human(b int64) string {
	if b >= 1024*1024 {
		return fmt.Sprintf("%dM", b/(1024*1024))
	}
	if b >= 1024 {
		return fmt.Sprintf("%dK", b/1024)
	}
	return fmt.Sprintf("%dB", b)
}

func openDevice(writable bool) (*nand.Device, error) {
	if nandPath == "" || sparePath == "" {
		return nil, fmt.Errorf("--nand and --spare are required")
	}
	pair, err := nand.OpenImagePair(nandPath, sparePath, writable)
	if err != nil {
		return nil, err
	}
	return nand.Open(pair), nil
}

func mountFS(writable bool) (*nand.Device, *bbfs.FS, error) {
	dev, err := openDevice(writable)
	if err != nil {
		return nil, nil, err
	}
	fs, err := bbfs.Mount(dev)
	if err != nil {
		dev.Close()
		return nil, nil, err
	}
	return dev, fs, nil
}

func parseBlockIndex(s string) (uint32, error) {
	var v uint64
	var err error
	if lower := strings.ToLower(s); strings.HasPrefix(lower, "0x") {
		v, err = strconv.ParseUint(lower[2:], 16, 32)
	} else {
		v, err = strconv.ParseUint(s, 10, 32)
	}
	if err != nil {
		return 0, fmt.Errorf("%q is not a block index", s)
	}
	return uint32(v), nil
}

func main() {
	root := &cobra.Command{
		Use:   "bbnand",
		Short: "BB console NAND and BBFS utility",
		Long:  "Dump, restore and inspect BB console NAND images, and manage files on the BBFS filesystem they carry",
	}
	root.PersistentFlags().StringVar(&nandPath, "nand", "", "NAND data image or device path")
	root.PersistentFlags().StringVar(&sparePath, "spare", "", "NAND spare image or device path")

	lsCmd := &cobra.Command{
		Use:   "ls",
		Short: "List files on the filesystem",
		RunE: func(_ *cobra.Command, _ []string) error {
			dev, fs, err := mountFS(false)
			if err != nil {
				return err
			}
			defer dev.Close()
			for _, fi := range fs.List() {
				fmt.Printf("%12s: %8s\n", fi.Name, human(int64(fi.Size)))
			}
			return nil
		},
	}
	root.AddCommand(lsCmd)

	var getOut string
	getCmd := &cobra.Command{
		Use:   "get <name>",
		Short: "Copy a file off the filesystem",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			dev, fs, err := mountFS(false)
			if err != nil {
				return err
			}
			defer dev.Close()
			data, err := fs.ReadFile(args[0])
			if err != nil {
				return err
			}
			out := getOut
			if out == "" {
				out = args[0]
			}
			if err := os.WriteFile(out, data, 0644); err != nil {
				return err
			}
			fmt.Printf("%s: %s written to %s\n", args[0], human(int64(len(data))), out)
			return nil
		},
	}
	getCmd.Flags().StringVar(&getOut, "out", "", "output path (default: the file's own name)")
	root.AddCommand(getCmd)

	putCmd := &cobra.Command{
		Use:   "put <source> [name]",
		Short: "Copy a local file onto the filesystem",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(_ *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			name := args[0]
			if len(args) == 2 {
				name = args[1]
			}
			dev, fs, err := mountFS(true)
			if err != nil {
				return err
			}
			defer dev.Close()
			if err := fs.WriteFile(name, data); err != nil {
				return err
			}
			fmt.Printf("%s: %s written (seq %d)\n", name, human(int64(len(data))), fs.Seq())
			return nil
		},
	}
	root.AddCommand(putCmd)

	rmCmd := &cobra.Command{
		Use:   "rm <name>",
		Short: "Delete a file from the filesystem",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			dev, fs, err := mountFS(true)
			if err != nil {
				return err
			}
			defer dev.Close()
			if err := fs.Delete(args[0]); err != nil {
				return err
			}
			fmt.Printf("%s deleted (seq %d)\n", args[0], fs.Seq())
			return nil
		},
	}
	root.AddCommand(rmCmd)

	mvCmd := &cobra.Command{
		Use:   "mv <from> <to>",
		Short: "Rename a file on the filesystem",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			dev, fs, err := mountFS(true)
			if err != nil {
				return err
			}
			defer dev.Close()
			if err := fs.Rename(args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("%s renamed to %s (seq %d)\n", args[0], args[1], fs.Seq())
			return nil
		},
	}
	root.AddCommand(mvCmd)

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Print free/used/bad block counts and the superblock sequence number",
		RunE: func(_ *cobra.Command, _ []string) error {
			dev, fs, err := mountFS(false)
			if err != nil {
				return err
			}
			defer dev.Close()
			s := fs.Stats()
			n := dev.Blocks()
			fmt.Printf("Blocks: %d (%s)\n", n, human(int64(n)*nand.BlockSize))
			fmt.Printf("  Free: %6d (%s)\n", s.Free, human(int64(s.Free)*nand.BlockSize))
			fmt.Printf("  Used: %6d (%s)\n", s.Used, human(int64(s.Used)*nand.BlockSize))
			fmt.Printf("  Bad:  %6d\n", s.Bad)
			fmt.Printf("Superblock sequence: %d\n", s.Seq)
			return nil
		},
	}
	root.AddCommand(statsCmd)

	var dumpNandOut, dumpSpareOut string
	dumpCmd := &cobra.Command{
		Use:   "dump",
		Short: "Dump the whole NAND to a data+spare image pair",
		Long:  "Read every block, bad blocks included, into two parallel files: a faithful raw snapshot for backup and diagnostics",
		RunE: func(_ *cobra.Command, _ []string) error {
			dev, err := openDevice(false)
			if err != nil {
				return err
			}
			defer dev.Close()
			data, spare, err := nand.Dump(dev)
			if err != nil {
				var te *nand.TransferError
				if !errors.As(err, &te) {
					return err
				}
				fmt.Fprintf(os.Stderr, "WARNING: %v\n", te)
			}
			if err := os.WriteFile(dumpNandOut, data, 0644); err != nil {
				return err
			}
			if err := os.WriteFile(dumpSpareOut, spare, 0644); err != nil {
				return err
			}
			fmt.Printf("Dumped %d blocks to %s (%s) and %s (%s)\n",
				dev.Blocks(), dumpNandOut, human(int64(len(data))), dumpSpareOut, human(int64(len(spare))))
			return nil
		},
	}
	dumpCmd.Flags().StringVar(&dumpNandOut, "out-nand", "nand.bin", "output path for block data")
	dumpCmd.Flags().StringVar(&dumpSpareOut, "out-spare", "spare.bin", "output path for spare data")
	root.AddCommand(dumpCmd)

	var (
		restNandIn, restSpareIn, restRange string
		restForce, restUI                  bool
	)
	restoreCmd := &cobra.Command{
		Use:   "restore --in-nand <file> --in-spare <file>",
		Short: "Write an image pair back to the NAND, optionally restricted to a block range",
		RunE: func(_ *cobra.Command, _ []string) error {
			if !restForce {
				return fmt.Errorf("restore overwrites the device; --force is required")
			}
			data, err := os.ReadFile(restNandIn)
			if err != nil {
				return err
			}
			spare, err := os.ReadFile(restSpareIn)
			if err != nil {
				return err
			}
			dev, err := openDevice(true)
			if err != nil {
				return err
			}
			defer dev.Close()
			bad, err := nand.ScanBadBlocks(dev)
			if err != nil {
				return err
			}
			selection, err := nand.ParseRanges(restRange, dev.Blocks())
			if err != nil {
				return err
			}

			var progress func(index uint32, skipped bool) error
			var view *blockview.View
			if restUI {
				view, err = blockview.New()
				if err != nil {
					return fmt.Errorf("ui init: %w", err)
				}
				defer view.Close()

				sigChan := make(chan os.Signal, 1)
				signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
				go func() {
					<-sigChan
					view.RequestStop()
				}()

				classes := make([]blockview.Class, dev.Blocks())
				for i := range classes {
					if bad.IsBad(uint32(i)) {
						classes[i] = blockview.Bad
					}
				}
				view.SetTitle(fmt.Sprintf("RESTORE (%d blocks)", dev.Blocks()))
				view.SetClasses(classes)
				start := time.Now()
				done := 0
				total := len(selection)
				if total == 0 {
					total = int(dev.Blocks())
				}
				progress = func(index uint32, skipped bool) error {
					if view.IsStopped() {
						return blockview.ErrInterrupted
					}
					if !skipped {
						view.Mark(index, blockview.Written)
					}
					done++
					view.SetStatus([]string{
						fmt.Sprintf("Block: %#06x   Done: %d / %d   Elapsed: %s",
							index, done, total, time.Since(start).Truncate(time.Second)),
					})
					view.Draw()
					return nil
				}
				view.Draw()
			}

			report, err := nand.Restore(dev, bad, data, spare, selection, progress)
			if view != nil {
				view.Close()
			}
			if err != nil {
				if errors.Is(err, blockview.ErrInterrupted) {
					fmt.Fprintf(os.Stderr, "Interrupted: %d blocks written before stop\n", len(report.Written))
					return nil
				}
				var te *nand.TransferError
				if !errors.As(err, &te) {
					return err
				}
				fmt.Fprintf(os.Stderr, "WARNING: %v\n", te)
			}
			fmt.Printf("Restored %d blocks", len(report.Written))
			if len(report.Skipped) > 0 {
				fmt.Printf(", skipped %d bad", len(report.Skipped))
			}
			if len(report.Failed) > 0 {
				fmt.Printf(", %d FAILED", len(report.Failed))
			}
			fmt.Println()
			return nil
		},
	}
	restoreCmd.Flags().StringVar(&restNandIn, "in-nand", "", "source block data image")
	restoreCmd.Flags().StringVar(&restSpareIn, "in-spare", "", "source spare data image")
	restoreCmd.Flags().StringVar(&restRange, "range", "", "block range spec, e.g. 0-0x40,0xff0- (default: whole image)")
	restoreCmd.Flags().BoolVar(&restForce, "force", false, "confirm overwriting device contents")
	restoreCmd.Flags().BoolVar(&restUI, "ui", false, "show fullscreen progress map")
	_ = restoreCmd.MarkFlagRequired("in-nand")
	_ = restoreCmd.MarkFlagRequired("in-spare")
	root.AddCommand(restoreCmd)

	var blkNandOut, blkSpareOut string
	blockCmd := &cobra.Command{
		Use:   "block <index>",
		Short: "Read a single block and its spare to files",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			idx, err := parseBlockIndex(args[0])
			if err != nil {
				return err
			}
			dev, err := openDevice(false)
			if err != nil {
				return err
			}
			defer dev.Close()
			data, spare, err := dev.ReadBlock(idx)
			if err != nil {
				return err
			}
			if err := os.WriteFile(blkNandOut, data, 0644); err != nil {
				return err
			}
			if err := os.WriteFile(blkSpareOut, spare, 0644); err != nil {
				return err
			}
			fmt.Printf("Block %#x written to %s and %s\n", idx, blkNandOut, blkSpareOut)
			return nil
		},
	}
	blockCmd.Flags().StringVar(&blkNandOut, "out-nand", "block.bin", "output path for block data")
	blockCmd.Flags().StringVar(&blkSpareOut, "out-spare", "block.spare.bin", "output path for spare data")
	root.AddCommand(blockCmd)

	var sksaOut string
	sksaCmd := &cobra.Command{
		Use:   "sksa",
		Short: "Dump the secure-boot payload area",
		RunE: func(_ *cobra.Command, _ []string) error {
			dev, err := openDevice(false)
			if err != nil {
				return err
			}
			defer dev.Close()
			blob, err := bbfs.ReadSKSA(dev)
			if err != nil {
				return err
			}
			if err := os.WriteFile(sksaOut, blob, 0644); err != nil {
				return err
			}
			fmt.Printf("Secure-boot area (%s) written to %s\n", human(int64(len(blob))), sksaOut)
			return nil
		},
	}
	sksaCmd.Flags().StringVar(&sksaOut, "out", "sksa.bin", "output path")
	root.AddCommand(sksaCmd)

	var fsblockOut string
	fsblockCmd := &cobra.Command{
		Use:   "fsblock",
		Short: "Dump the authoritative filesystem superblock to a file",
		RunE: func(_ *cobra.Command, _ []string) error {
			dev, fs, err := mountFS(false)
			if err != nil {
				return err
			}
			defer dev.Close()
			idx := fs.SuperblockIndex()
			data, _, err := dev.ReadBlock(idx)
			if err != nil {
				return err
			}
			if err := os.WriteFile(fsblockOut, data, 0644); err != nil {
				return err
			}
			fmt.Printf("Superblock (block %#x, seq %d) written to %s\n", idx, fs.Seq(), fsblockOut)
			return nil
		},
	}
	fsblockCmd.Flags().StringVar(&fsblockOut, "out", "fs.bin", "output path")
	root.AddCommand(fsblockCmd)

	var (
		fmtForce  bool
		fmtBlocks uint32
	)
	formatCmd := &cobra.Command{
		Use:   "format",
		Short: "Initialize a blank filesystem on the image pair",
		Long:  "Build a fresh allocation table (secure-boot area and superblock arena reserved, scanned bad blocks excluded) and commit an empty directory with sequence 1. Creates a blank image pair if the paths do not exist.",
		RunE: func(_ *cobra.Command, _ []string) error {
			if !fmtForce {
				return fmt.Errorf("format discards the existing directory; --force is required")
			}
			if nandPath == "" || sparePath == "" {
				return fmt.Errorf("--nand and --spare are required")
			}
			var pair *nand.ImagePair
			if _, err := os.Stat(nandPath); errors.Is(err, os.ErrNotExist) {
				pair, err = nand.CreateImagePair(nandPath, sparePath, fmtBlocks)
				if err != nil {
					return err
				}
			} else {
				pair, err = nand.OpenImagePair(nandPath, sparePath, true)
				if err != nil {
					return err
				}
			}
			dev := nand.Open(pair)
			defer dev.Close()
			fs, err := bbfs.Format(dev)
			if err != nil {
				return err
			}
			s := fs.Stats()
			fmt.Printf("Formatted: %d free, %d used, %d bad blocks\n", s.Free, s.Used, s.Bad)
			return nil
		},
	}
	formatCmd.Flags().BoolVar(&fmtForce, "force", false, "confirm discarding the existing directory")
	formatCmd.Flags().Uint32Var(&fmtBlocks, "blocks", 0x1000, "block count when creating a new image pair")
	root.AddCommand(formatCmd)

	mapCmd := &cobra.Command{
		Use:   "map",
		Short: "Show a fullscreen map of free/used/system/bad blocks",
		RunE: func(_ *cobra.Command, _ []string) error {
			dev, fs, err := mountFS(false)
			if err != nil {
				return err
			}
			defer dev.Close()

			classes := make([]blockview.Class, dev.Blocks())
			for i := range classes {
				classes[i] = blockClass(fs, dev, uint32(i))
			}
			s := fs.Stats()

			view, err := blockview.New()
			if err != nil {
				return fmt.Errorf("ui init: %w", err)
			}
			defer view.Close()
			view.SetTitle(fmt.Sprintf("BLOCK MAP (%d blocks)", dev.Blocks()))
			view.SetSummary([]string{
				fmt.Sprintf("Free: %d   Used: %d   Bad: %d   Seq: %d", s.Free, s.Used, s.Bad, s.Seq),
			})
			view.SetClasses(classes)
			view.Draw()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-sigChan
				view.RequestStop()
			}()
			view.Wait()
			return nil
		},
	}
	root.AddCommand(mapCmd)

	must(root.Execute())
}

func blockClass(fs *bbfs.FS, dev *nand.Device, index uint32) blockview.Class {
	switch {
	case fs.BadBlocks().IsBad(index):
		return blockview.Bad
	case index < bbfs.SKSABlocks || index >= dev.Blocks()-bbfs.SuperblockSlots:
		return blockview.System
	case fs.BlockInUse(index):
		return blockview.Used
	default:
		return blockview.Free
	}
}
