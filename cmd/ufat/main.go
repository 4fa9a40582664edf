// Command ufat creates FAT12/16/32 filesystems on image files and block
// devices. Geometry is derived from the target size alone.
package main

import (
	"fmt"
	"math/bits"
	"os"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fabiopolimeni/ufat"
	"github.com/fabiopolimeni/ufat/block"
	"github.com/fabiopolimeni/ufat/block/file"
	"github.com/fabiopolimeni/ufat/internal/retroui"
)

func must(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
}

func parseSize(s string) (int64, error) {
	ss := strings.TrimSpace(strings.ToLower(s))
	if ss == "" {
		return 0, fmt.Errorf("empty size")
	}
	mult := int64(1)
	switch {
	case strings.HasSuffix(ss, "k"):
		mult = 1024
		ss = strings.TrimSuffix(ss, "k")
	case strings.HasSuffix(ss, "m"):
		mult = 1024 * 1024
		ss = strings.TrimSuffix(ss, "m")
	case strings.HasSuffix(ss, "g"):
		mult = 1024 * 1024 * 1024
		ss = strings.TrimSuffix(ss, "g")
	case strings.HasSuffix(ss, "b"):
		ss = strings.TrimSuffix(ss, "b")
	}
	v, err := strconv.ParseFloat(ss, 64)
	if err != nil {
		return 0, err
	}
	return int64(v * float64(mult)), nil
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

// printGeometry reports the derived layout the way a format tool
// traditionally does, with absolute sector ranges per region.
func printGeometry(fl *ufat.Layout) {
	const lineWidth = 79
	barHeavy := strings.Repeat("═", lineWidth)
	barLight := strings.Repeat("─", lineWidth)

	fatStart := int64(fl.ReservedSectors())
	fat2Start := fatStart + int64(fl.FATSectors())
	rootStart := fat2Start + int64(fl.FATSectors())
	rootSectors := int64(fl.RootBlocks >> (fl.Log2SectorSize - fl.Log2BlockSize))
	dataStart := rootStart + rootSectors
	total := int64(fl.TotalSectors())

	formatRange := func(start, end int64) string {
		if end <= start {
			return fmt.Sprintf("[%06d]", start)
		}
		return fmt.Sprintf("[%06d … %06d]", start, end)
	}

	plural := "s"
	if fl.SectorsPerCluster() == 1 {
		plural = ""
	}

	lines := []string{
		barHeavy,
		" GEOMETRY (" + fl.Type.String() + ")",
		barLight,
		fmt.Sprintf(" Bytes/Sector: %-4d    Reserved: %-4d    FATs: 2    Root entries: %d",
			fl.SectorSize(), fl.ReservedSectors(), fl.RootEntries()),
		fmt.Sprintf(" Sectors/FAT: %-6d   Cluster size: %d sector%s (%d bytes)",
			fl.FATSectors(), fl.SectorsPerCluster(), plural,
			fl.SectorsPerCluster()*fl.SectorSize()),
		fmt.Sprintf(" Clusters: %-8d   Total sectors: %d", fl.Clusters-2, total),
		barLight,
		" LAYOUT (absolute sector ranges)",
		barLight,
		fmt.Sprintf(" Boot  : %s", formatRange(0, 0)),
		fmt.Sprintf(" FAT #1: %s    FAT #2: %s",
			formatRange(fatStart, fat2Start-1), formatRange(fat2Start, rootStart-1)),
	}

	dataRange := formatRange(dataStart, total-1)
	if fl.Type != ufat.FAT32 {
		lines = append(lines, fmt.Sprintf(" Root  : %s    Data  : %s",
			formatRange(rootStart, dataStart-1), dataRange))
	} else {
		lines = append(lines, fmt.Sprintf(" Data  : %s", dataRange))
	}
	lines = append(lines, barHeavy)

	for _, line := range lines {
		fmt.Println(line)
	}
}

// stopDevice aborts writes once the UI reports a stop request, so a
// running format can be interrupted between blocks.
type stopDevice struct {
	block.Device
	ui *retroui.UI
}

func (d *stopDevice) WriteAt(p []byte, off int64) (int, error) {
	if d.ui.Stopped() {
		return 0, retroui.ErrInterrupted
	}
	return d.Device.WriteAt(p, off)
}

// formatWithUI runs the format under the full-screen block map.
func formatWithUI(dev block.Device, nblk uint64, fl *ufat.Layout, target string, redrawEvery int) error {
	u, err := retroui.New()
	if err != nil {
		return err
	}
	defer u.Close()

	meta := [][2]int64{
		{0, int64(fl.ReservedBlocks) - 1},
		{int64(fl.ReservedBlocks), int64(fl.ReservedBlocks+2*fl.FATBlocks+fl.RootBlocks) - 1},
	}
	tr := retroui.NewTracker(int64(nblk), dev.BlockSize(), meta)

	u.SetTitle(fmt.Sprintf(" ufat · %s · %s · %s ", target, fl.Type, human(int64(nblk)*dev.BlockSize())))
	u.SetSummary([]string{fmt.Sprintf(" %d blocks of %d B · %d clusters", nblk, dev.BlockSize(), fl.Clusters-2)})
	u.SetLegend([]string{"░ free   ■ metadata   █ written   (q/Esc to stop)"})

	phases := []string{ufat.StepReserved.String(), ufat.StepFAT.String(), ufat.StepRoot.String()}
	if fl.Type == ufat.FAT32 {
		phases = append(phases, ufat.StepFSInfo.String())
	}
	phases = append(phases, ufat.StepBoot.String())
	u.SetPhases(phases)

	if redrawEvery < 1 {
		redrawEvery = 1
	}

	n := 0
	last := ufat.StepReserved
	notify := func(step ufat.Step, blk, count uint64) {
		if step != last {
			u.PhaseDone(last.String())
			last = step
		}
		tr.SetOp(step.String())
		tr.MarkRange(int64(blk), int64(count))
		if n++; n%redrawEvery == 0 {
			tr.Refresh(u)
		}
	}

	err = ufat.FormatProgress(&stopDevice{Device: dev, ui: u}, nblk, notify)
	if err == nil {
		u.PhaseDone(last.String())
		tr.SetOp("done")
		tr.Refresh(u)
	}
	return err
}

func newFormatCmd() *cobra.Command {
	var (
		out, device, sizeStr string
		blockSize            int64
		force, useUI         bool
		redrawEvery          int
	)

	cmd := &cobra.Command{
		Use:   "format",
		Short: "Create a FAT filesystem on an image file or block device",
		RunE: func(_ *cobra.Command, _ []string) error {
			var f *os.File
			var err error

			switch {
			case device != "":
				if !force {
					return fmt.Errorf("--device requires --force")
				}
				f, err = os.OpenFile(device, os.O_RDWR, 0)
				if err != nil {
					return err
				}
			case out != "":
				if sizeStr == "" {
					return fmt.Errorf("--out requires --size")
				}
				size, perr := parseSize(sizeStr)
				if perr != nil {
					return perr
				}
				f, err = os.Create(out)
				if err != nil {
					return err
				}
				if err = f.Truncate(size); err != nil {
					f.Close()
					return err
				}
			default:
				return fmt.Errorf("choose --out or --device")
			}

			// On a raw device, honor its native sector size when it is
			// larger than the requested block size.
			if device != "" {
				probe, perr := file.NewSize(f, blockSize)
				if perr != nil {
					f.Close()
					return perr
				}
				if ss, serr := probe.SectorSize(); serr == nil && ss > blockSize {
					log.WithField("sector_size", ss).Debug("using device sector size")
					blockSize = ss
				}
			}

			dev, err := file.NewSize(f, blockSize)
			if err != nil {
				f.Close()
				return err
			}
			defer dev.Close()

			nblk := uint64(dev.Size() / blockSize)
			fl, err := ufat.CalculateLayout(nblk, uint(bits.TrailingZeros64(uint64(blockSize))))
			if err != nil {
				return err
			}

			target := out
			if device != "" {
				target = device
			}
			log.WithFields(log.Fields{
				"target":   target,
				"type":     fl.Type.String(),
				"blocks":   nblk,
				"clusters": fl.Clusters - 2,
			}).Debug("formatting")

			if useUI {
				err = formatWithUI(dev, nblk, &fl, target, redrawEvery)
			} else {
				err = ufat.Format(dev, nblk)
			}
			if err != nil {
				return err
			}

			printGeometry(&fl)
			fmt.Printf("%s ready: %s, %d clusters\n", fl.Type, target, fl.Clusters-2)
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "output image file path")
	cmd.Flags().StringVar(&sizeStr, "size", "", "image size (e.g. 1440k, 32m, 2g)")
	cmd.Flags().StringVar(&device, "device", "", "block device path (e.g. /dev/sdb) [DANGEROUS]")
	cmd.Flags().BoolVar(&force, "force", false, "required with --device")
	cmd.Flags().Int64Var(&blockSize, "block-size", 512, "device block size in bytes")
	cmd.Flags().BoolVar(&useUI, "ui", false, "show the full-screen progress map")
	cmd.Flags().IntVar(&redrawEvery, "ui-every", 64, "redraw the map every N writes")
	return cmd
}

func main() {
	var verbose bool

	root := &cobra.Command{
		Use:   "ufat",
		Short: "FAT filesystem formatter",
		Long:  "Create FAT12/16/32 filesystems on image files and block devices.",
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if verbose {
				log.SetLevel(log.DebugLevel)
			}
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newFormatCmd())
	root.AddCommand(newDeviceCmd())

	must(root.Execute())
}
