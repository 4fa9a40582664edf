package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fabiopolimeni/ufat"
	"github.com/fabiopolimeni/ufat/block/file"
)

// ufatLayoutForSize previews the geometry a format of a device of the
// given byte size would derive, assuming 512 B blocks.
func ufatLayoutForSize(size int64) (ufat.Layout, error) {
	return ufat.CalculateLayout(uint64(size)/512, 9)
}

// deviceInfo describes one discovered device node. Compatible devices are
// whole disks; partitions and loop devices are listed with a reason.
type deviceInfo struct {
	Path       string
	Compatible bool
	Reason     string
}

func discoverDevices() ([]deviceInfo, error) {
	switch runtime.GOOS {
	case "linux":
		return discoverLinux()
	case "darwin":
		return discoverDarwin()
	default:
		return nil, fmt.Errorf("unsupported OS: %s", runtime.GOOS)
	}
}

func discoverLinux() ([]deviceInfo, error) {
	entries, err := os.ReadDir("/dev")
	if err != nil {
		return nil, err
	}
	var infos []deviceInfo
	for _, e := range entries {
		name := e.Name()
		path := filepath.Join("/dev", name)
		switch {
		case isWholeLinuxDevice(name):
			infos = append(infos, deviceInfo{Path: path, Compatible: true})
		case isPartitionLinux(name):
			infos = append(infos, deviceInfo{Path: path, Compatible: false, Reason: "partition"})
		case strings.HasPrefix(name, "loop"):
			infos = append(infos, deviceInfo{Path: path, Compatible: false, Reason: "loop device"})
		}
	}
	return infos, nil
}

func isWholeLinuxDevice(name string) bool {
	// sdX, vdX
	if len(name) == 3 && (strings.HasPrefix(name, "sd") || strings.HasPrefix(name, "vd")) &&
		name[2] >= 'a' && name[2] <= 'z' {
		return true
	}
	// nvmeXnY
	if strings.HasPrefix(name, "nvme") && !strings.Contains(name, "p") {
		parts := strings.Split(name[4:], "n")
		return len(parts) == 2 && parts[0] != "" && parts[1] != ""
	}
	// mmcblkX
	if strings.HasPrefix(name, "mmcblk") && !strings.Contains(name, "p") {
		return true
	}
	return false
}

func isPartitionLinux(name string) bool {
	if (strings.HasPrefix(name, "sd") || strings.HasPrefix(name, "vd")) && len(name) >= 4 {
		return name[len(name)-1] >= '0' && name[len(name)-1] <= '9'
	}
	if strings.HasPrefix(name, "nvme") && strings.Contains(name, "p") {
		return true
	}
	if strings.HasPrefix(name, "mmcblk") && strings.Contains(name, "p") {
		return true
	}
	return false
}

func discoverDarwin() ([]deviceInfo, error) {
	entries, err := os.ReadDir("/dev")
	if err != nil {
		return nil, err
	}
	var infos []deviceInfo
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "disk") && !strings.HasPrefix(name, "rdisk") {
			continue
		}
		path := filepath.Join("/dev", name)
		// diskNsM is a partition slice.
		isPart := false
		for i := 0; i+1 < len(name); i++ {
			if name[i] == 's' && name[i+1] >= '0' && name[i+1] <= '9' {
				isPart = true
				break
			}
		}
		if isPart {
			infos = append(infos, deviceInfo{Path: path, Compatible: false, Reason: "partition"})
		} else {
			infos = append(infos, deviceInfo{Path: path, Compatible: true})
		}
	}
	return infos, nil
}

// deviceSize opens path read-only and reports its size in bytes, asking
// the kernel for block device nodes.
func deviceSize(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	d, err := file.New(f)
	if err != nil {
		return 0, err
	}
	return d.Size(), nil
}

// deviceDetails reads the type and serial of a Linux device from sysfs.
func deviceDetails(path string) (dtype, serial string) {
	dtype, serial = "Disk", "-"
	if runtime.GOOS != "linux" {
		return
	}

	name := filepath.Base(path)
	sysPath := filepath.Join("/sys/block", name)
	if _, err := os.Stat(sysPath); err != nil {
		sysPath = filepath.Join("/sys/class/block", name)
	}
	if b, err := os.ReadFile(filepath.Join(sysPath, "removable")); err == nil {
		if strings.TrimSpace(string(b)) == "1" {
			dtype = "Removable Disk"
		} else {
			dtype = "Fixed Disk"
		}
	}
	if b, err := os.ReadFile(filepath.Join(sysPath, "device", "serial")); err == nil {
		serial = strings.TrimSpace(string(b))
	}
	return
}

func mediaTypeBySize(size int64) string {
	switch size {
	case 360 * 1024:
		return "360K floppy"
	case 720 * 1024:
		return "720K floppy"
	case 1200 * 1024:
		return "1.2M floppy"
	case 1440 * 1024:
		return "1.44M floppy"
	case 2880 * 1024:
		return "2.88M floppy"
	}
	return ""
}

// mountForDevice scans /proc/self/mounts for the given device node.
func mountForDevice(dev string) string {
	b, err := os.ReadFile("/proc/self/mounts")
	if err != nil {
		return ""
	}
	for _, ln := range strings.Split(string(b), "\n") {
		fields := strings.Fields(ln)
		if len(fields) >= 2 && fields[0] == dev {
			return fields[1]
		}
	}
	return ""
}

// deviceForMount resolves a mount point to its backing device node.
func deviceForMount(target string) string {
	b, err := os.ReadFile("/proc/self/mounts")
	if err != nil {
		return ""
	}
	for _, ln := range strings.Split(string(b), "\n") {
		fields := strings.Fields(ln)
		if len(fields) >= 2 && filepath.Clean(fields[1]) == filepath.Clean(target) {
			return fields[0]
		}
	}
	return ""
}

// wholeDisk strips the partition suffix from a Linux device name,
// e.g. sda1 -> sda, nvme0n1p2 -> nvme0n1, mmcblk0p1 -> mmcblk0.
func wholeDisk(dev string) string {
	name := filepath.Base(dev)
	if !isPartitionLinux(name) {
		return dev
	}
	if strings.HasPrefix(name, "nvme") || strings.HasPrefix(name, "mmcblk") {
		if idx := strings.LastIndexByte(name, 'p'); idx != -1 {
			return filepath.Join("/dev", name[:idx])
		}
		return dev
	}
	for len(name) > 0 && name[len(name)-1] >= '0' && name[len(name)-1] <= '9' {
		name = name[:len(name)-1]
	}
	return filepath.Join("/dev", name)
}

func newDeviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "device",
		Short: "Device related utilities (safe, read-only)",
	}

	var listAll bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List devices usable with format --device (read-only)",
		RunE: func(_ *cobra.Command, _ []string) error {
			infos, err := discoverDevices()
			if err != nil {
				return err
			}
			fmt.Printf("OS: %s\n", runtime.GOOS)
			fmt.Println("This is a read-only listing. No formatting will be performed.")
			fmt.Println()
			fmt.Println("Compatible devices (usable with --device):")
			fmt.Printf("  %-18s  %-14s  %-20s  %-8s\n", "Path", "Type", "Serial", "Size")
			found := false
			for _, d := range infos {
				if !d.Compatible {
					continue
				}
				dtype, serial := deviceDetails(d.Path)
				sizeStr := "-"
				if sz, err := deviceSize(d.Path); err == nil {
					sizeStr = human(sz)
					if mt := mediaTypeBySize(sz); mt != "" {
						dtype = "Floppy"
					}
				}
				fmt.Printf("  %-18s  %-14s  %-20s  %-8s\n", d.Path, dtype, serial, sizeStr)
				found = true
			}
			if !found {
				fmt.Println("  <none detected>")
			}
			if listAll {
				fmt.Println()
				fmt.Println("Non-compatible devices (will NOT be used with --device):")
				for _, d := range infos {
					if !d.Compatible {
						fmt.Printf("  %s  (%s)\n", d.Path, d.Reason)
					}
				}
			}
			return nil
		},
	}
	listCmd.Flags().BoolVar(&listAll, "all", false, "include partitions and other non-compatible devices")
	cmd.AddCommand(listCmd)

	var infoPath string
	infoCmd := &cobra.Command{
		Use:   "info",
		Short: "Show detailed info about a device (read-only)",
		RunE: func(_ *cobra.Command, _ []string) error {
			if strings.TrimSpace(infoPath) == "" {
				return fmt.Errorf("--path is required")
			}

			// Accept a device node or a mount point.
			dev := infoPath
			if !strings.HasPrefix(dev, "/dev/") {
				if dev = deviceForMount(infoPath); dev == "" {
					return fmt.Errorf("cannot resolve device for %s", infoPath)
				}
			}
			whole := wholeDisk(dev)

			fmt.Println("Device info")
			fmt.Printf("  Input:   %s\n", infoPath)
			fmt.Printf("  Device:  %s\n", dev)
			if mnt := mountForDevice(dev); mnt != "" {
				fmt.Printf("  Mounted: %s\n", mnt)
			}
			if whole != dev {
				fmt.Printf("  Whole:   %s\n", whole)
			}
			size, err := deviceSize(whole)
			if err != nil {
				return err
			}
			fmt.Printf("  Size:    %s (%d bytes)\n", human(size), size)
			if mt := mediaTypeBySize(size); mt != "" {
				fmt.Printf("  Media:   %s\n", mt)
			}

			// Report what a format of this device would produce.
			fl, err := ufatLayoutForSize(size)
			if err != nil {
				return err
			}
			fmt.Printf("  Format:  %s, %d clusters of %d bytes\n",
				fl.Type, fl.Clusters-2, fl.SectorsPerCluster()*fl.SectorSize())
			return nil
		},
	}
	infoCmd.Flags().StringVar(&infoPath, "path", "", "device path (e.g. /dev/sdb)")
	_ = infoCmd.MarkFlagRequired("path")
	cmd.AddCommand(infoCmd)

	return cmd
}
