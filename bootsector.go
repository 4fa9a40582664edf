package ufat

import "encoding/binary"

const (
	// FAT32 reserved-region sector numbers: the FSInfo sector and the
	// start of the boot sector backup.
	fsInfoSector = 1
	backupSector = 6
)

// bootHeader is the fixed jump instruction (jmp $, nop) followed by the
// identifying string.
var bootHeader = [11]byte{
	0xeb, 0xfe,
	0x90,
	'u', 'f', 'a', 't', ' ', ' ', ' ', ' ',
}

func typeName(t Type) string {
	switch t {
	case FAT12:
		return "FAT12   "
	case FAT16:
		return "FAT16   "
	case FAT32:
		return "FAT32   "
	}
	return "FAT     "
}

// buildBootSector serializes the layout into a boot sector image of one
// full logical sector. External tools parse these fields positionally, so
// every offset matches the conventional FAT boot sector exactly.
func buildBootSector(fl *Layout) []byte {
	buf := make([]byte, fl.SectorSize())

	copy(buf, bootHeader[:])
	buf[0x1fe] = 0x55
	buf[0x1ff] = 0xaa

	// BIOS Parameter Block.
	binary.LittleEndian.PutUint16(buf[0x00b:], uint16(fl.SectorSize()))
	buf[0x00d] = uint8(fl.SectorsPerCluster())
	binary.LittleEndian.PutUint16(buf[0x00e:], uint16(fl.ReservedSectors()))
	buf[0x010] = 2 // FAT copies
	binary.LittleEndian.PutUint16(buf[0x011:], uint16(fl.RootEntries()))
	if fl.Type != FAT32 && fl.TotalSectors() <= 0xffff {
		binary.LittleEndian.PutUint16(buf[0x013:], uint16(fl.TotalSectors()))
	} else {
		binary.LittleEndian.PutUint32(buf[0x020:], fl.TotalSectors())
	}
	buf[0x015] = mediaDisk

	if fl.Type != FAT32 {
		binary.LittleEndian.PutUint16(buf[0x016:], uint16(fl.FATSectors()))
		buf[0x026] = 0x29 // extended boot signature
		copy(buf[0x02b:], "           ")
		copy(buf[0x036:], typeName(fl.Type))
	} else {
		binary.LittleEndian.PutUint32(buf[0x024:], fl.FATSectors())
		binary.LittleEndian.PutUint32(buf[0x02c:], 2) // root directory cluster
		binary.LittleEndian.PutUint16(buf[0x030:], fsInfoSector)
		binary.LittleEndian.PutUint16(buf[0x032:], backupSector)
		buf[0x042] = 0x29
		copy(buf[0x047:], "           ")
		copy(buf[0x052:], typeName(fl.Type))
	}

	return buf
}

// writeBootSector writes the boot sector at the start of the volume and,
// for FAT32, an identical backup copy at the fixed backup sector.
func (f *formatter) writeBootSector() error {
	fl := &f.fl
	buf := buildBootSector(fl)

	if err := f.writeBlocks(StepBoot, 0, buf); err != nil {
		return err
	}

	if fl.Type == FAT32 {
		backup := uint64(backupSector) << fl.log2BlocksPerSector()
		if err := f.writeBlocks(StepBoot, backup, buf); err != nil {
			return err
		}
	}

	return nil
}
