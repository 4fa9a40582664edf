package ufat

import "encoding/binary"

// FSInfo signature constants.
const (
	fsInfoLeadSig  = 0x41615252
	fsInfoStrucSig = 0x61417272
	fsInfoTrailSig = 0xaa550000
)

// buildFSInfo serializes the FAT32 free-cluster hint sector. The free
// count excludes the two reserved entries and the root directory's own
// cluster; the next-free hint points at the root cluster.
func buildFSInfo(fl *Layout) []byte {
	buf := make([]byte, fl.SectorSize())

	binary.LittleEndian.PutUint32(buf[0x000:], fsInfoLeadSig)
	binary.LittleEndian.PutUint32(buf[0x1e4:], fsInfoStrucSig)
	binary.LittleEndian.PutUint32(buf[0x1e8:], fl.Clusters-3)
	binary.LittleEndian.PutUint32(buf[0x1ec:], 2)
	binary.LittleEndian.PutUint32(buf[0x1fc:], fsInfoTrailSig)

	return buf
}

// writeFSInfo writes the FSInfo sector and its copy inside the backup
// boot region.
func (f *formatter) writeFSInfo() error {
	fl := &f.fl
	buf := buildFSInfo(fl)

	sector := uint64(fsInfoSector) << fl.log2BlocksPerSector()
	if err := f.writeBlocks(StepFSInfo, sector, buf); err != nil {
		return err
	}

	backup := uint64(fsInfoSector+backupSector) << fl.log2BlocksPerSector()
	return f.writeBlocks(StepFSInfo, backup, buf)
}
