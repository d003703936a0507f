// Package loader builds flash images for the device: from RISC-V ELF32
// executables, from raw binaries and from instruction lists.
package loader

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/sarchlab/qvcheck/insts"
)

// SegmentFlags represents memory protection flags for a segment.
type SegmentFlags uint32

const (
	// SegmentFlagExecute indicates the segment is executable.
	SegmentFlagExecute SegmentFlags = 1 << iota
	// SegmentFlagWrite indicates the segment is writable.
	SegmentFlagWrite
	// SegmentFlagRead indicates the segment is readable.
	SegmentFlagRead
)

// FlashSize is the size of the flash address range. The device starts
// fetching at address 0.
const FlashSize = 0x1000000

// Segment represents a loadable segment from an ELF binary.
type Segment struct {
	// Addr is the address where this segment should be loaded.
	Addr uint32
	// Data contains the segment contents from the file.
	Data []byte
	// MemSize is the size in memory (may be larger than len(Data) for BSS).
	MemSize uint32
	Flags   SegmentFlags
}

// InFlash reports whether the whole segment lies in flash.
func (s Segment) InFlash() bool {
	return uint64(s.Addr)+uint64(s.MemSize) <= FlashSize
}

// Program represents a loaded ELF program.
type Program struct {
	EntryPoint uint32
	Segments   []Segment
}

// Load parses a RISC-V ELF32 executable.
func Load(path string) (*Program, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if f.Class != elf.ELFCLASS32 {
		return nil, fmt.Errorf("not a 32-bit ELF file")
	}

	if f.Machine != elf.EM_RISCV {
		return nil, fmt.Errorf("not a RISC-V ELF file (machine type: %v)", f.Machine)
	}

	prog := &Program{EntryPoint: uint32(f.Entry)}

	for _, phdr := range f.Progs {
		if phdr.Type != elf.PT_LOAD {
			continue
		}

		data := make([]byte, phdr.Filesz)
		if phdr.Filesz > 0 {
			n, err := phdr.ReadAt(data, 0)
			if err != nil && err != io.EOF {
				return nil, fmt.Errorf("failed to read segment at 0x%x: %w", phdr.Vaddr, err)
			}
			if uint64(n) != phdr.Filesz {
				return nil, fmt.Errorf("short read for segment at 0x%x: got %d bytes, expected %d",
					phdr.Vaddr, n, phdr.Filesz)
			}
		}

		var flags SegmentFlags
		if phdr.Flags&elf.PF_X != 0 {
			flags |= SegmentFlagExecute
		}
		if phdr.Flags&elf.PF_W != 0 {
			flags |= SegmentFlagWrite
		}
		if phdr.Flags&elf.PF_R != 0 {
			flags |= SegmentFlagRead
		}

		prog.Segments = append(prog.Segments, Segment{
			Addr:    uint32(phdr.Vaddr),
			Data:    data,
			MemSize: uint32(phdr.Memsz),
			Flags:   flags,
		})
	}

	return prog, nil
}

// FlashImage lays the flash segments out from address 0. Segments in RAM
// must carry no file data: RAM holds nothing at reset, so initialised data
// has to be copied there by the firmware itself.
func (p *Program) FlashImage() ([]byte, error) {
	if p.EntryPoint != 0 {
		return nil, fmt.Errorf("entry point 0x%x, the device starts at 0", p.EntryPoint)
	}

	var image []byte

	for _, seg := range p.Segments {
		if !seg.InFlash() {
			if len(seg.Data) > 0 {
				return nil, fmt.Errorf("segment at 0x%x: %d bytes of data outside flash",
					seg.Addr, len(seg.Data))
			}
			continue
		}

		end := int(seg.Addr) + len(seg.Data)
		if end > len(image) {
			image = append(image, make([]byte, end-len(image))...)
		}
		copy(image[seg.Addr:], seg.Data)
	}

	if len(image) == 0 {
		return nil, fmt.Errorf("no flash contents")
	}

	return image, nil
}

// LoadImage reads a flash image from path. ELF files are laid out with
// FlashImage; anything else is taken as a raw binary starting at 0.
func LoadImage(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	if !bytes.HasPrefix(raw, []byte(elf.ELFMAG)) {
		if len(raw) == 0 || len(raw) > FlashSize {
			return nil, fmt.Errorf("raw image of %d bytes does not fit flash", len(raw))
		}
		return raw, nil
	}

	prog, err := Load(path)
	if err != nil {
		return nil, err
	}

	return prog.FlashImage()
}

// Assemble encodes list back to back into a flash image.
func Assemble(enc *insts.Encoder, list []insts.Instruction) ([]byte, error) {
	var image []byte

	for i, inst := range list {
		word, err := enc.Encode(inst)
		if err != nil {
			return nil, fmt.Errorf("instruction %d (%s): %w", i, inst, err)
		}

		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], word)
		image = append(image, buf[:inst.Length()]...)
	}

	return image, nil
}
