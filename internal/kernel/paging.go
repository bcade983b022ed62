package kernel

// paging.go builds and installs the per-slot page translations. Every slot owns a page directory,
// a page table for the low 4 MB, and a page table for the user console page; the structures live
// in a fixed physical region so the directory entries can name them by address.

// PTE is a page directory or page table entry: a 4 KB-aligned frame address plus flag bits. The
// same shape serves both levels; directory entries with the size bit set map a 4 MB page.
type PTE uint32

// Page entry flag bits.
const (
	PagePresent PTE = 1 << 0
	PageWrite   PTE = 1 << 1
	PageUser    PTE = 1 << 2
	PageSize4M  PTE = 1 << 7

	pteFrameMask PTE = 0xFFFFF000
)

// Frame returns the physical frame address named by the entry.
func (e PTE) Frame() PhysAddr { return PhysAddr(e & pteFrameMask) }

// Present reports whether the entry maps anything.
func (e PTE) Present() bool { return e&PagePresent != 0 }

const pagingEntries = 1024

// PageDirectory is the top translation level: each entry covers 4 MB.
type PageDirectory [pagingEntries]PTE

// PageTable is the second translation level: each entry covers 4 KB.
type PageTable [pagingEntries]PTE

// AddressSpace is the paging state of one slot. The three structures occupy the slot's 16 KB
// region within the paging area, in this order.
type AddressSpace struct {
	dir  PageDirectory
	low  PageTable // Maps the low 4 MB: just the framebuffer page.
	user PageTable // Maps the per-process console page.
}

const pagingStructSize = 4 * pageSize

// pagingStructPhys returns the physical address of a slot's paging structures.
func pagingStructPhys(slot int) PhysAddr {
	return PagingPhysBase + PhysAddr(slot)*pagingStructSize
}

// pagingStructSlot reverses pagingStructPhys: which slot's region holds the address.
func pagingStructSlot(pa PhysAddr) (slot int, off PhysAddr, ok bool) {
	if pa < PagingPhysBase || pa >= PagingPhysBase+MaxProcs*pagingStructSize {
		return 0, 0, false
	}

	rel := pa - PagingPhysBase

	return int(rel / pagingStructSize), rel % pagingStructSize, true
}

// tableAt resolves a physical address stored in a directory entry back to the page table it
// names. Only addresses inside the paging area are valid table pointers.
func (k *Kernel) tableAt(pa PhysAddr) *PageTable {
	slot, off, ok := pagingStructSlot(pa)
	if !ok {
		return nil
	}

	switch off {
	case pageSize:
		return &k.paging[slot].low
	case 2 * pageSize:
		return &k.paging[slot].user
	default:
		return nil
	}
}

// buildForSlot (re)initializes a slot's paging structures to the fixed layout: the framebuffer
// page in the low 4 MB, the kernel large page, the paging-area window, the slot's program window,
// and the console page backed by consoleFrame. It is idempotent.
func (k *Kernel) buildForSlot(slot int, consoleFrame PhysAddr) {
	as := &k.paging[slot]
	*as = AddressSpace{}

	base := pagingStructPhys(slot)

	// 0..4 MB: small pages, framebuffer only, kernel-only access.
	as.low[VideoPhysAddr/pageSize] = PTE(VideoPhysAddr) | PagePresent | PageWrite
	as.dir[0] = PTE(base+pageSize) | PagePresent | PageWrite

	// 4..8 MB: the kernel image, one large page, identity mapped.
	as.dir[KernelPhysBase/largePage] = PTE(KernelPhysBase) | PagePresent | PageWrite | PageSize4M

	// The paging area itself, so the core can rewrite directories.
	as.dir[PagingPhysBase/largePage] = PTE(PagingPhysBase) | PagePresent | PageWrite | PageSize4M

	// The per-process program window.
	as.dir[uint32(ProgVirtBase)/largePage] = PTE(progPhys(slot)) |
		PagePresent | PageWrite | PageUser | PageSize4M

	// The per-process console page.
	as.user[uint32(VideoVirtAddr)/pageSize%pagingEntries] = PTE(consoleFrame) |
		PagePresent | PageWrite | PageUser
	as.dir[uint32(VideoVirtAddr)/largePage] = PTE(base+2*pageSize) |
		PagePresent | PageWrite | PageUser
}

// install makes the slot's page directory the live translation and flushes cached translations.
func (k *Kernel) install(slot int) {
	k.cr3 = slot
	k.flushTLB()
}

// setConsoleFrame rebinds only the slot's console page to the given frame, then invalidates the
// cached translation for that page.
func (k *Kernel) setConsoleFrame(slot int, frame PhysAddr) {
	as := &k.paging[slot]
	as.user[uint32(VideoVirtAddr)/pageSize%pagingEntries] = PTE(frame) |
		PagePresent | PageWrite | PageUser

	if slot == k.cr3 {
		delete(k.tlb, uint32(VideoVirtAddr)&^(pageSize-1))
	}
}

func (k *Kernel) flushTLB() {
	clear(k.tlb)
}

type tlbEntry struct {
	frame PhysAddr
	flags PTE
	large bool
}

// translate walks the installed page directory for a virtual address. user and write are the
// access attributes; a missing mapping or a privilege mismatch returns a fault.
func (k *Kernel) translate(va VirtAddr, user, write bool) (PhysAddr, *fault) {
	pageBase := uint32(va) &^ (pageSize - 1)

	entry, hit := k.tlb[pageBase]
	if !hit {
		as := &k.paging[k.cr3]

		pde := as.dir[uint32(va)/largePage]
		if !pde.Present() {
			return 0, pageFault(va, write)
		}

		if pde&PageSize4M != 0 {
			entry = tlbEntry{frame: pde.Frame(), flags: pde, large: true}
		} else {
			pt := k.tableAt(pde.Frame())
			if pt == nil {
				return 0, pageFault(va, write)
			}

			pte := pt[uint32(va)/pageSize%pagingEntries]
			if !pte.Present() {
				return 0, pageFault(va, write)
			}

			// Both levels must grant user access.
			entry = tlbEntry{frame: pte.Frame(), flags: pte & pde}
		}

		k.tlb[pageBase] = entry
	}

	if user && entry.flags&PageUser == 0 {
		return 0, protFault(va, write)
	}

	if write && entry.flags&PageWrite == 0 {
		return 0, protFault(va, write)
	}

	if entry.large {
		return entry.frame + PhysAddr(uint32(va)&(largePage-1)), nil
	}

	return entry.frame + PhysAddr(uint32(va)&(pageSize-1)), nil
}
