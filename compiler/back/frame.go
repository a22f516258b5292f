package back

import (
	"nikand.dev/go/heap"
	"tlog.app/go/errors"

	"github.com/wty92911/sysy-cargo/compiler/ir"
	"github.com/wty92911/sysy-cargo/compiler/set"
)

type (
	// frame is the block stack layout.
	// sp is Entry bytes below the function entry sp when the block starts
	// and Depth bytes after the block frame is allocated.
	frame struct {
		Entry int
		Size  int
		Depth int
	}
)

const (
	slotSize   = 4
	frameAlign = 16
	maxFrame   = 2048
)

// frameSize is the per-block frame: a slot for every value producing instruction.
func frameSize(f *ir.Func, b ir.BlockID) (int, error) {
	size := 0

	for _, id := range f.Blocks[b].Code {
		switch f.VType[id] {
		case ir.Int32, ir.Pointer:
			size += slotSize
		}
	}

	size = (size + frameAlign - 1) / frameAlign * frameAlign

	if size > maxFrame {
		return 0, errors.Wrap(ErrFrameOverflow, "block %v: %d bytes", f.Blocks[b].Name, size)
	}

	return size, nil
}

// layoutFrames assigns entry depths walking blocks from the function entry.
// The first edge into a block fixes its entry depth.
// Blocks are taken in layout order so branch sources are always laid out before their targets.
func layoutFrames(f *ir.Func) (frames []frame, err error) {
	frames = make([]frame, len(f.Blocks))
	index := make([]int, len(f.Blocks))

	for i, b := range f.Layout {
		index[b] = i

		frames[b].Size, err = frameSize(f, b)
		if err != nil {
			return nil, err
		}
	}

	var seen set.Bits[ir.BlockID]

	q := heap.Heap[ir.BlockID]{
		Less: func(d []ir.BlockID, i, j int) bool {
			return index[d[i]] < index[d[j]]
		},
	}

	// roots: the entry first, then whatever was not reached from it
	for _, root := range f.Layout {
		if seen.IsSet(root) {
			continue
		}

		seen.Set(root)
		q.Push(root)

		for q.Len() != 0 {
			b := q.Pop()

			fr := &frames[b]
			fr.Depth = fr.Entry + fr.Size

			for _, s := range f.Succs(b) {
				if seen.IsSet(s) {
					continue
				}

				seen.Set(s)
				frames[s].Entry = fr.Depth
				q.Push(s)
			}
		}
	}

	return frames, nil
}
