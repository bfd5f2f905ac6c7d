package gcode

import "io"

// Reader is a source of blocks, such as a Parser or a generated move
// sequence. Read returns io.EOF after the last block.
type Reader interface {
	Read() (Block, error)
}

// BlocksReader replays a fixed list of blocks, as queued for the planner
// by a tool change or a retract.
type BlocksReader struct {
	Blocks []Block
}

func (r *BlocksReader) Read() (Block, error) {
	if len(r.Blocks) == 0 {
		return nil, io.EOF
	}
	b := r.Blocks[0]
	r.Blocks = r.Blocks[1:]
	return b, nil
}
