package gcode

import (
	"errors"
	"strings"
)

type Block []Word

func (b Block) Arg(w byte) (bool, float64) {
	for _, g := range b {
		if g.W == w {
			return true, g.Arg
		}
	}
	return false, 0
}
func (b Block) SetArg(w byte, val float64) {
	for i, g := range b {
		if g.W == w {
			b[i].Arg = val
			return
		}
	}
}

// Has returns true if the exact word is present in the block.
func (b Block) Has(w byte, arg float64) bool {
	for _, g := range b {
		if g.W == w && g.Arg == arg {
			return true
		}
	}
	return false
}

func (b Block) Args() Block {
	res := make(Block, 0, len(b))
	for _, g := range b {
		if g.ModalGroup() == ModalGroupNone {
			res = append(res, g)
		}
	}
	return res
}
func (b Block) Clone() Block {
	c := make(Block, len(b))
	copy(c, b)
	return c
}

func (b Block) HasModal() bool {
	for _, g := range b {
		if g.ModalGroup() != ModalGroupNone {
			return true
		}
	}
	return false
}

// Modal returns the word from the given modal group, if any.
func (b Block) Modal(m ModalGroup) (Word, bool) {
	for _, g := range b {
		if g.ModalGroup() == m {
			return g, true
		}
	}
	return Word{}, false
}

// UserMCode returns the plugin M-code of the block, if any.
func (b Block) UserMCode() (uint16, bool) {
	for _, g := range b {
		if g.IsUserMCode() {
			return uint16(g.Arg), true
		}
	}
	return 0, false
}

// IsProbe returns true if the block starts a straight probe (G38.x).
func (b Block) IsProbe() bool {
	w, ok := b.Modal(ModalGroupMotion)
	if !ok {
		return false
	}
	switch w.Arg {
	case 38.2, 38.3, 38.4, 38.5:
		return true
	}
	return false
}

// HasMotion returns true if the block moves any axis.
func (b Block) HasMotion() bool {
	for _, g := range b {
		if g.IsAxis() {
			return true
		}
	}
	return false
}

func (b Block) String() string {
	var sb strings.Builder
	for _, g := range b {
		sb.WriteString(g.String())
	}
	return sb.String()
}

func (b Block) Validate() error {
	var checkWord [256]bool
	var checkModal [256]bool

	var m ModalGroup
	for _, g := range b {
		if !g.IsValid() {
			return errors.New("invalid word in block")
		}
		if g.W != 'G' && g.W != 'M' && checkWord[g.W] {
			return errors.New("word was repeated in a block")
		}
		checkWord[g.W] = true
		m = g.ModalGroup()
		if m != ModalGroupNone && checkModal[m] {
			return errors.New("multiple words from same modal group")
		}
		checkModal[m] = true
	}

	return nil
}
