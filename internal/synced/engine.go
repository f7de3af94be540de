package synced

// Patch carries every operation recorded between two flushes. Seq grows by
// one per non-empty patch so receivers can detect gaps.
type Patch struct {
	Seq uint64 `json:"seq"`
	Ops []Op   `json:"ops"`
}

// Snapshot is the full encoded state as of patch Seq.
type Snapshot struct {
	Seq   uint64 `json:"seq"`
	State any    `json:"state"`
}

// Engine turns a state tree into snapshots and incremental patches. It is
// not safe for concurrent use; the owner of the tree drives it.
type Engine struct {
	root Node
	seq  uint64
}

// NewEngine takes ownership of root, so root cannot be attached elsewhere.
func NewEngine(root Node) *Engine {
	root.adopt()
	return &Engine{root: root}
}

// Dirty reports whether anything changed since the last flush.
func (e *Engine) Dirty() bool { return e.root.dirty() }

// Seq returns the sequence number of the last emitted patch.
func (e *Engine) Seq() uint64 { return e.seq }

// Flush encodes and clears pending changes. ok is false when nothing
// changed, in which case Seq does not advance.
func (e *Engine) Flush() (p Patch, ok bool) {
	ops := e.root.encode("", nil)
	if len(ops) == 0 {
		return Patch{}, false
	}
	e.seq++
	return Patch{Seq: e.seq, Ops: ops}, true
}

// Snapshot encodes the whole tree. Callers flush first so that the snapshot
// and the following patches line up.
func (e *Engine) Snapshot() Snapshot {
	return Snapshot{Seq: e.seq, State: e.root.snapshot()}
}
