package fwatch

import "time"

// PendingDisappearance is a disappearance waiting for an appearance of the
// same inode. If none arrives before the deadline it becomes a delete.
type PendingDisappearance struct {
	Path     string
	Inode    uint64
	Deadline time.Time

	seq uint64
}

// PendingRegistry holds pending disappearances between their notification
// and their resolution. Each entry transfers ownership exactly once: either
// an appearance consumes it (move) or its expiry takes it (delete), never
// both. The registry has no internal locking; the engine loop is its only
// caller.
type PendingRegistry struct {
	nextSeq uint64
	byInode map[uint64]*PendingDisappearance
	bySeq   map[uint64]*PendingDisappearance
}

// NewPendingRegistry creates an empty registry.
func NewPendingRegistry() *PendingRegistry {
	return &PendingRegistry{
		byInode: make(map[uint64]*PendingDisappearance),
		bySeq:   make(map[uint64]*PendingDisappearance),
	}
}

// Register records a disappearance and returns the sequence number its
// expiry must present to claim it. Inode 0 entries are never indexed by
// inode: an unknown identity must not correlate into a move, only expire
// into a delete. When the inode slot is already held by an earlier entry,
// the new entry is likewise expiry-only; the first registrant keeps the
// claim on the inode.
func (r *PendingRegistry) Register(path string, inode uint64, deadline time.Time) uint64 {
	r.nextSeq++
	p := &PendingDisappearance{
		Path:     path,
		Inode:    inode,
		Deadline: deadline,
		seq:      r.nextSeq,
	}
	r.bySeq[p.seq] = p
	if inode != 0 {
		if _, held := r.byInode[inode]; !held {
			r.byInode[inode] = p
		}
	}
	return p.seq
}

// Consume hands over the pending entry for the inode if one exists and its
// window is still open. A consumed entry is gone; its expiry will find
// nothing.
func (r *PendingRegistry) Consume(inode uint64, now time.Time) *PendingDisappearance {
	if inode == 0 {
		return nil
	}
	p, ok := r.byInode[inode]
	if !ok {
		return nil
	}
	if now.After(p.Deadline) {
		// Window closed; the expiry owns this entry now.
		return nil
	}
	delete(r.byInode, inode)
	delete(r.bySeq, p.seq)
	return p
}

// TakeExpired hands over the entry registered under seq, or nil if an
// appearance already consumed it.
func (r *PendingRegistry) TakeExpired(seq uint64) *PendingDisappearance {
	p, ok := r.bySeq[seq]
	if !ok {
		return nil
	}
	delete(r.bySeq, seq)
	if p.Inode != 0 {
		if cur, ok := r.byInode[p.Inode]; ok && cur.seq == seq {
			delete(r.byInode, p.Inode)
		}
	}
	return p
}

// Len returns the number of pending entries.
func (r *PendingRegistry) Len() int { return len(r.bySeq) }

// Clear drops every pending entry. Called on shutdown so no synthetic
// deletes fire after the engine stops.
func (r *PendingRegistry) Clear() {
	r.byInode = make(map[uint64]*PendingDisappearance)
	r.bySeq = make(map[uint64]*PendingDisappearance)
}
