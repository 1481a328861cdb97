package vm

import "fmt"

// ---------------------------------------------------------------------------
// Lists and nodes
// ---------------------------------------------------------------------------

// NewList allocates an empty list.
func (e *EngineState) NewList() (Reg, error) {
	seg, lists := e.Segs.Lists()
	idx, l := lists.Table.Allocate()
	if idx > 0xffff {
		_ = lists.Table.Free(idx)
		return NullReg, fmt.Errorf("list table full")
	}
	*l = List{}
	return MakeReg(seg, uint16(idx)), nil
}

// NewNode allocates an unlinked node.
func (e *EngineState) NewNode(value, key Reg) (Reg, error) {
	seg, nodes := e.Segs.Nodes()
	idx, n := nodes.Table.Allocate()
	if idx > 0xffff {
		_ = nodes.Table.Free(idx)
		return NullReg, fmt.Errorf("node table full")
	}
	*n = Node{Key: key, Value: value}
	return MakeReg(seg, uint16(idx)), nil
}

// List returns the list at addr.
func (e *EngineState) List(addr Reg) (*List, error) {
	seg, err := e.Segs.Resolve(addr)
	if err != nil {
		return nil, err
	}
	lt, ok := seg.(*ListTable)
	if !ok {
		return nil, &AddressError{Addr: addr, Reason: fmt.Sprintf("%s segment is not a list table", seg.Type())}
	}
	l, _ := lt.Table.At(int(addr.Offset))
	return l, nil
}

// Node returns the node at addr.
func (e *EngineState) Node(addr Reg) (*Node, error) {
	seg, err := e.Segs.Resolve(addr)
	if err != nil {
		return nil, err
	}
	nt, ok := seg.(*NodeTable)
	if !ok {
		return nil, &AddressError{Addr: addr, Reason: fmt.Sprintf("%s segment is not a node table", seg.Type())}
	}
	n, _ := nt.Table.At(int(addr.Offset))
	return n, nil
}

// AddToFront links node at the head of list.
func (e *EngineState) AddToFront(list, node Reg) error {
	l, err := e.List(list)
	if err != nil {
		return err
	}
	n, err := e.Node(node)
	if err != nil {
		return err
	}
	n.Pred = NullReg
	n.Succ = l.First
	if l.First.IsNull() {
		l.Last = node
	} else {
		first, err := e.Node(l.First)
		if err != nil {
			return err
		}
		first.Pred = node
	}
	l.First = node
	return nil
}

// AddToEnd links node at the tail of list.
func (e *EngineState) AddToEnd(list, node Reg) error {
	l, err := e.List(list)
	if err != nil {
		return err
	}
	n, err := e.Node(node)
	if err != nil {
		return err
	}
	n.Succ = NullReg
	n.Pred = l.Last
	if l.Last.IsNull() {
		l.First = node
	} else {
		last, err := e.Node(l.Last)
		if err != nil {
			return err
		}
		last.Succ = node
	}
	l.Last = node
	return nil
}

// DeleteNode unlinks node from list and frees it.
func (e *EngineState) DeleteNode(list, node Reg) error {
	l, err := e.List(list)
	if err != nil {
		return err
	}
	n, err := e.Node(node)
	if err != nil {
		return err
	}
	if n.Pred.IsNull() {
		l.First = n.Succ
	} else if pred, err := e.Node(n.Pred); err == nil {
		pred.Succ = n.Succ
	}
	if n.Succ.IsNull() {
		l.Last = n.Pred
	} else if succ, err := e.Node(n.Succ); err == nil {
		succ.Pred = n.Pred
	}
	_, nodes := e.Segs.Nodes()
	if err := nodes.Table.Free(int(node.Offset)); err != nil {
		return e.fatal(err)
	}
	return nil
}

// ListNodes returns the nodes of a list from first to last.
func (e *EngineState) ListNodes(list Reg) ([]Reg, error) {
	l, err := e.List(list)
	if err != nil {
		return nil, err
	}
	var out []Reg
	_, nodes := e.Segs.Nodes()
	limit := nodes.Table.EntriesUsed()
	for cur := l.First; !cur.IsNull(); {
		if len(out) > limit {
			return nil, &AddressError{Addr: list, Reason: "list is cyclic"}
		}
		n, err := e.Node(cur)
		if err != nil {
			return nil, err
		}
		out = append(out, cur)
		cur = n.Succ
	}
	return out, nil
}
