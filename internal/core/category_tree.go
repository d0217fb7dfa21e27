package core

import (
	"fmt"
	"sort"
)

// Forest is an owner's category hierarchy indexed for traversal.
type Forest struct {
	byID     map[int64]Category
	children map[int64][]int64
	roots    []int64
}

// NewForest indexes cats. Parent references to unknown ids are treated as roots.
func NewForest(cats []Category) *Forest {
	f := &Forest{
		byID:     make(map[int64]Category, len(cats)),
		children: make(map[int64][]int64),
	}
	for _, c := range cats {
		f.byID[c.ID] = c
	}
	for _, c := range cats {
		if c.ParentID != nil {
			if _, ok := f.byID[*c.ParentID]; ok {
				f.children[*c.ParentID] = append(f.children[*c.ParentID], c.ID)
				continue
			}
		}
		f.roots = append(f.roots, c.ID)
	}
	sort.Slice(f.roots, func(i, j int) bool { return f.roots[i] < f.roots[j] })
	for id := range f.children {
		ids := f.children[id]
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}
	return f
}

func (f *Forest) Get(id int64) (Category, bool) {
	c, ok := f.byID[id]
	return c, ok
}

func (f *Forest) Len() int { return len(f.byID) }

// Roots returns root categories ordered by id.
func (f *Forest) Roots() []Category {
	out := make([]Category, 0, len(f.roots))
	for _, id := range f.roots {
		out = append(out, f.byID[id])
	}
	return out
}

func (f *Forest) Children(id int64) []Category {
	ids := f.children[id]
	out := make([]Category, 0, len(ids))
	for _, cid := range ids {
		out = append(out, f.byID[cid])
	}
	return out
}

// Descendants returns id and every category below it, depth first.
func (f *Forest) Descendants(id int64) ([]int64, error) {
	if _, ok := f.byID[id]; !ok {
		return nil, NotFound("category.descendants", "category", id)
	}
	var out []int64
	seen := make(map[int64]bool, len(f.byID))
	stack := []int64{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[cur] {
			return nil, NewError(KindInvariant, "category.descendants",
				fmt.Sprintf("category %d reached twice below %d", cur, id))
		}
		seen[cur] = true
		out = append(out, cur)
		kids := f.children[cur]
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, kids[i])
		}
	}
	return out, nil
}

// DescendantSet is Descendants as a set.
func (f *Forest) DescendantSet(id int64) (map[int64]bool, error) {
	ids, err := f.Descendants(id)
	if err != nil {
		return nil, err
	}
	set := make(map[int64]bool, len(ids))
	for _, d := range ids {
		set[d] = true
	}
	return set, nil
}

// Root walks parents until a category without a parent is reached.
func (f *Forest) Root(id int64) (Category, error) {
	c, ok := f.byID[id]
	if !ok {
		return Category{}, NotFound("category.root", "category", id)
	}
	for steps := 0; c.ParentID != nil; steps++ {
		if steps > len(f.byID) {
			return Category{}, NewError(KindInvariant, "category.root",
				fmt.Sprintf("ancestor chain of category %d does not terminate", id))
		}
		parent, ok := f.byID[*c.ParentID]
		if !ok {
			break
		}
		c = parent
	}
	return c, nil
}

// RootIndex maps every category id to the id of its root.
func (f *Forest) RootIndex() map[int64]int64 {
	idx := make(map[int64]int64, len(f.byID))
	for _, r := range f.roots {
		ids, err := f.Descendants(r)
		if err != nil {
			continue
		}
		for _, id := range ids {
			idx[id] = r
		}
	}
	return idx
}

// CheckReparent fails with KindCycleWouldForm if moving id under parent would
// make id its own ancestor. A nil parent always succeeds.
func (f *Forest) CheckReparent(id int64, parent *int64) error {
	const op = "category.reparent"
	if _, ok := f.byID[id]; !ok {
		return NotFound(op, "category", id)
	}
	if parent == nil {
		return nil
	}
	if _, ok := f.byID[*parent]; !ok {
		return NotFound(op, "category", *parent)
	}
	desc, err := f.DescendantSet(id)
	if err != nil {
		return err
	}
	if desc[*parent] {
		return NewError(KindCycleWouldForm, op,
			fmt.Sprintf("category %d is a descendant of %d", *parent, id))
	}
	return nil
}
