package importer

import (
	"fmt"
	"strings"
)

// group.go buckets records by their grouping field for review.
//
// Invariant: at every point in the session lifecycle the union of all group
// members equals the record set with a non-blank group value, and no record
// appears in two groups. Regrouping after an edit removes the record from
// its old bucket and appends it to the new one as a single state update.

// Group is one named bucket of records, in original row order.
type Group struct {
	Key     string    `json:"key"`
	Members []*Record `json:"members"`
}

// Grouping is the full partition of a record set by one field.
type Grouping struct {
	Field  string
	Groups []*Group

	// byKey tracks every group name ever seen this session, including
	// groups that an edit has since emptied.
	byKey map[string]*Group
}

// BuildGroups partitions records by the trimmed value of field, preserving
// first-seen group order and original row order within each group. Records
// with a blank group value are left out of the partition. Returns an error
// when not a single record has a usable group value.
func BuildGroups(def Definition, records []*Record) (*Grouping, error) {
	g := &Grouping{
		Field: def.GroupField,
		byKey: make(map[string]*Group),
	}

	for _, rec := range records {
		key := strings.TrimSpace(rec.Fields[def.GroupField])
		if key == "" {
			continue
		}
		g.add(key, rec)
	}

	if len(g.Groups) == 0 {
		return nil, fmt.Errorf("no valid %s found", def.GroupLabel)
	}
	return g, nil
}

func (g *Grouping) add(key string, rec *Record) {
	grp, ok := g.byKey[key]
	if !ok {
		grp = &Group{Key: key}
		g.byKey[key] = grp
		g.Groups = append(g.Groups, grp)
	}
	grp.Members = append(grp.Members, rec)
}

// Move re-buckets a record after its grouping field changed. The record is
// removed from whichever group holds it (by identity, not by index
// arithmetic) and appended to the group matching its current value,
// creating that group if it is new. A blank new value just removes the
// record from the partition.
func (g *Grouping) Move(rec *Record) {
	g.remove(rec)

	key := strings.TrimSpace(rec.Fields[g.Field])
	if key == "" {
		return
	}
	g.add(key, rec)
}

// Remove drops a record from the partition, for row deletion.
func (g *Grouping) Remove(rec *Record) {
	g.remove(rec)
}

func (g *Grouping) remove(rec *Record) {
	for _, grp := range g.Groups {
		for i, m := range grp.Members {
			if m == rec {
				grp.Members = append(grp.Members[:i], grp.Members[i+1:]...)
				return
			}
		}
	}
}

// Keys returns all known group names in first-seen order, including
// currently empty groups.
func (g *Grouping) Keys() []string {
	keys := make([]string, len(g.Groups))
	for i, grp := range g.Groups {
		keys[i] = grp.Key
	}
	return keys
}

// MemberCount returns the total number of grouped records.
func (g *Grouping) MemberCount() int {
	n := 0
	for _, grp := range g.Groups {
		n += len(grp.Members)
	}
	return n
}
