// Package pipeline implements the per-resource actor tree (C8): the set of
// small operations that turn one input record into contributions across
// one or more vertex/edge buckets.
package pipeline

import (
	"strings"

	"github.com/mohae/deepcopy"
)

// Record is a single input/output row, keyed by field name.
type Record = map[string]interface{}

// BucketMap accumulates per-type output rows. Edge buckets are keyed by
// "<source>|<target>|<relation>".
type BucketMap = map[string][]Record

// ActorNode is the sealed-ish interface every pipeline actor implements.
type ActorNode interface {
	Apply(rec Record, buckets BucketMap)
	// CollectActors walks this node and its children, appending every
	// EdgeActor found, used by the auto-join planner.
	CollectActors(out *[]*EdgeActor)
}

// VertexActor emits the current record, optionally renamed, into the named
// vertex bucket.
type VertexActor struct {
	VertexName string
	FieldMapTo map[string]string // original key -> renamed key, optional
}

func (v *VertexActor) Apply(rec Record, buckets BucketMap) {
	out := rec
	if v.FieldMapTo != nil {
		out = renameFields(rec, v.FieldMapTo)
	}
	buckets[v.VertexName] = append(buckets[v.VertexName], out)
}

func (v *VertexActor) CollectActors(out *[]*EdgeActor) {}

// EdgeActor emits the current record into the edge bucket keyed by
// (from, to, relation). If RelationField is set, its value in the record
// names the relation per-row, overriding Relation.
type EdgeActor struct {
	From          string
	To            string
	MatchSource   string
	MatchTarget   string
	Relation      string
	RelationField string
}

func (e *EdgeActor) bucketKey(rec Record) string {
	relation := e.Relation
	if e.RelationField != "" {
		if v, ok := rec[e.RelationField]; ok {
			if s, ok := v.(string); ok && s != "" {
				relation = s
			}
		}
	}
	return strings.Join([]string{e.From, e.To, relation}, "|")
}

func (e *EdgeActor) Apply(rec Record, buckets BucketMap) {
	key := e.bucketKey(rec)
	buckets[key] = append(buckets[key], rec)
}

func (e *EdgeActor) CollectActors(out *[]*EdgeActor) {
	*out = append(*out, e)
}

// FieldMap renames keys in the current record. When TargetVertex is set,
// only the mapped keys form a sub-record routed to that vertex's bucket,
// letting one edge row contribute to two distinct vertex types without
// attribute collisions (see edge resources, §4.4).
type FieldMap struct {
	TargetVertex string
	Map          map[string]string
}

func (f *FieldMap) Apply(rec Record, buckets BucketMap) {
	if f.TargetVertex != "" {
		buckets[f.TargetVertex] = append(buckets[f.TargetVertex], extractByMap(rec, f.Map))
		return
	}
	for oldKey, newKey := range f.Map {
		if v, ok := rec[oldKey]; ok && oldKey != newKey {
			rec[newKey] = v
			delete(rec, oldKey)
		}
	}
}

func (f *FieldMap) CollectActors(out *[]*EdgeActor) {}

// VertexRouter reads doc[TypeField] to determine the vertex-type name for
// this particular record, extracts a sub-record (by stripping Prefix or by
// applying FieldMap), and lazily creates/invokes a child VertexActor for
// that type. The child cache is keyed by vertex-type name and is never
// shared across VertexRouter instances or across goroutines.
type VertexRouter struct {
	TypeField string
	Prefix    string
	FieldMap  map[string]string

	children map[string]*VertexActor
}

func (r *VertexRouter) Apply(rec Record, buckets BucketMap) {
	typeVal, ok := rec[r.TypeField]
	if !ok {
		return
	}
	typeName, ok := typeVal.(string)
	if !ok || typeName == "" {
		return
	}

	var sub Record
	if r.FieldMap != nil {
		sub = extractByMap(rec, r.FieldMap)
	} else {
		sub = stripPrefix(rec, r.Prefix)
	}

	if r.children == nil {
		r.children = make(map[string]*VertexActor)
	}
	child, ok := r.children[typeName]
	if !ok {
		child = &VertexActor{VertexName: typeName}
		r.children[typeName] = child
	}
	child.Apply(sub, buckets)
}

func (r *VertexRouter) CollectActors(out *[]*EdgeActor) {}

func renameFields(rec Record, m map[string]string) Record {
	copied := deepcopy.Copy(rec).(Record)
	out := make(Record, len(copied))
	for k, v := range copied {
		if newKey, ok := m[k]; ok {
			out[newKey] = v
		} else {
			out[k] = v
		}
	}
	return out
}

// extractByMap deep-copies only the mapped keys into a fresh sub-record
// under their new names.
func extractByMap(rec Record, m map[string]string) Record {
	copied := deepcopy.Copy(rec).(Record)
	out := make(Record, len(m))
	for oldKey, newKey := range m {
		if v, ok := copied[oldKey]; ok {
			out[newKey] = v
		}
	}
	return out
}

func stripPrefix(rec Record, prefix string) Record {
	copied := deepcopy.Copy(rec).(Record)
	out := make(Record)
	for k, v := range copied {
		if prefix == "" {
			out[k] = v
			continue
		}
		if strings.HasPrefix(k, prefix) {
			out[strings.TrimPrefix(k, prefix)] = v
		}
	}
	return out
}

// Resource is a named pipeline: a tree of actors run against every input
// record, folding their contributions into one bucket map.
type Resource struct {
	Name   string
	Actors []ActorNode
}

// Apply runs every top-level actor against rec, accumulating into buckets.
func (r *Resource) Apply(rec Record, buckets BucketMap) {
	for _, a := range r.Actors {
		a.Apply(rec, buckets)
	}
}

// CollectEdgeActors walks every actor in the resource, returning every
// EdgeActor found — used by the auto-join planner (C6).
func (r *Resource) CollectEdgeActors() []*EdgeActor {
	var out []*EdgeActor
	for _, a := range r.Actors {
		a.CollectActors(&out)
	}
	return out
}
