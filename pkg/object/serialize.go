package object

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Marshal returns the canonical encoding of obj. Two objects with the same
// content always encode to the same bytes.
func Marshal(obj Object) ([]byte, error) {
	switch o := obj.(type) {
	case *TreeObj:
		return MarshalTree(o), nil
	case *FeatureObj:
		return MarshalFeature(o)
	case *FeatureTypeObj:
		return MarshalFeatureType(o), nil
	case *CommitObj:
		return MarshalCommit(o), nil
	case *TagObj:
		return MarshalTag(o), nil
	case nil:
		return nil, fmt.Errorf("marshal: nil object")
	default:
		return nil, fmt.Errorf("marshal: unsupported object %T", obj)
	}
}

// Unmarshal decodes data previously produced by Marshal for objType.
func Unmarshal(objType ObjectType, data []byte) (Object, error) {
	switch objType {
	case TypeTree:
		return UnmarshalTree(data)
	case TypeFeature:
		return UnmarshalFeature(data)
	case TypeFeatureType:
		return UnmarshalFeatureType(data)
	case TypeCommit:
		return UnmarshalCommit(data)
	case TypeTag:
		return UnmarshalTag(data)
	default:
		return nil, fmt.Errorf("unmarshal: unsupported object type %q", objType)
	}
}

// ---------------------------------------------------------------------------
// TreeObj
// ---------------------------------------------------------------------------

// MarshalTree serializes a TreeObj. The empty tree encodes to zero bytes.
// Otherwise:
//
//	size N
//	trees M
//
//	node "name" type objectid metadataid extent
//	bucket index treeid extent
//
// Nodes are sorted by name and buckets by index; absent ids and extents
// are written as "-".
func MarshalTree(tr *TreeObj) []byte {
	if tr.IsEmpty() && tr.Size == 0 && tr.NumTrees == 0 {
		return nil
	}

	nodes := make([]Node, len(tr.Nodes))
	copy(nodes, tr.Nodes)
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })

	buckets := make([]Bucket, len(tr.Buckets))
	copy(buckets, tr.Buckets)
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Index < buckets[j].Index })

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "size %d\n", tr.Size)
	fmt.Fprintf(&buf, "trees %d\n", tr.NumTrees)
	buf.WriteByte('\n')
	for _, n := range nodes {
		fmt.Fprintf(&buf, "node %s %s %s %s %s\n",
			strconv.Quote(n.Name), n.Type, hashOrDash(n.ObjectID), hashOrDash(n.MetadataID), formatEnvelope(n.Extent))
	}
	for _, b := range buckets {
		fmt.Fprintf(&buf, "bucket %d %s %s\n", b.Index, hashOrDash(b.TreeID), formatEnvelope(b.Extent))
	}
	return buf.Bytes()
}

// UnmarshalTree parses a TreeObj and verifies its canonical form. Trees that
// mix nodes with buckets, repeat a name or bucket, or are out of order fail
// with ErrMalformedTree.
func UnmarshalTree(data []byte) (*TreeObj, error) {
	tr := &TreeObj{}
	if len(data) == 0 {
		return tr, nil
	}
	idx := bytes.Index(data, []byte("\n\n"))
	if idx < 0 {
		return nil, fmt.Errorf("unmarshal tree: missing header/body separator")
	}
	for _, line := range strings.Split(string(data[:idx]), "\n") {
		key, val, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("unmarshal tree: malformed header line %q", line)
		}
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("unmarshal tree: bad %s %q: %w", key, val, err)
		}
		switch key {
		case "size":
			tr.Size = n
		case "trees":
			tr.NumTrees = n
		default:
			return nil, fmt.Errorf("unmarshal tree: unknown header key %q", key)
		}
	}

	body := strings.TrimRight(string(data[idx+2:]), "\n")
	if body == "" {
		return tr, nil
	}
	for _, line := range strings.Split(body, "\n") {
		kind, rest, _ := strings.Cut(line, " ")
		switch kind {
		case "node":
			n, err := parseNodeLine(rest)
			if err != nil {
				return nil, fmt.Errorf("unmarshal tree: %w", err)
			}
			tr.Nodes = append(tr.Nodes, n)
		case "bucket":
			b, err := parseBucketLine(rest)
			if err != nil {
				return nil, fmt.Errorf("unmarshal tree: %w", err)
			}
			tr.Buckets = append(tr.Buckets, b)
		default:
			return nil, fmt.Errorf("unmarshal tree: malformed entry %q", line)
		}
	}
	if err := CheckCanonical(tr); err != nil {
		return nil, err
	}
	return tr, nil
}

// CheckCanonical verifies the structural invariants of a tree.
func CheckCanonical(tr *TreeObj) error {
	if len(tr.Nodes) > 0 && len(tr.Buckets) > 0 {
		return fmt.Errorf("%w: tree mixes %d nodes with %d buckets", ErrMalformedTree, len(tr.Nodes), len(tr.Buckets))
	}
	for i := 1; i < len(tr.Nodes); i++ {
		prev, cur := tr.Nodes[i-1].Name, tr.Nodes[i].Name
		if prev == cur {
			return fmt.Errorf("%w: duplicate node name %q", ErrMalformedTree, cur)
		}
		if prev > cur {
			return fmt.Errorf("%w: node %q out of order after %q", ErrMalformedTree, cur, prev)
		}
	}
	for i := 1; i < len(tr.Buckets); i++ {
		prev, cur := tr.Buckets[i-1].Index, tr.Buckets[i].Index
		if prev >= cur {
			return fmt.Errorf("%w: bucket %d out of order after %d", ErrMalformedTree, cur, prev)
		}
	}
	for _, b := range tr.Buckets {
		if b.Index < 0 {
			return fmt.Errorf("%w: negative bucket index %d", ErrMalformedTree, b.Index)
		}
		if b.TreeID == "" {
			return fmt.Errorf("%w: bucket %d has no tree", ErrMalformedTree, b.Index)
		}
	}
	for _, n := range tr.Nodes {
		if n.Name == "" {
			return fmt.Errorf("%w: empty node name", ErrMalformedTree)
		}
		if n.Type != TypeFeature && n.Type != TypeTree {
			return fmt.Errorf("%w: node %q has type %q", ErrMalformedTree, n.Name, n.Type)
		}
	}
	return nil
}

func parseNodeLine(rest string) (Node, error) {
	name, tail, err := unquotePrefix(rest)
	if err != nil {
		return Node{}, fmt.Errorf("node name: %w", err)
	}
	fields := strings.Fields(tail)
	if len(fields) != 4 {
		return Node{}, fmt.Errorf("malformed node %q", rest)
	}
	extent, err := parseEnvelope(fields[3])
	if err != nil {
		return Node{}, fmt.Errorf("node %q: %w", name, err)
	}
	return Node{
		Name:       name,
		Type:       ObjectType(fields[0]),
		ObjectID:   dashOrHash(fields[1]),
		MetadataID: dashOrHash(fields[2]),
		Extent:     extent,
	}, nil
}

func parseBucketLine(rest string) (Bucket, error) {
	fields := strings.Fields(rest)
	if len(fields) != 3 {
		return Bucket{}, fmt.Errorf("malformed bucket %q", rest)
	}
	index, err := strconv.Atoi(fields[0])
	if err != nil {
		return Bucket{}, fmt.Errorf("bucket index %q: %w", fields[0], err)
	}
	extent, err := parseEnvelope(fields[2])
	if err != nil {
		return Bucket{}, fmt.Errorf("bucket %d: %w", index, err)
	}
	return Bucket{Index: index, TreeID: dashOrHash(fields[1]), Extent: extent}, nil
}

// unquotePrefix reads a Go-quoted string at the start of s and returns it
// together with the remainder.
func unquotePrefix(s string) (string, string, error) {
	prefix, err := strconv.QuotedPrefix(s)
	if err != nil {
		return "", "", err
	}
	val, err := strconv.Unquote(prefix)
	if err != nil {
		return "", "", err
	}
	return val, s[len(prefix):], nil
}

func formatEnvelope(e *Envelope) string {
	if e == nil {
		return "-"
	}
	return strings.Join([]string{
		strconv.FormatFloat(e.MinX, 'g', -1, 64),
		strconv.FormatFloat(e.MinY, 'g', -1, 64),
		strconv.FormatFloat(e.MaxX, 'g', -1, 64),
		strconv.FormatFloat(e.MaxY, 'g', -1, 64),
	}, ",")
}

func parseEnvelope(s string) (*Envelope, error) {
	if s == "-" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("malformed extent %q", s)
	}
	var vals [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed extent %q: %w", s, err)
		}
		vals[i] = f
	}
	return &Envelope{MinX: vals[0], MinY: vals[1], MaxX: vals[2], MaxY: vals[3]}, nil
}

func hashOrDash(h Hash) string {
	if h == "" {
		return "-"
	}
	return string(h)
}

func dashOrHash(s string) Hash {
	if s == "-" {
		return Hash("")
	}
	return Hash(s)
}

// ---------------------------------------------------------------------------
// FeatureObj
// ---------------------------------------------------------------------------

// MarshalFeature serializes a feature as one "kind payload" line per value.
func MarshalFeature(f *FeatureObj) ([]byte, error) {
	var buf bytes.Buffer
	for i, v := range f.Values {
		text, err := v.encode()
		if err != nil {
			return nil, fmt.Errorf("marshal feature: value %d: %w", i, err)
		}
		kind := v.Kind
		if kind == "" {
			kind = KindNull
		}
		if kind == KindNull {
			buf.WriteString("null\n")
			continue
		}
		fmt.Fprintf(&buf, "%s %s\n", kind, text)
	}
	return buf.Bytes(), nil
}

// UnmarshalFeature parses a FeatureObj from its serialized form.
func UnmarshalFeature(data []byte) (*FeatureObj, error) {
	f := &FeatureObj{}
	text := strings.TrimSuffix(string(data), "\n")
	if text == "" {
		return f, nil
	}
	for i, line := range strings.Split(text, "\n") {
		kind, payload, _ := strings.Cut(line, " ")
		v, err := decodeValue(ValueKind(kind), payload)
		if err != nil {
			return nil, fmt.Errorf("unmarshal feature: value %d: %w", i, err)
		}
		f.Values = append(f.Values, v)
	}
	return f, nil
}

// ---------------------------------------------------------------------------
// FeatureTypeObj
// ---------------------------------------------------------------------------

// MarshalFeatureType serializes a schema:
//
//	name "roads"
//	attr "geom" geometry true "EPSG:4326"
//	attr "lanes" int false ""
func MarshalFeatureType(ft *FeatureTypeObj) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "name %s\n", strconv.Quote(ft.Name))
	for _, a := range ft.Attributes {
		fmt.Fprintf(&buf, "attr %s %s %t %s\n", strconv.Quote(a.Name), a.Kind, a.Nillable, strconv.Quote(a.CRS))
	}
	return buf.Bytes()
}

// UnmarshalFeatureType parses a FeatureTypeObj from its serialized form.
func UnmarshalFeatureType(data []byte) (*FeatureTypeObj, error) {
	ft := &FeatureTypeObj{}
	text := strings.TrimSuffix(string(data), "\n")
	if text == "" {
		return nil, fmt.Errorf("unmarshal featuretype: empty")
	}
	for _, line := range strings.Split(text, "\n") {
		key, rest, _ := strings.Cut(line, " ")
		switch key {
		case "name":
			name, err := strconv.Unquote(rest)
			if err != nil {
				return nil, fmt.Errorf("unmarshal featuretype: bad name %q: %w", rest, err)
			}
			ft.Name = name
		case "attr":
			attr, err := parseAttributeLine(rest)
			if err != nil {
				return nil, fmt.Errorf("unmarshal featuretype: %w", err)
			}
			ft.Attributes = append(ft.Attributes, attr)
		default:
			return nil, fmt.Errorf("unmarshal featuretype: unknown key %q", key)
		}
	}
	return ft, nil
}

func parseAttributeLine(rest string) (AttributeDescriptor, error) {
	name, tail, err := unquotePrefix(rest)
	if err != nil {
		return AttributeDescriptor{}, fmt.Errorf("attribute name: %w", err)
	}
	tail = strings.TrimPrefix(tail, " ")
	kind, tail, ok := strings.Cut(tail, " ")
	if !ok {
		return AttributeDescriptor{}, fmt.Errorf("malformed attribute %q", rest)
	}
	nillableText, crsText, ok := strings.Cut(tail, " ")
	if !ok {
		return AttributeDescriptor{}, fmt.Errorf("malformed attribute %q", rest)
	}
	nillable, err := strconv.ParseBool(nillableText)
	if err != nil {
		return AttributeDescriptor{}, fmt.Errorf("attribute %q nillable: %w", name, err)
	}
	crs, err := strconv.Unquote(crsText)
	if err != nil {
		return AttributeDescriptor{}, fmt.Errorf("attribute %q crs: %w", name, err)
	}
	return AttributeDescriptor{Name: name, Kind: ValueKind(kind), Nillable: nillable, CRS: crs}, nil
}

// ---------------------------------------------------------------------------
// CommitObj
// ---------------------------------------------------------------------------

// MarshalCommit serializes a CommitObj:
//
//	tree H
//	parent H     (zero or more)
//	author A
//	author-time T
//	author-tz Z
//	committer C
//	committer-time T
//	committer-tz Z
//
//	message
func MarshalCommit(c *CommitObj) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", string(c.TreeHash))
	for _, p := range c.Parents {
		fmt.Fprintf(&buf, "parent %s\n", string(p))
	}
	fmt.Fprintf(&buf, "author %s\n", c.Author)
	fmt.Fprintf(&buf, "author-time %d\n", c.AuthorTimestamp)
	fmt.Fprintf(&buf, "author-tz %s\n", c.AuthorTimezone)
	fmt.Fprintf(&buf, "committer %s\n", c.Committer)
	fmt.Fprintf(&buf, "committer-time %d\n", c.CommitterTimestamp)
	fmt.Fprintf(&buf, "committer-tz %s\n", c.CommitterTimezone)
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	return buf.Bytes()
}

// UnmarshalCommit parses a CommitObj from its serialized form.
func UnmarshalCommit(data []byte) (*CommitObj, error) {
	idx := bytes.Index(data, []byte("\n\n"))
	if idx < 0 {
		return nil, fmt.Errorf("unmarshal commit: missing header/message separator")
	}
	header := string(data[:idx])
	message := string(data[idx+2:])

	c := &CommitObj{Message: message}
	for _, line := range strings.Split(header, "\n") {
		key, val, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("unmarshal commit: malformed header line %q", line)
		}
		switch key {
		case "tree":
			c.TreeHash = Hash(val)
		case "parent":
			c.Parents = append(c.Parents, Hash(val))
		case "author":
			c.Author = val
		case "author-time", "committer-time":
			ts, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("unmarshal commit: bad %s %q: %w", key, val, err)
			}
			if key == "author-time" {
				c.AuthorTimestamp = ts
			} else {
				c.CommitterTimestamp = ts
			}
		case "author-tz":
			c.AuthorTimezone = val
		case "committer":
			c.Committer = val
		case "committer-tz":
			c.CommitterTimezone = val
		default:
			return nil, fmt.Errorf("unmarshal commit: unknown header key %q", key)
		}
	}
	return c, nil
}

// ---------------------------------------------------------------------------
// TagObj
// ---------------------------------------------------------------------------

// MarshalTag serializes a TagObj:
//
//	object H
//	name N
//	tagger T
//	timestamp T
//
//	message
func MarshalTag(t *TagObj) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "object %s\n", string(t.TargetHash))
	fmt.Fprintf(&buf, "name %s\n", t.Name)
	fmt.Fprintf(&buf, "tagger %s\n", t.Tagger)
	fmt.Fprintf(&buf, "timestamp %d\n", t.Timestamp)
	buf.WriteByte('\n')
	buf.WriteString(t.Message)
	return buf.Bytes()
}

// UnmarshalTag parses a TagObj from its serialized form.
func UnmarshalTag(data []byte) (*TagObj, error) {
	idx := bytes.Index(data, []byte("\n\n"))
	if idx < 0 {
		return nil, fmt.Errorf("unmarshal tag: missing header/message separator")
	}
	t := &TagObj{Message: string(data[idx+2:])}
	for _, line := range strings.Split(string(data[:idx]), "\n") {
		key, val, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("unmarshal tag: malformed header line %q", line)
		}
		switch key {
		case "object":
			t.TargetHash = Hash(val)
		case "name":
			t.Name = val
		case "tagger":
			t.Tagger = val
		case "timestamp":
			ts, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("unmarshal tag: bad timestamp %q: %w", val, err)
			}
			t.Timestamp = ts
		default:
			return nil, fmt.Errorf("unmarshal tag: unknown header key %q", key)
		}
	}
	return t, nil
}
