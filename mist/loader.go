package mist

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/nasa/GMSEC-API-sub012/errors"
	"github.com/nasa/GMSEC-API-sub012/message"
)

const (
	// directoryFile lists the levels and schemas of one version directory
	directoryFile = "DIRECTORY.xml"

	// maxSchemaFileSize caps any single definition file
	maxSchemaFileSize = 4 << 20
)

// xmlNode is a generic element; definitions interleave FIELD, ARRAY,
// CONTAINER and INCLUDE elements, so document order must be kept.
type xmlNode struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Nodes   []xmlNode  `xml:",any"`
	Text    string     `xml:",chardata"`
}

func (n xmlNode) tag() string {
	return strings.ToUpper(n.XMLName.Local)
}

func (n xmlNode) lookup(name string) (string, bool) {
	for _, a := range n.Attrs {
		if strings.EqualFold(a.Name.Local, name) {
			return strings.TrimSpace(a.Value), true
		}
	}
	return "", false
}

func (n xmlNode) attr(name string) string {
	v, _ := n.lookup(name)
	return v
}

// schemaSet is everything read from one version directory
type schemaSet struct {
	directory *Directory
	templates map[string]*MessageTemplate
	order     []string
	headers   map[string][]*FieldTemplate
	headerID  string
	subject   []SubjectElement
}

type loader struct {
	fsys      fs.FS
	root      string
	level     SchemaLevel
	logger    *slog.Logger
	including map[string]bool
}

func newLoader(fsys fs.FS, root string, level SchemaLevel, logger *slog.Logger) *loader {
	return &loader{
		fsys:      fsys,
		root:      root,
		level:     level,
		logger:    logger,
		including: make(map[string]bool),
	}
}

func parseError(file, format string, args ...any) error {
	return errors.Newf(errors.ErrSchemaParse, "%s: %s", file, fmt.Sprintf(format, args...))
}

func (l *loader) readXML(file string) (xmlNode, error) {
	var root xmlNode

	info, err := fs.Stat(l.fsys, file)
	if err != nil {
		return root, parseError(file, "%v", err)
	}
	if info.IsDir() {
		return root, parseError(file, "is a directory")
	}
	if info.Size() > maxSchemaFileSize {
		return root, parseError(file, "exceeds maximum size of %d bytes", maxSchemaFileSize)
	}

	data, err := fs.ReadFile(l.fsys, file)
	if err != nil {
		return root, parseError(file, "%v", err)
	}
	if err := xml.NewDecoder(bytes.NewReader(data)).Decode(&root); err != nil {
		return root, parseError(file, "malformed XML: %v", err)
	}
	return root, nil
}

func (l *loader) load() (*schemaSet, error) {
	dir, err := l.loadDirectory()
	if err != nil {
		return nil, err
	}

	set := &schemaSet{
		directory: dir,
		templates: make(map[string]*MessageTemplate),
		headers:   make(map[string][]*FieldTemplate),
	}

	headerLevel := SchemaLevel(-1)
	for _, lvl := range dir.levels {
		if lvl.Level > l.level || lvl.Header == "" {
			continue
		}
		id, fields, subject, err := l.loadHeader(path.Join(l.root, lvl.Header))
		if err != nil {
			return nil, err
		}
		set.headers[id] = fields
		if lvl.Level > headerLevel {
			headerLevel = lvl.Level
			set.headerID = id
			set.subject = subject
		}
	}
	if set.headerID == "" {
		return nil, parseError(path.Join(l.root, directoryFile), "no header defined at or below %s", l.level)
	}

	for _, entry := range dir.schemas {
		if entry.Level > l.level {
			continue
		}
		if existing, ok := set.templates[entry.ID]; ok && existing.level > entry.Level {
			continue
		}

		mt, err := l.loadTemplate(entry, set.subject)
		if err != nil {
			return nil, err
		}
		if _, ok := set.templates[entry.ID]; !ok {
			set.order = append(set.order, entry.ID)
		}
		set.templates[entry.ID] = mt
	}

	l.logger.Debug("Loaded schema definitions",
		"directory", l.root,
		"level", int(l.level),
		"header", set.headerID,
		"templates", len(set.order))
	return set, nil
}

func (l *loader) loadDirectory() (*Directory, error) {
	file := path.Join(l.root, directoryFile)
	root, err := l.readXML(file)
	if err != nil {
		return nil, err
	}
	if root.tag() != "DIRECTORY" {
		return nil, parseError(file, "root element is %s, expected DIRECTORY", root.XMLName.Local)
	}

	dir := &Directory{
		specification: root.attr("SPECIFICATION"),
		version:       root.attr("VERSION"),
	}
	seen := make(map[string]bool)

	for _, n := range root.Nodes {
		switch n.tag() {
		case "LEVEL":
			level, err := parseLevel(n.attr("ID"))
			if err != nil {
				return nil, parseError(file, "%v", err)
			}
			dir.levels = append(dir.levels, LevelDefinition{Level: level, Name: n.attr("NAME"), Header: n.attr("HEADER")})
		case "SCHEMA":
			id := strings.ToUpper(n.attr("ID"))
			if id == "" || n.attr("FILE") == "" {
				return nil, parseError(file, "SCHEMA requires ID and FILE")
			}
			level, err := parseLevel(n.attr("LEVEL"))
			if err != nil {
				return nil, parseError(file, "schema %s: %v", id, err)
			}
			key := fmt.Sprintf("%s@%d", id, level)
			if seen[key] {
				return nil, errors.Newf(errors.ErrDuplicateID, "%s: schema %s declared twice at %s", file, id, level)
			}
			seen[key] = true
			dir.schemas = append(dir.schemas, SchemaTemplate{
				ID:          id,
				Level:       level,
				Description: n.attr("DESCRIPTION"),
				File:        n.attr("FILE"),
			})
		}
	}

	slices.SortStableFunc(dir.levels, func(a, b LevelDefinition) int { return int(a.Level) - int(b.Level) })
	return dir, nil
}

func parseLevel(s string) (SchemaLevel, error) {
	if s == "" {
		return LevelC2MS, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || !SchemaLevel(n).Valid() {
		return 0, fmt.Errorf("invalid schema level %q", s)
	}
	return SchemaLevel(n), nil
}

func (l *loader) loadHeader(file string) (string, []*FieldTemplate, []SubjectElement, error) {
	root, err := l.readXML(file)
	if err != nil {
		return "", nil, nil, err
	}
	if root.tag() != "HEADER" {
		return "", nil, nil, parseError(file, "root element is %s, expected HEADER", root.XMLName.Local)
	}
	id := strings.ToUpper(root.attr("ID"))
	if id == "" {
		return "", nil, nil, parseError(file, "HEADER requires ID")
	}

	subject, err := parseSubject(root, file)
	if err != nil {
		return "", nil, nil, err
	}
	fields, err := l.parseFieldList(root.Nodes, file, "", true)
	if err != nil {
		return "", nil, nil, err
	}
	return id, fields, subject, nil
}

func (l *loader) loadTemplate(entry SchemaTemplate, headerSubject []SubjectElement) (*MessageTemplate, error) {
	file := path.Join(l.root, entry.File)
	root, err := l.readXML(file)
	if err != nil {
		return nil, err
	}
	if root.tag() != "TEMPLATE" {
		return nil, parseError(file, "root element is %s, expected TEMPLATE", root.XMLName.Local)
	}
	if id := strings.ToUpper(root.attr("ID")); id != entry.ID {
		return nil, parseError(file, "template ID %q does not match directory entry %s", id, entry.ID)
	}

	subject, err := parseSubject(root, file)
	if err != nil {
		return nil, err
	}
	fields, err := l.parseFieldList(root.Nodes, file, "", false)
	if err != nil {
		return nil, err
	}

	description := root.attr("DESCRIPTION")
	if description == "" {
		description = entry.Description
	}
	return newMessageTemplate(entry.ID, entry.Level, description, fields, mergeSubject(headerSubject, subject)), nil
}

func parseSubject(root xmlNode, file string) ([]SubjectElement, error) {
	var out []SubjectElement
	for _, n := range root.Nodes {
		if n.tag() != "SUBJECT" {
			continue
		}
		for _, el := range n.Nodes {
			if el.tag() != "ELEMENT" {
				continue
			}
			se := SubjectElement{
				Name:  strings.ToUpper(el.attr("NAME")),
				Field: strings.ToUpper(el.attr("FIELD")),
				Value: el.attr("VALUE"),
			}
			if se.Name == "" {
				return nil, parseError(file, "subject ELEMENT requires NAME")
			}
			if se.Field == "" && se.Value == "" {
				se.Field = se.Name
			}
			if opt := el.attr("OPTIONAL"); opt != "" {
				b, err := strconv.ParseBool(opt)
				if err != nil {
					return nil, parseError(file, "subject element %s: invalid OPTIONAL %q", se.Name, opt)
				}
				se.Optional = b
			}
			out = append(out, se)
		}
	}
	return out, nil
}

// mergeSubject replaces same-named base elements and appends the rest
func mergeSubject(base, override []SubjectElement) []SubjectElement {
	out := slices.Clone(base)
	for _, o := range override {
		idx := slices.IndexFunc(out, func(e SubjectElement) bool { return e.Name == o.Name })
		if idx >= 0 {
			out[idx] = o
		} else {
			out = append(out, o)
		}
	}
	return out
}

// parseFieldList reads field declarations in document order. scope is the
// name prefix of the enclosing arrays, ending in the index placeholder.
func (l *loader) parseFieldList(nodes []xmlNode, file, scope string, header bool) ([]*FieldTemplate, error) {
	var out []*FieldTemplate

	for _, n := range nodes {
		switch n.tag() {
		case "FIELD":
			ft, err := parseField(n, file, scope, header)
			if err != nil {
				return nil, err
			}
			out = append(out, ft)

		case "ARRAY":
			name := strings.ToUpper(n.attr("NAME"))
			size := strings.ToUpper(n.attr("SIZE"))
			if name == "" || size == "" {
				return nil, parseError(file, "ARRAY requires NAME and SIZE")
			}
			mode, err := ParseFieldMode(n.attr("MODE"))
			if err != nil {
				return nil, parseError(file, "array %s: %v", name, err)
			}
			children, err := l.parseFieldList(n.Nodes, file, scope+name+"."+indexPlaceholder+".", header)
			if err != nil {
				return nil, err
			}
			out = append(out, newArrayStart(scope+name, scope+size, mode))
			out = append(out, children...)
			out = append(out, newArrayEnd(scope+name))

		case "CONTAINER":
			name := strings.ToUpper(n.attr("NAME"))
			if name == "" {
				return nil, parseError(file, "CONTAINER requires NAME")
			}
			prefix, ok := n.lookup("PREFIX")
			if !ok {
				prefix = name + "."
			}
			children, err := l.parseFieldList(n.Nodes, file, "", header)
			if err != nil {
				return nil, err
			}
			out = append(out, newContainer(scope+name, scope+strings.ToUpper(prefix), children))

		case "INCLUDE":
			included, err := l.include(n, file, scope, header)
			if err != nil {
				return nil, err
			}
			out = append(out, included...)

		case "SUBJECT", "DESCRIPTION":
			// handled by the caller

		default:
			return nil, parseError(file, "unexpected element %s", n.XMLName.Local)
		}
	}
	return out, nil
}

func (l *loader) include(n xmlNode, file, scope string, header bool) ([]*FieldTemplate, error) {
	ref := n.attr("FILE")
	if ref == "" {
		return nil, parseError(file, "INCLUDE requires FILE")
	}
	target := path.Join(path.Dir(file), ref)
	if l.including[target] {
		return nil, errors.Newf(errors.ErrIncludeCycle, "%s: include of %s forms a cycle", file, target)
	}

	l.including[target] = true
	defer delete(l.including, target)

	root, err := l.readXML(target)
	if err != nil {
		return nil, errors.Newf(errors.ErrSchemaParse, "%s: unresolved include: %v", file, err)
	}
	if root.tag() != "FRAGMENT" {
		return nil, parseError(target, "root element is %s, expected FRAGMENT", root.XMLName.Local)
	}
	return l.parseFieldList(root.Nodes, target, scope, header)
}

func parseField(n xmlNode, file, scope string, header bool) (*FieldTemplate, error) {
	name := strings.ToUpper(n.attr("NAME"))
	if name == "" {
		return nil, parseError(file, "FIELD requires NAME")
	}
	name = scope + name

	mode, err := ParseFieldMode(n.attr("MODE"))
	if err != nil {
		return nil, parseError(file, "field %s: %v", name, err)
	}

	types, err := parseTypes(n.attr("TYPE"))
	if err != nil {
		return nil, parseError(file, "field %s: %v", name, err)
	}

	class := ClassStandard
	switch strings.ToUpper(n.attr("CLASS")) {
	case "", "STANDARD":
	case "HEADER":
		class = ClassHeader
	default:
		return nil, parseError(file, "field %s: unknown CLASS %q", name, n.attr("CLASS"))
	}
	if header {
		class = ClassHeader
	}

	pattern := n.attr("PATTERN")
	if err := checkPattern(pattern); err != nil {
		return nil, parseError(file, "field %s: %v", name, err)
	}

	var kinds []message.Kind
	for _, k := range strings.Fields(n.attr("KIND")) {
		kind, err := message.ParseKind(k)
		if err != nil {
			return nil, parseError(file, "field %s: %v", name, err)
		}
		kinds = append(kinds, kind)
	}

	var (
		values []string
		deps   []*FieldTemplateDependency
	)
	for _, child := range n.Nodes {
		switch child.tag() {
		case "VALUE":
			values = append(values, strings.TrimSpace(child.Text))
		case "DEPENDENCY":
			dep, err := parseDependency(child, file, scope)
			if err != nil {
				return nil, parseError(file, "field %s: %v", name, err)
			}
			deps = append(deps, dep)
		default:
			return nil, parseError(file, "field %s: unexpected element %s", name, child.XMLName.Local)
		}
	}

	return NewFieldTemplate(name,
		WithMode(mode),
		WithClass(class),
		WithTypes(types...),
		WithValues(values...),
		WithPattern(pattern),
		WithDescription(n.attr("DESCRIPTION")),
		WithKinds(kinds...),
		WithDependencies(deps...),
	), nil
}

func parseDependency(n xmlNode, file, scope string) (*FieldTemplateDependency, error) {
	name := n.attr("NAME")
	if name == "" {
		return nil, fmt.Errorf("DEPENDENCY requires NAME")
	}

	var opts []DependencyOption
	if v, ok := n.lookup("EQUALS"); ok {
		opts = append(opts, IfEquals(v))
	}
	if v, ok := n.lookup("GREATER-THAN"); ok {
		opts = append(opts, IfGreaterThan(v))
	}
	if v, ok := n.lookup("LESS-THAN"); ok {
		opts = append(opts, IfLessThan(v))
	}

	if v := n.attr("MODE"); v != "" {
		mode, err := ParseFieldMode(v)
		if err != nil {
			return nil, err
		}
		opts = append(opts, ThenMode(mode))
	}
	if v := n.attr("PATTERN"); v != "" {
		if err := checkPattern(v); err != nil {
			return nil, err
		}
		opts = append(opts, ThenPattern(v))
	}
	if v := n.attr("TYPE"); v != "" {
		types, err := parseTypes(v)
		if err != nil {
			return nil, err
		}
		opts = append(opts, ThenTypes(types...))
	}
	if v := n.attr("RENAME"); v != "" {
		opts = append(opts, ThenRename(scope+v))
	}

	var values []string
	for _, child := range n.Nodes {
		if child.tag() == "VALUE" {
			values = append(values, strings.TrimSpace(child.Text))
		}
	}
	if len(values) > 0 {
		opts = append(opts, ThenValues(values...))
	}

	return NewDependency(scope+name, opts...)
}

func parseTypes(s string) ([]string, error) {
	types := normalizeTypes(strings.Fields(s))
	for _, t := range types {
		if t == TypeVariable {
			continue
		}
		if _, err := message.ParseFieldType(t); err != nil {
			return nil, err
		}
	}
	return types, nil
}

func checkPattern(pattern string) error {
	if pattern == "" {
		return nil
	}
	if _, err := compilePattern(pattern); err != nil {
		return fmt.Errorf("invalid PATTERN %q: %v", pattern, err)
	}
	return nil
}

// patterns caches compiled value patterns; definitions are shared across
// specifications so the cache is process wide.
var patterns = newPatternCache()

func compilePattern(pattern string) (*regexp.Regexp, error) {
	return patterns.get(pattern)
}
