package mist

import (
	"io/fs"
	"log/slog"
	"os"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/nasa/GMSEC-API-sub012/config"
	"github.com/nasa/GMSEC-API-sub012/errors"
	"github.com/nasa/GMSEC-API-sub012/message"
	"github.com/nasa/GMSEC-API-sub012/metric"
	"github.com/nasa/GMSEC-API-sub012/templates"
)

// Specification holds the message templates of one specification version
// and schema level, and validates messages against them.
//
// Templates are immutable after construction and validation works on a
// resolved view, so a Specification is safe for concurrent use. The
// subject registry and the custom validator slot are guarded by a mutex.
type Specification struct {
	version int
	level   SchemaLevel

	directory *Directory
	templates map[string]*MessageTemplate
	order     []string
	headers   map[string][]*FieldTemplate
	headerID  string
	subject   []SubjectElement

	mu        sync.RWMutex
	registry  map[string]string
	validator MessageValidator

	logger  *slog.Logger
	metrics *metric.Metrics
}

// Option configures a Specification
type Option func(*options)

type options struct {
	logger  *slog.Logger
	metrics *metric.MetricsRegistry
	fsys    fs.FS
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics records validation outcomes in the registry's core metrics
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(o *options) {
		o.metrics = registry
	}
}

// WithFS loads definitions from fsys instead of the configured schema
// path or the embedded templates.
func WithFS(fsys fs.FS) Option {
	return func(o *options) {
		o.fsys = fsys
	}
}

// New loads the specification selected by cfg. A nil cfg selects the
// latest version at level 0 from the embedded templates.
func New(cfg *config.Config, opts ...Option) (*Specification, error) {
	if cfg == nil {
		cfg = config.New()
	}

	o := &options{logger: slog.Default().With("component", "specification")}
	for _, opt := range opts {
		opt(o)
	}

	so, err := cfg.SpecificationOptions()
	if err != nil {
		return nil, errors.WrapInvalid(err, "Specification", "New", "read specification options")
	}

	fsys := o.fsys
	switch {
	case fsys != nil:
	case so.SchemaPath != "":
		fsys = os.DirFS(so.SchemaPath)
	default:
		fsys = templates.FS
	}

	root := config.VersionDirectory(so.Version)
	if _, err := fs.Stat(fsys, path.Join(root, directoryFile)); err != nil {
		return nil, errors.WrapFatal(
			errors.Newf(errors.ErrInvalidConfig, "no templates for specification version %d (%s)", so.Version, root),
			"Specification", "New", "locate template directory")
	}

	level := SchemaLevel(so.SchemaLevel)
	set, err := newLoader(fsys, root, level, o.logger).load()
	if err != nil {
		return nil, errors.WrapFatal(err, "Specification", "New", "load schema definitions")
	}

	s := &Specification{
		version:   so.Version,
		level:     level,
		directory: set.directory,
		templates: set.templates,
		order:     set.order,
		headers:   set.headers,
		headerID:  set.headerID,
		subject:   set.subject,
		registry:  make(map[string]string),
		logger:    o.logger,
	}
	if o.metrics != nil {
		s.metrics = o.metrics.CoreMetrics()
	}

	s.logger.Info("Specification loaded",
		"version", s.version,
		"level", int(s.level),
		"header", s.headerID,
		"schemas", len(s.order))
	return s, nil
}

// Version returns the specification version, e.g. 201900
func (s *Specification) Version() int { return s.version }

// SchemaLevel returns the configured schema level
func (s *Specification) SchemaLevel() SchemaLevel { return s.level }

// Directory returns the schema directory
func (s *Specification) Directory() *Directory { return s.directory.copy() }

// HeaderID returns the ID of the header in effect
func (s *Specification) HeaderID() string { return s.headerID }

// SubjectElements returns the subject definition of the header in effect
func (s *Specification) SubjectElements() []SubjectElement { return slices.Clone(s.subject) }

// SchemaIDs returns a new iterator over the loaded schema IDs in directory
// order. Iterators are independent of each other.
func (s *Specification) SchemaIDs() *SchemaIDIterator {
	return &SchemaIDIterator{ids: slices.Clone(s.order)}
}

func (s *Specification) lookup(schemaID string) (*MessageTemplate, error) {
	id := ResolveSchemaID(s.version, schemaID)
	mt, ok := s.templates[id]
	if !ok {
		return nil, errors.Newf(errors.ErrSchemaNotFound, "schema ID %q is not defined for version %d level %d",
			schemaID, s.version, int(s.level))
	}
	return mt, nil
}

// MessageTemplate returns a copy of the template for schemaID. Aliases
// such as "HB" are resolved first.
func (s *Specification) MessageTemplate(schemaID string) (*MessageTemplate, error) {
	mt, err := s.lookup(schemaID)
	if err != nil {
		return nil, err
	}
	return mt.Copy(), nil
}

// TemplateXML renders a sample message for schemaID under subject
func (s *Specification) TemplateXML(subject, schemaID string) (string, error) {
	mt, err := s.lookup(schemaID)
	if err != nil {
		return "", err
	}
	return mt.ToXML(subject), nil
}

// HeaderFieldTemplates returns copies of the header field templates that
// apply to kind.
func (s *Specification) HeaderFieldTemplates(kind message.Kind) []*FieldTemplate {
	var out []*FieldTemplate
	for _, ft := range s.headers[s.headerID] {
		if ft.AppliesTo(kind) {
			out = append(out, ft.Copy())
		}
	}
	return out
}

// RegisterMessageValidator installs v as the custom validator, replacing
// any previous one.
func (s *Specification) RegisterMessageValidator(v MessageValidator) error {
	if v == nil {
		return errors.WrapInvalid(errors.ErrNullValidator, "Specification", "RegisterMessageValidator", "register validator")
	}
	s.mu.Lock()
	s.validator = v
	s.mu.Unlock()
	return nil
}

// SchemaID returns the schema ID for msg. The first message seen with a
// subject decides the ID for every later message with that subject.
func (s *Specification) SchemaID(msg *message.Message) (string, error) {
	if msg == nil {
		return "", errors.Newf(errors.ErrInvalidData, "message is nil")
	}
	subject := msg.Subject()

	s.mu.RLock()
	id, ok := s.registry[subject]
	s.mu.RUnlock()
	if ok {
		return id, nil
	}

	inferred, err := s.inferSchemaID(msg)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.registry[subject]; ok {
		return id, nil
	}
	s.registry[subject] = inferred
	return inferred, nil
}

// inferSchemaID prefers the message's type fields and falls back to the
// subject tokens starting at the message type.
func (s *Specification) inferSchemaID(msg *message.Message) (string, error) {
	if id := s.schemaIDFromFields(msg); id != "" {
		return id, nil
	}
	if id := s.schemaIDFromSubject(msg.Subject()); id != "" {
		return id, nil
	}
	return "", errors.Newf(errors.ErrSchemaNotFound, "no schema matches message with subject %q", msg.Subject())
}

func (s *Specification) schemaIDFromFields(msg *message.Message) string {
	msgType, err := msg.StringValue("MESSAGE-TYPE")
	if err != nil {
		return ""
	}
	subtype, err := msg.StringValue("MESSAGE-SUBTYPE")
	if err != nil {
		return ""
	}

	parts := []string{strings.ToUpper(msgType), strings.ToUpper(subtype)}
	for {
		next, err := msg.StringValue(parts[len(parts)-1] + "-SUBTYPE")
		if err != nil || next == "" || len(parts) > 8 {
			break
		}
		parts = append(parts, strings.ToUpper(next))
	}

	for n := len(parts); n >= 2; n-- {
		if id := strings.Join(parts[:n], "."); s.templates[id] != nil {
			return id
		}
	}
	return ""
}

func (s *Specification) schemaIDFromSubject(subject string) string {
	tokens := strings.Split(strings.ToUpper(subject), ".")

	start := -1
	if idx := slices.IndexFunc(s.subject, func(e SubjectElement) bool { return e.Field == "MESSAGE-TYPE" }); idx >= 0 && idx < len(tokens) {
		if isKindToken(tokens[idx]) {
			start = idx
		}
	}
	if start < 0 {
		start = slices.IndexFunc(tokens, isKindToken)
	}
	if start < 0 {
		return ""
	}

	for end := len(tokens); end > start; end-- {
		if id := strings.Join(tokens[start:end], "."); s.templates[id] != nil {
			return id
		}
	}
	return ""
}

func isKindToken(t string) bool {
	return t == "MSG" || t == "REQ" || t == "RESP"
}

// Copy returns an independent Specification sharing no mutable state.
// The registry and custom validator are carried over.
func (s *Specification) Copy() *Specification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := &Specification{
		version:   s.version,
		level:     s.level,
		directory: s.directory.copy(),
		templates: make(map[string]*MessageTemplate, len(s.templates)),
		order:     slices.Clone(s.order),
		headers:   make(map[string][]*FieldTemplate, len(s.headers)),
		headerID:  s.headerID,
		subject:   slices.Clone(s.subject),
		registry:  make(map[string]string, len(s.registry)),
		validator: s.validator,
		logger:    s.logger,
		metrics:   s.metrics,
	}
	for id, mt := range s.templates {
		c.templates[id] = mt.Copy()
	}
	for id, fields := range s.headers {
		c.headers[id] = copyTemplates(fields)
	}
	for subject, id := range s.registry {
		c.registry[subject] = id
	}
	return c
}
