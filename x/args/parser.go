// Package args decodes binary protobuf messages into flat sequences of
// named, typed argument records, driven entirely by a runtime schema
// registry. It is the engine that lets the trace pipeline expose the
// fields of any message type, known only by name at query time, as
// queryable key/value data.
package args

import (
	"fmt"
	"strconv"

	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/tracekit/protoargs/x/schema"
	"github.com/tracekit/protoargs/x/wire"
)

// DefaultMaxNesting bounds recursion depth on adversarial input.
const DefaultMaxNesting = 100

// Parser decodes messages against a TypeRegistry. It holds mutable path
// state across a parse tree and is not safe for concurrent use; use one
// Parser per goroutine or serialize access externally.
type Parser struct {
	registry  TypeRegistry
	overrides map[string]Override

	key     pathBuffer
	flatKey pathBuffer

	maxNesting int
	depth      int
}

// Option configures a Parser.
type Option func(*Parser)

// WithMaxNesting overrides the recursion depth limit.
func WithMaxNesting(n int) Option {
	return func(p *Parser) {
		p.maxNesting = n
	}
}

// New creates a parser over the given type registry.
func New(registry TypeRegistry, opts ...Option) *Parser {
	p := &Parser{
		registry:   registry,
		overrides:  make(map[string]Override),
		key:        newPathBuffer(),
		flatKey:    newPathBuffer(),
		maxNesting: DefaultMaxNesting,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AddOverride registers an override for the field at the exact flat key.
// The last registration for a key wins. Overrides must be registered
// before parsing begins.
func (p *Parser) AddOverride(flatKey string, fn Override) {
	p.overrides[flatKey] = fn
}

// ParseMessage decodes data as a message of the named type, emitting each
// field through delegate. allowedTags restricts which top-level fields
// are decoded; nil means all. Extension fields bypass the allowlist, and
// the allowlist never propagates into nested messages.
//
// Processing is fail-fast: the first fatal error aborts the remainder of
// the parse tree, with no partial-success indication beyond whatever the
// delegate already observed.
func (p *Parser) ParseMessage(data []byte, typeName string, allowedTags []uint32, delegate Delegate) error {
	if p.depth >= p.maxNesting {
		return fmt.Errorf("%w: %d levels", ErrMaxNestingExceeded, p.maxNesting)
	}

	msg, ok := p.registry.FindMessage(typeName)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSchemaNotFound, typeName)
	}

	p.depth++
	defer func() { p.depth-- }()

	// Occurrence counters are scoped to this message frame; sibling and
	// parent frames keep their own.
	repeatedIndex := make(map[uint32]int)

	dec := wire.NewDecoder(data)
	for f, more := dec.Next(); more; f, more = dec.Next() {
		field, known := msg.FindFieldByTag(f.Tag)
		if !known {
			// Unknown field, possibly an unrecognized extension.
			continue
		}

		if !tagAllowed(field, f.Tag, allowedTags) {
			continue
		}

		if err := p.parseField(msg, field, repeatedIndex[f.Tag], f, delegate); err != nil {
			return err
		}
		if field.Repeated {
			repeatedIndex[f.Tag]++
		}
	}

	return dec.Err()
}

// tagAllowed reports whether a field passes the allowlist. Extensions are
// always reflected.
func tagAllowed(field *schema.FieldDescriptor, tag uint32, allowedTags []uint32) bool {
	if field.Extension || allowedTags == nil {
		return true
	}
	for _, t := range allowedTags {
		if t == tag {
			return true
		}
	}
	return false
}

// parseField appends the field's path segment, then hands the field to an
// override, a nested parse, or the scalar dispatch. Both path buffers
// unwind via defer no matter how processing exits.
func (p *Parser) parseField(msg *schema.MessageDescriptor, field *schema.FieldDescriptor, repeatedIndex int, f wire.Field, delegate Delegate) error {
	segment := field.Name
	if field.Repeated {
		segment = field.Name + "[" + strconv.Itoa(repeatedIndex) + "]"
	}

	popKey := p.key.push(segment)
	defer popKey()
	popFlat := p.flatKey.push(field.Name)
	defer popFlat()

	// An override owns the whole field, nested messages included.
	if override, ok := p.overrides[p.flatKey.String()]; ok {
		return override(f, delegate)
	}

	if field.Type == descriptorpb.FieldDescriptorProto_TYPE_MESSAGE {
		return p.ParseMessage(f.AsBytes(), field.ResolvedTypeName, nil, delegate)
	}

	return p.parseSimpleField(msg, field, f, delegate)
}

func (p *Parser) parseSimpleField(msg *schema.MessageDescriptor, field *schema.FieldDescriptor, f wire.Field, delegate Delegate) error {
	switch field.Type {
	case descriptorpb.FieldDescriptorProto_TYPE_INT32,
		descriptorpb.FieldDescriptorProto_TYPE_SFIXED32,
		descriptorpb.FieldDescriptorProto_TYPE_FIXED32:
		delegate.AddInteger(p.snapshot(), int64(f.AsInt32()))
	case descriptorpb.FieldDescriptorProto_TYPE_SINT32:
		delegate.AddInteger(p.snapshot(), int64(f.AsSint32()))
	case descriptorpb.FieldDescriptorProto_TYPE_INT64,
		descriptorpb.FieldDescriptorProto_TYPE_SFIXED64,
		descriptorpb.FieldDescriptorProto_TYPE_FIXED64:
		delegate.AddInteger(p.snapshot(), f.AsInt64())
	case descriptorpb.FieldDescriptorProto_TYPE_SINT64:
		delegate.AddInteger(p.snapshot(), f.AsSint64())
	case descriptorpb.FieldDescriptorProto_TYPE_UINT32:
		delegate.AddUnsignedInteger(p.snapshot(), uint64(f.AsUint32()))
	case descriptorpb.FieldDescriptorProto_TYPE_UINT64:
		delegate.AddUnsignedInteger(p.snapshot(), f.AsUint64())
	case descriptorpb.FieldDescriptorProto_TYPE_BOOL:
		delegate.AddBoolean(p.snapshot(), f.AsBool())
	case descriptorpb.FieldDescriptorProto_TYPE_DOUBLE:
		delegate.AddDouble(p.snapshot(), f.AsDouble())
	case descriptorpb.FieldDescriptorProto_TYPE_FLOAT:
		delegate.AddDouble(p.snapshot(), float64(f.AsFloat()))
	case descriptorpb.FieldDescriptorProto_TYPE_STRING,
		descriptorpb.FieldDescriptorProto_TYPE_BYTES:
		delegate.AddString(p.snapshot(), f.AsString())
	case descriptorpb.FieldDescriptorProto_TYPE_ENUM:
		// A missing enum type and a value with no symbol both fall back
		// to the raw integer; downstream does not distinguish the two.
		value := f.AsInt32()
		name, ok := p.registry.FindEnumName(field.ResolvedTypeName, value)
		if !ok {
			delegate.AddInteger(p.snapshot(), int64(value))
			return nil
		}
		delegate.AddString(p.snapshot(), name)
	default:
		return &UnsupportedFieldTypeError{
			Field:   field.Name,
			Message: msg.Name,
			Type:    field.Type,
		}
	}
	return nil
}

// snapshot captures the current argument path as an immutable Key.
func (p *Parser) snapshot() Key {
	return Key{
		FlatKey: p.flatKey.String(),
		Key:     p.key.String(),
	}
}
