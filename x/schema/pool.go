// Package schema holds a runtime registry of protobuf message, field and
// enum metadata, loaded from serialized FileDescriptorSet blobs. Types are
// looked up by fully qualified name at query time; nothing is known at
// build time. The pool does not validate that loaded descriptors are
// well formed.
package schema

import (
	"fmt"
	"os"
	"sync"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
)

// FieldDescriptor describes one field of a message type.
type FieldDescriptor struct {
	Name      string
	Tag       uint32
	Type      descriptorpb.FieldDescriptorProto_Type
	Repeated  bool
	Extension bool

	// ResolvedTypeName is the fully qualified type for message and enum
	// fields, with a leading dot, e.g. ".trace.ThreadDescriptor".
	ResolvedTypeName string
}

// MessageDescriptor describes one message type and its fields, including
// any extension fields whose extendee is this message.
type MessageDescriptor struct {
	Name string

	fieldsByTag map[uint32]*FieldDescriptor
}

// FindFieldByTag resolves a wire tag to a field descriptor.
func (m *MessageDescriptor) FindFieldByTag(tag uint32) (*FieldDescriptor, bool) {
	f, ok := m.fieldsByTag[tag]
	return f, ok
}

// Fields returns the number of known fields, extensions included.
func (m *MessageDescriptor) Fields() int {
	return len(m.fieldsByTag)
}

// EnumDescriptor maps enum values to their symbolic names.
type EnumDescriptor struct {
	Name string

	namesByValue map[int32]string
}

// FindValueName resolves an enum value to its symbol.
func (e *EnumDescriptor) FindValueName(value int32) (string, bool) {
	name, ok := e.namesByValue[value]
	return name, ok
}

// pendingExtension is an extension field seen before its extendee.
type pendingExtension struct {
	extendee string
	field    *FieldDescriptor
}

// Pool is the runtime type registry. Loads and lookups are safe for
// concurrent use; in practice all descriptor sets are loaded before
// decoding starts.
type Pool struct {
	mu       sync.RWMutex
	messages map[string]*MessageDescriptor
	enums    map[string]*EnumDescriptor
	pending  []pendingExtension
}

// NewPool creates an empty descriptor pool.
func NewPool() *Pool {
	return &Pool{
		messages: make(map[string]*MessageDescriptor),
		enums:    make(map[string]*EnumDescriptor),
	}
}

// LoadFileDescriptorSet parses a serialized FileDescriptorSet and merges
// its types into the pool. Later loads may redefine a type; the last
// definition wins.
func (p *Pool) LoadFileDescriptorSet(data []byte) error {
	var fds descriptorpb.FileDescriptorSet
	if err := proto.Unmarshal(data, &fds); err != nil {
		return fmt.Errorf("schema: unmarshal descriptor set: %w", err)
	}
	return p.AddFileDescriptorSet(&fds)
}

// LoadFile reads a serialized FileDescriptorSet from disk and merges it.
func (p *Pool) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("schema: read descriptor set %s: %w", path, err)
	}
	if err := p.LoadFileDescriptorSet(data); err != nil {
		return fmt.Errorf("schema: load %s: %w", path, err)
	}
	return nil
}

// AddFileDescriptorSet merges an in-memory FileDescriptorSet.
func (p *Pool) AddFileDescriptorSet(fds *descriptorpb.FileDescriptorSet) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, file := range fds.GetFile() {
		prefix := "."
		if pkg := file.GetPackage(); pkg != "" {
			prefix = "." + pkg
		}
		for _, msg := range file.GetMessageType() {
			p.addMessage(prefix, msg)
		}
		for _, enum := range file.GetEnumType() {
			p.addEnum(prefix, enum)
		}
		for _, ext := range file.GetExtension() {
			p.deferExtension(ext)
		}
	}

	p.attachPending()
	return nil
}

// addMessage registers a message and all of its nested types under the
// given scope prefix.
func (p *Pool) addMessage(prefix string, msg *descriptorpb.DescriptorProto) {
	name := qualify(prefix, msg.GetName())

	desc := &MessageDescriptor{
		Name:        name,
		fieldsByTag: make(map[uint32]*FieldDescriptor, len(msg.GetField())),
	}
	for _, f := range msg.GetField() {
		fd := newFieldDescriptor(f, false)
		desc.fieldsByTag[fd.Tag] = fd
	}
	p.messages[name] = desc

	for _, nested := range msg.GetNestedType() {
		p.addMessage(name, nested)
	}
	for _, enum := range msg.GetEnumType() {
		p.addEnum(name, enum)
	}
	for _, ext := range msg.GetExtension() {
		p.deferExtension(ext)
	}
}

func (p *Pool) addEnum(prefix string, enum *descriptorpb.EnumDescriptorProto) {
	name := qualify(prefix, enum.GetName())
	desc := &EnumDescriptor{
		Name:         name,
		namesByValue: make(map[int32]string, len(enum.GetValue())),
	}
	for _, v := range enum.GetValue() {
		desc.namesByValue[v.GetNumber()] = v.GetName()
	}
	p.enums[name] = desc
}

// deferExtension queues an extension field for attachment to its
// extendee, which may live in a descriptor set loaded later.
func (p *Pool) deferExtension(ext *descriptorpb.FieldDescriptorProto) {
	p.pending = append(p.pending, pendingExtension{
		extendee: ext.GetExtendee(),
		field:    newFieldDescriptor(ext, true),
	})
}

func (p *Pool) attachPending() {
	remaining := p.pending[:0]
	for _, pe := range p.pending {
		msg, ok := p.messages[pe.extendee]
		if !ok {
			remaining = append(remaining, pe)
			continue
		}
		msg.fieldsByTag[pe.field.Tag] = pe.field
	}
	p.pending = remaining
}

// FindMessage resolves a message type by fully qualified name. Both the
// dotted-prefix form ".pkg.Msg" and the bare form "pkg.Msg" are accepted.
func (p *Pool) FindMessage(name string) (*MessageDescriptor, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	m, ok := p.messages[normalize(name)]
	return m, ok
}

// FindEnum resolves an enum type by fully qualified name.
func (p *Pool) FindEnum(name string) (*EnumDescriptor, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.enums[normalize(name)]
	return e, ok
}

// FindEnumName resolves an enum value of the named enum type to its
// symbol. Returns false when either the type or the value is unknown.
func (p *Pool) FindEnumName(typeName string, value int32) (string, bool) {
	enum, ok := p.FindEnum(typeName)
	if !ok {
		return "", false
	}
	return enum.FindValueName(value)
}

// Messages returns the number of registered message types.
func (p *Pool) Messages() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.messages)
}

func newFieldDescriptor(f *descriptorpb.FieldDescriptorProto, extension bool) *FieldDescriptor {
	return &FieldDescriptor{
		Name:             f.GetName(),
		Tag:              uint32(f.GetNumber()),
		Type:             f.GetType(),
		Repeated:         f.GetLabel() == descriptorpb.FieldDescriptorProto_LABEL_REPEATED,
		Extension:        extension,
		ResolvedTypeName: f.GetTypeName(),
	}
}

func qualify(prefix, name string) string {
	if prefix == "." {
		return "." + name
	}
	return prefix + "." + name
}

func normalize(name string) string {
	if len(name) == 0 || name[0] == '.' {
		return name
	}
	return "." + name
}
