package args

import (
	"github.com/tracekit/protoargs/x/schema"
	"github.com/tracekit/protoargs/x/wire"
)

// Key is the argument path of one emitted value. FlatKey uses bare field
// names; Key additionally carries [i] suffixes for repeated fields. Both
// are immutable snapshots taken at the moment of emission.
type Key struct {
	FlatKey string `json:"flat_key"`
	Key     string `json:"key"`
}

// Delegate receives the typed values produced while decoding a message.
// Implementations are expected to be synchronous and must not retain the
// wire field beyond the call.
type Delegate interface {
	AddInteger(key Key, value int64)
	AddUnsignedInteger(key Key, value uint64)
	AddBoolean(key Key, value bool)
	AddDouble(key Key, value float64)
	AddString(key Key, value string)
}

// Override replaces default decoding for the field at one exact flat key.
// A registered override owns the entire field: the parser never recurses
// into a message-typed field that matched an override.
type Override func(field wire.Field, delegate Delegate) error

// TypeRegistry resolves type names to descriptors. *schema.Pool satisfies
// this.
type TypeRegistry interface {
	FindMessage(name string) (*schema.MessageDescriptor, bool)
	FindEnumName(typeName string, value int32) (string, bool)
}
