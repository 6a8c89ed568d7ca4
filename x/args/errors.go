package args

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/types/descriptorpb"
)

var (
	// ErrSchemaNotFound reports that the requested message type has no
	// entry in the type registry. The parse aborts with no output.
	ErrSchemaNotFound = errors.New("args: message type not found")

	// ErrMaxNestingExceeded reports that decoding descended deeper than
	// the configured nesting limit. Traces can come from untrusted
	// producers, so recursion is bounded defensively.
	ErrMaxNestingExceeded = errors.New("args: max message nesting exceeded")
)

// UnsupportedFieldTypeError reports a field whose declared scalar type
// has no defined emission.
type UnsupportedFieldTypeError struct {
	Field   string
	Message string
	Type    descriptorpb.FieldDescriptorProto_Type
}

func (e *UnsupportedFieldTypeError) Error() string {
	return fmt.Sprintf("args: field %s of message %s has unsupported type %d",
		e.Field, e.Message, e.Type)
}
