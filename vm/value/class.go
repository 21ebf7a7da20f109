package value

// Class identifies the shape of a heap object's data words, or stands in
// for "Integer" when classifying an immediate.
type Class uint8

const (
	// ClassInteger is a pseudo-class: classOf on an immediate small integer
	// reports this even though no header word backs it.
	ClassInteger Class = iota
	ClassBoolean
	ClassNil
	ClassList
	ClassString
	// ClassStaticString marks a string object that lives outside the bump
	// arena (radio's receivedString/messageTypeString, see spec §4.5/§9).
	// It decodes identically to ClassString; the distinction is provenance
	// only, not identity, per the design notes.
	ClassStaticString
	ClassByteArray
)

func (c Class) String() string {
	switch c {
	case ClassInteger:
		return "Integer"
	case ClassBoolean:
		return "Boolean"
	case ClassNil:
		return "nil"
	case ClassList:
		return "List"
	case ClassString:
		return "String"
	case ClassStaticString:
		return "StaticString"
	case ClassByteArray:
		return "ByteArray"
	default:
		return "Unknown"
	}
}
