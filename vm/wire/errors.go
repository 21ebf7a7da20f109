package wire

// ErrorCode is the fixed, stable-across-versions numbering a device
// reports back to the host in a taskError message (spec §6).
type ErrorCode byte

const (
	NoError                ErrorCode = 0
	UnspecifiedError       ErrorCode = 1
	BadChunkIndexError     ErrorCode = 2
	InsufficientMemory     ErrorCode = 10
	NeedsArrayError        ErrorCode = 11
	NeedsBooleanError      ErrorCode = 12
	NeedsIntegerError      ErrorCode = 13
	NeedsStringError       ErrorCode = 14
	NonComparableError     ErrorCode = 15
	ArraySizeError         ErrorCode = 16
	NeedsIntegerIndexError ErrorCode = 17
	IndexOutOfRangeError   ErrorCode = 18
	ByteArrayStoreError    ErrorCode = 19
	HexRangeError          ErrorCode = 20
	I2CDeviceIDOutOfRange  ErrorCode = 21
	I2CRegisterIDOutOfRange ErrorCode = 22
	I2CValueOutOfRange     ErrorCode = 23
	NotInFunction          ErrorCode = 24
	BadForLoopArg          ErrorCode = 25
	StackOverflow          ErrorCode = 26

	// JoinArgsNotSameType and NeedsIndexable extend the minimum error-code
	// table (spec §6 calls it a minimum set) to cover the join-specific
	// failures spec §4.4 names but doesn't assign a canonical number to.
	JoinArgsNotSameType ErrorCode = 27
	NeedsIndexable      ErrorCode = 28
)

var errorCodeNames = map[ErrorCode]string{
	NoError:                 "noError",
	UnspecifiedError:        "unspecifiedError",
	BadChunkIndexError:      "badChunkIndexError",
	InsufficientMemory:      "insufficientMemoryError",
	NeedsArrayError:         "needsArrayError",
	NeedsBooleanError:       "needsBooleanError",
	NeedsIntegerError:       "needsIntegerError",
	NeedsStringError:        "needsStringError",
	NonComparableError:      "nonComparableError",
	ArraySizeError:          "arraySizeError",
	NeedsIntegerIndexError:  "needsIntegerIndexError",
	IndexOutOfRangeError:    "indexOutOfRangeError",
	ByteArrayStoreError:     "byteArrayStoreError",
	HexRangeError:           "hexRangeError",
	I2CDeviceIDOutOfRange:   "i2cDeviceIDOutOfRange",
	I2CRegisterIDOutOfRange: "i2cRegisterIDOutOfRange",
	I2CValueOutOfRange:      "i2cValueOutOfRange",
	NotInFunction:           "notInFunction",
	BadForLoopArg:           "badForLoopArg",
	StackOverflow:           "stackOverflow",
	JoinArgsNotSameType:     "joinArgsNotSameType",
	NeedsIndexable:          "needsIndexable",
}

func (e ErrorCode) String() string {
	if s, ok := errorCodeNames[e]; ok {
		return s
	}
	return "unknownError"
}

// Error lets ErrorCode satisfy the error interface so primitives can
// `return fail(wire.IndexOutOfRangeError)` the way spec §4.2/§4.4 describe,
// without a second wrapper type.
func (e ErrorCode) Error() string {
	return e.String()
}
