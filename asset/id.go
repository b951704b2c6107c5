package asset

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/wippyai/asset-runtime/errors"
)

// AssetID identifies one logical asset: the GUID of its source plus a sub id
// distinguishing products packed in the same source file.
type AssetID struct {
	GUID  uuid.UUID
	SubID uint32
}

// NewAssetID returns an id with a fresh random GUID.
func NewAssetID(subID uint32) AssetID {
	return AssetID{GUID: uuid.New(), SubID: subID}
}

// ParseAssetID parses "{GUID}:subid" (sub id in hex). Braces and the sub id
// are optional, and the GUID may take any form uuid.Parse accepts,
// including "urn:uuid:".
func ParseAssetID(s string) (AssetID, error) {
	s = strings.TrimSpace(s)
	if guid, err := uuid.Parse(s); err == nil {
		return AssetID{GUID: guid}, nil
	}
	i := strings.LastIndexByte(s, ':')
	if i < 0 {
		return AssetID{}, invalidAssetID(s, "malformed guid", nil)
	}
	guid, err := uuid.Parse(s[:i])
	if err != nil {
		return AssetID{}, invalidAssetID(s, "malformed guid", err)
	}
	id := AssetID{GUID: guid}
	if sub := s[i+1:]; sub != "" {
		n, err := strconv.ParseUint(sub, 16, 32)
		if err != nil {
			return AssetID{}, invalidAssetID(s, "malformed sub id", err)
		}
		id.SubID = uint32(n)
	}
	return id, nil
}

func invalidAssetID(s, detail string, cause error) error {
	return errors.New(errors.PhaseLookup, errors.KindInvalidInput).
		Asset(s).
		Cause(cause).
		Detail("asset id: %s", detail).
		Build()
}

// MustParseAssetID is like ParseAssetID but panics on error.
func MustParseAssetID(s string) AssetID {
	id, err := ParseAssetID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// IsValid reports whether the GUID is non-nil.
func (id AssetID) IsValid() bool {
	return id.GUID != uuid.Nil
}

func (id AssetID) String() string {
	return "{" + strings.ToUpper(id.GUID.String()) + "}:" + strconv.FormatUint(uint64(id.SubID), 16)
}

// MarshalText implements encoding.TextMarshaler.
func (id AssetID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *AssetID) UnmarshalText(text []byte) error {
	parsed, err := ParseAssetID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// typeNamespace seeds name-derived type tags.
var typeNamespace = uuid.MustParse("5f1c3a8e-7d2b-4c6e-9a41-0b8e2d7f6c13")

// TypeTag identifies the runtime type an asset's bytes deserialize into.
type TypeTag uuid.UUID

// NewTypeTag derives a stable tag from a type name.
func NewTypeTag(name string) TypeTag {
	return TypeTag(uuid.NewSHA1(typeNamespace, []byte(name)))
}

// ParseTypeTag accepts a GUID, or any other string which is treated as a type name.
func ParseTypeTag(s string) TypeTag {
	s = strings.TrimSpace(s)
	if u, err := uuid.Parse(s); err == nil {
		return TypeTag(u)
	}
	return NewTypeTag(s)
}

// IsZero reports whether the tag is unset.
func (t TypeTag) IsZero() bool {
	return t == TypeTag{}
}

func (t TypeTag) String() string {
	return "{" + strings.ToUpper(uuid.UUID(t).String()) + "}"
}

// MarshalText implements encoding.TextMarshaler.
func (t TypeTag) MarshalText() ([]byte, error) {
	return []byte(uuid.UUID(t).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TypeTag) UnmarshalText(text []byte) error {
	if len(strings.TrimSpace(string(text))) == 0 {
		return errors.InvalidInput(errors.PhaseLookup, "empty type tag")
	}
	*t = ParseTypeTag(string(text))
	return nil
}
