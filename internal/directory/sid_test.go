package directory

import (
	"encoding/binary"
	"testing"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// binarySID builds the wire representation of a SID: revision, sub-authority
// count, 48-bit big-endian identifier authority, then little-endian
// sub-authorities.
func binarySID(authority byte, subAuthorities ...uint32) []byte {
	buf := []byte{1, byte(len(subAuthorities)), 0, 0, 0, 0, 0, authority}
	for _, sub := range subAuthorities {
		buf = binary.LittleEndian.AppendUint32(buf, sub)
	}
	return buf
}

func TestConvertBinarySIDToString(t *testing.T) {
	handler := NewSIDHandler()

	sid, err := handler.ConvertBinarySIDToString(binarySID(5, 21, 2052111302, 1189352956, 3643004348, 1104))
	require.NoError(t, err)
	assert.Equal(t, "S-1-5-21-2052111302-1189352956-3643004348-1104", sid)
}

func TestConvertBinarySIDToStringWellKnown(t *testing.T) {
	handler := NewSIDHandler()

	sid, err := handler.ConvertBinarySIDToString(binarySID(5, 18))
	require.NoError(t, err)
	assert.Equal(t, "S-1-5-18", sid)
}

func TestConvertBinarySIDToStringEmpty(t *testing.T) {
	handler := NewSIDHandler()

	_, err := handler.ConvertBinarySIDToString(nil)
	assert.Error(t, err)
}

func TestExtractSID(t *testing.T) {
	handler := NewSIDHandler()

	entry := &ldap.Entry{
		DN: "CN=ann,OU=Users,DC=corp,DC=example,DC=org",
		Attributes: []*ldap.EntryAttribute{
			{
				Name:       "objectSid",
				ByteValues: [][]byte{binarySID(5, 21, 1, 2, 3, 1001)},
			},
		},
	}

	sid, err := handler.ExtractSID(entry)
	require.NoError(t, err)
	assert.Equal(t, "S-1-5-21-1-2-3-1001", sid)
}

func TestExtractSIDMissingAttribute(t *testing.T) {
	handler := NewSIDHandler()

	entry := &ldap.Entry{DN: "CN=ann,OU=Users,DC=corp,DC=example,DC=org"}

	_, err := handler.ExtractSID(entry)
	assert.Error(t, err)
}

func TestExtractSIDNilEntry(t *testing.T) {
	handler := NewSIDHandler()

	_, err := handler.ExtractSID(nil)
	assert.Error(t, err)
}

func TestExtractSIDSafe(t *testing.T) {
	handler := NewSIDHandler()

	entry := &ldap.Entry{
		Attributes: []*ldap.EntryAttribute{
			{
				Name:       "objectSid",
				ByteValues: [][]byte{binarySID(5, 21, 1, 2, 3, 1001)},
			},
		},
	}
	assert.Equal(t, "S-1-5-21-1-2-3-1001", handler.ExtractSIDSafe(entry))

	stringEntry := &ldap.Entry{
		Attributes: []*ldap.EntryAttribute{
			{
				Name:   "objectSid",
				Values: []string{"S-1-5-21-4-5-6-2002"},
			},
		},
	}
	assert.Equal(t, "S-1-5-21-4-5-6-2002", handler.ExtractSIDSafe(stringEntry))

	assert.Empty(t, handler.ExtractSIDSafe(nil))
	assert.Empty(t, handler.ExtractSIDSafe(&ldap.Entry{}))
}

func TestValidateSIDString(t *testing.T) {
	handler := NewSIDHandler()

	assert.NoError(t, handler.ValidateSIDString("S-1-5-21-1-2-3-1001"))
	assert.NoError(t, handler.ValidateSIDString("S-1-5-18"))

	assert.Error(t, handler.ValidateSIDString(""))
	assert.Error(t, handler.ValidateSIDString("S-1"))
	assert.Error(t, handler.ValidateSIDString("CN=not-a-sid"))
}

func TestIsWellKnownSID(t *testing.T) {
	handler := NewSIDHandler()

	assert.True(t, handler.IsWellKnownSID("S-1-5-18"))
	assert.True(t, handler.IsWellKnownSID("S-1-5-19"))
	assert.True(t, handler.IsWellKnownSID("S-1-5-20"))
	assert.True(t, handler.IsWellKnownSID("S-1-1-0"))
	assert.True(t, handler.IsWellKnownSID("S-1-3-0"))

	// Domain accounts and SIDs that merely share a textual prefix are not
	// well known.
	assert.False(t, handler.IsWellKnownSID("S-1-5-21-1-2-3-1001"))
	assert.False(t, handler.IsWellKnownSID("S-1-5-200"))
	assert.False(t, handler.IsWellKnownSID("S-1-5-1818"))
}
