package directory

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/go-objectsid"
	"github.com/go-ldap/ldap/v3"
)

// SIDHandler converts Active Directory security identifiers between their
// binary wire format and the S-1-5-... string form used as canonical ids.
type SIDHandler struct{}

// NewSIDHandler creates a new SID handler instance.
func NewSIDHandler() *SIDHandler {
	return &SIDHandler{}
}

// ConvertBinarySIDToString converts a binary SID to its string representation.
func (s *SIDHandler) ConvertBinarySIDToString(binarySID []byte) (string, error) {
	if len(binarySID) == 0 {
		return "", fmt.Errorf("binary SID cannot be empty")
	}

	sid := objectsid.Decode(binarySID)

	return sid.String(), nil
}

// ExtractSID extracts the objectSid from an LDAP entry and returns it as a string.
func (s *SIDHandler) ExtractSID(entry *ldap.Entry) (string, error) {
	if entry == nil {
		return "", fmt.Errorf("LDAP entry cannot be nil")
	}

	sidBytes := entry.GetRawAttributeValue("objectSid")
	if len(sidBytes) == 0 {
		return "", fmt.Errorf("objectSid attribute not found in entry")
	}

	return s.ConvertBinarySIDToString(sidBytes)
}

// ExtractSIDSafe extracts the objectSid from an LDAP entry, returning an empty
// string when the attribute is absent or malformed. Binary attribute data takes
// precedence; a string value is accepted as a fallback (used by tests).
func (s *SIDHandler) ExtractSIDSafe(entry *ldap.Entry) string {
	if entry == nil {
		return ""
	}

	sidBytes := entry.GetRawAttributeValue("objectSid")
	if len(sidBytes) > 0 {
		sid, err := s.ConvertBinarySIDToString(sidBytes)
		if err != nil {
			return ""
		}
		return sid
	}

	sidString := entry.GetAttributeValue("objectSid")
	if sidString != "" && s.ValidateSIDString(sidString) == nil {
		return sidString
	}

	return ""
}

// ValidateSIDString validates that a string is a properly formatted SID.
func (s *SIDHandler) ValidateSIDString(sidString string) error {
	if sidString == "" {
		return fmt.Errorf("SID string cannot be empty")
	}

	if len(sidString) < 5 || sidString[:2] != "S-" {
		return fmt.Errorf("invalid SID format: must start with 'S-'")
	}

	return nil
}

// IsWellKnownSID checks if the SID identifies a built-in or service principal
// rather than a real-world account.
func (s *SIDHandler) IsWellKnownSID(sidString string) bool {
	wellKnownPrefixes := []string{
		"S-1-0",    // Null Authority
		"S-1-1",    // World Authority
		"S-1-2",    // Local Authority
		"S-1-3",    // Creator Authority
		"S-1-4",    // Non-unique Authority
		"S-1-5-18", // Local System
		"S-1-5-19", // Local Service
		"S-1-5-20", // Network Service
	}

	for _, prefix := range wellKnownPrefixes {
		if sidString == prefix || strings.HasPrefix(sidString, prefix+"-") {
			return true
		}
	}

	return false
}
