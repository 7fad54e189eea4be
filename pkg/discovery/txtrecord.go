package discovery

import (
	"fmt"
	"strings"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodePeerTXT creates TXT records for peer discovery.
func EncodePeerTXT(info *PeerInfo) TXTRecordMap {
	txt := make(TXTRecordMap)

	// Required fields
	txt[TXTKeyPeerID] = info.PeerID
	txt[TXTKeyVersion] = ProtocolVersion

	// Optional fields
	if len(info.Transports) > 0 {
		txt[TXTKeyTransports] = encodeTransports(info.Transports)
	}
	if info.Name != "" {
		txt[TXTKeyName] = info.Name
	}

	return txt
}

// DecodePeerTXT parses TXT records from peer discovery.
func DecodePeerTXT(txt TXTRecordMap) (*Peer, error) {
	peer := &Peer{}

	// Parse peer ID (required)
	var ok bool
	peer.PeerID, ok = txt[TXTKeyPeerID]
	if !ok || peer.PeerID == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyPeerID)
	}

	// Parse version (required)
	peer.Version, ok = txt[TXTKeyVersion]
	if !ok || peer.Version == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyVersion)
	}

	// Optional fields
	peer.Transports = parseTransports(txt[TXTKeyTransports])
	peer.Name = txt[TXTKeyName]

	return peer, nil
}

// encodeTransports converts transports to a comma-separated string.
func encodeTransports(kinds []TransportKind) string {
	if len(kinds) == 0 {
		return ""
	}

	strs := make([]string, len(kinds))
	for i, k := range kinds {
		strs[i] = string(k)
	}
	return strings.Join(strs, ",")
}

// parseTransports parses a comma-separated transport string.
func parseTransports(s string) []TransportKind {
	if s == "" {
		return nil
	}

	parts := strings.Split(s, ",")
	kinds := make([]TransportKind, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		kinds = append(kinds, TransportKind(p))
	}
	return kinds
}

// TXTRecordsToStrings converts a TXTRecordMap to a slice of "key=value"
// strings, the format mDNS libraries expect.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, fmt.Sprintf("%s=%s", k, v))
	}
	return result
}

// StringsToTXTRecords parses a slice of "key=value" strings into a TXTRecordMap.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		parts := strings.SplitN(s, "=", 2)
		if len(parts) == 2 {
			txt[parts[0]] = parts[1]
		} else if len(parts) == 1 && parts[0] != "" {
			// Key without value (boolean flag)
			txt[parts[0]] = ""
		}
	}
	return txt
}

// ValidateInstanceName checks if an instance name is valid for mDNS.
func ValidateInstanceName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInstanceNameTooLong)
	}
	if len(name) > MaxInstanceNameLen {
		return ErrInstanceNameTooLong
	}
	return nil
}
