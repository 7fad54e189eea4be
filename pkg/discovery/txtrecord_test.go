package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodePeerTXT(t *testing.T) {
	info := &PeerInfo{
		PeerID:     "9b2d6c1e-4f0a-4c3b-8d2e-aa51c0ffee00",
		Transports: []TransportKind{TransportUDP, TransportQUIC},
		Name:       "bench-sensor",
	}

	txt := EncodePeerTXT(info)

	assert.Equal(t, info.PeerID, txt[TXTKeyPeerID])
	assert.Equal(t, ProtocolVersion, txt[TXTKeyVersion])
	assert.Equal(t, "udp,quic", txt[TXTKeyTransports])
	assert.Equal(t, "bench-sensor", txt[TXTKeyName])
}

func TestEncodePeerTXTOmitsEmptyOptionals(t *testing.T) {
	txt := EncodePeerTXT(&PeerInfo{PeerID: "p1"})

	_, hasTransports := txt[TXTKeyTransports]
	_, hasName := txt[TXTKeyName]
	assert.False(t, hasTransports)
	assert.False(t, hasName)
}

func TestDecodePeerTXT(t *testing.T) {
	txt := TXTRecordMap{
		TXTKeyPeerID:     "p1",
		TXTKeyVersion:    "1",
		TXTKeyTransports: "udp, quic",
		TXTKeyName:       "garage",
	}

	peer, err := DecodePeerTXT(txt)
	require.NoError(t, err)

	assert.Equal(t, "p1", peer.PeerID)
	assert.Equal(t, "1", peer.Version)
	assert.Equal(t, []TransportKind{TransportUDP, TransportQUIC}, peer.Transports)
	assert.Equal(t, "garage", peer.Name)
}

func TestDecodePeerTXTMissingRequired(t *testing.T) {
	tests := []struct {
		name string
		txt  TXTRecordMap
	}{
		{"NoPeerID", TXTRecordMap{TXTKeyVersion: "1"}},
		{"EmptyPeerID", TXTRecordMap{TXTKeyPeerID: "", TXTKeyVersion: "1"}},
		{"NoVersion", TXTRecordMap{TXTKeyPeerID: "p1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodePeerTXT(tt.txt)
			require.ErrorIs(t, err, ErrMissingRequired)
		})
	}
}

func TestRoundTripTXTStrings(t *testing.T) {
	info := &PeerInfo{
		PeerID:     "p2",
		Transports: []TransportKind{TransportSerial},
	}

	strs := TXTRecordsToStrings(EncodePeerTXT(info))
	peer, err := DecodePeerTXT(StringsToTXTRecords(strs))
	require.NoError(t, err)

	assert.Equal(t, "p2", peer.PeerID)
	assert.Equal(t, []TransportKind{TransportSerial}, peer.Transports)
}

func TestStringsToTXTRecordsFlagKey(t *testing.T) {
	txt := StringsToTXTRecords([]string{"id=p3", "flag"})
	assert.Equal(t, "p3", txt["id"])
	v, ok := txt["flag"]
	assert.True(t, ok)
	assert.Empty(t, v)
}

func TestInstanceName(t *testing.T) {
	assert.Equal(t, "garage", InstanceName(&PeerInfo{PeerID: "p1", Name: "garage"}))
	assert.Equal(t, "corelink-p1", InstanceName(&PeerInfo{PeerID: "p1"}))

	long := &PeerInfo{PeerID: "p1", Name: string(make([]byte, 100))}
	assert.Len(t, InstanceName(long), MaxInstanceNameLen)
}

func TestValidateInstanceName(t *testing.T) {
	require.NoError(t, ValidateInstanceName("corelink-p1"))
	require.Error(t, ValidateInstanceName(""))

	tooLong := make([]byte, MaxInstanceNameLen+1)
	for i := range tooLong {
		tooLong[i] = 'a'
	}
	require.ErrorIs(t, ValidateInstanceName(string(tooLong)), ErrInstanceNameTooLong)
}
