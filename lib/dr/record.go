package dr

import (
	"encoding/binary"
	"fmt"

	"github.com/Kaychang/ignitecache/lib/cacheentry"
	"github.com/Kaychang/ignitecache/lib/version"
)

// Record is one replicated write, laid out the same way
// dstore/internal.Command is: a fixed-size header followed by the
// variable-length key and value.
type Record struct {
	Type            cacheentry.DRType
	Key             string
	Value           []byte
	TTL             uint64
	ExpireTime      uint64
	TopologyVersion uint64
	ConflictVer     version.Version
}

const recordHeaderSize = 1 + 8 + 8 + 8 + 8 + 8 + 4 + 1 + 4 // Type,TTL,ExpireTime,TopVer,Conflict.TopVer,Conflict.Order,Conflict.NodeOrder,Conflict.DCId,KeyLen

// SizeBytes returns the exact number of bytes Serialize will produce.
func (r *Record) SizeBytes() int {
	return recordHeaderSize + len(r.Key) + len(r.Value)
}

// Serialize encodes r as:
//  1 byte Type,
//  8 bytes TTL, 8 bytes ExpireTime, 8 bytes TopologyVersion,
//  8 bytes ConflictVer.TopologyVersion, 8 bytes ConflictVer.Order,
//  4 bytes ConflictVer.NodeOrder, 1 byte ConflictVer.DataCenterId,
//  4 bytes key length, N bytes key, N bytes value.
func (r *Record) Serialize() []byte {
	buf := make([]byte, r.SizeBytes())

	buf[0] = byte(r.Type)
	binary.BigEndian.PutUint64(buf[1:9], r.TTL)
	binary.BigEndian.PutUint64(buf[9:17], r.ExpireTime)
	binary.BigEndian.PutUint64(buf[17:25], r.TopologyVersion)
	binary.BigEndian.PutUint64(buf[25:33], r.ConflictVer.TopologyVersion)
	binary.BigEndian.PutUint64(buf[33:41], r.ConflictVer.Order)
	binary.BigEndian.PutUint32(buf[41:45], r.ConflictVer.NodeOrder)
	buf[45] = r.ConflictVer.DataCenterId
	binary.BigEndian.PutUint32(buf[46:50], uint32(len(r.Key)))

	copy(buf[50:50+len(r.Key)], r.Key)
	copy(buf[50+len(r.Key):], r.Value)
	return buf
}

// Deserialize extracts every Record field from data.
func (r *Record) Deserialize(data []byte) error {
	if len(data) < recordHeaderSize {
		return fmt.Errorf("dr: record too short: %d bytes", len(data))
	}

	r.Type = cacheentry.DRType(data[0])
	r.TTL = binary.BigEndian.Uint64(data[1:9])
	r.ExpireTime = binary.BigEndian.Uint64(data[9:17])
	r.TopologyVersion = binary.BigEndian.Uint64(data[17:25])
	r.ConflictVer = version.Version{
		TopologyVersion: binary.BigEndian.Uint64(data[25:33]),
		Order:           binary.BigEndian.Uint64(data[33:41]),
		NodeOrder:       binary.BigEndian.Uint32(data[41:45]),
		DataCenterId:    data[45],
	}
	keyLen := binary.BigEndian.Uint32(data[46:50])

	if len(data) < recordHeaderSize+int(keyLen) {
		return fmt.Errorf("dr: record too short for key of length %d", keyLen)
	}
	r.Key = string(data[50 : 50+keyLen])
	if len(data) > recordHeaderSize+int(keyLen) {
		r.Value = data[50+int(keyLen):]
	} else {
		r.Value = nil
	}
	return nil
}
