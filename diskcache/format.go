// Package diskcache implements httpqueue.Cache as a size-bounded,
// persistent key→entry store on the filesystem, using the bit-exact binary
// on-disk layout required for cross-implementation compatibility.
package diskcache

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/sandrolain/httpqueue"
)

// magic is the fixed constant every valid cache file begins with.
const magic uint32 = 0x20150306

// absentStringLength is the sentinel 8-byte length prefix for an absent
// (as opposed to empty) string field, per the header-list encoding note
// that distinguishes "null" from "empty" on the legacy write path.
const absentStringLength int64 = -1

// keyToFilename hashes key to the stable 32-bit, hex-encoded file name the
// format mandates. crc32 (IEEE polynomial) is used as the stable hash.
func keyToFilename(key string) string {
	return fmt.Sprintf("%08x", crc32.ChecksumIEEE([]byte(key)))
}

func writeLengthPrefixedString(buf *bytes.Buffer, s string) {
	var length [8]byte
	binary.LittleEndian.PutUint64(length[:], uint64(len(s)))
	buf.Write(length[:])
	buf.WriteString(s)
}

func writeInt64(buf *bytes.Buffer, v int64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	buf.Write(b[:])
}

func writeHeaderList(buf *bytes.Buffer, headers httpqueue.HeaderList) {
	var count [4]byte
	binary.LittleEndian.PutUint32(count[:], uint32(len(headers)))
	buf.Write(count[:])
	for _, h := range headers {
		writeLengthPrefixedString(buf, h.Name)
		writeLengthPrefixedString(buf, h.Value)
	}
}

// encodeEntry serializes key and entry into the on-disk byte layout
// described by spec §6: magic, key, etag, four int64 TTL/date fields,
// header list, then the raw body as the remainder of the file.
func encodeEntry(key string, entry *httpqueue.CacheEntry) []byte {
	buf := &bytes.Buffer{}

	var m [4]byte
	binary.LittleEndian.PutUint32(m[:], magic)
	buf.Write(m[:])

	writeLengthPrefixedString(buf, key)
	writeLengthPrefixedString(buf, entry.ETag)
	writeInt64(buf, entry.ServerDate)
	writeInt64(buf, entry.LastModified)
	writeInt64(buf, entry.TTL)
	writeInt64(buf, entry.SoftTTL)
	writeHeaderList(buf, entry.ResponseHeaders)
	buf.Write(entry.Data)

	return buf.Bytes()
}

// EncodeEntry serializes key and entry using the same bit-exact on-disk
// format diskcache uses for its files. Backends that store raw bytes in an
// external engine (Redis, Memcache, a blob store, ...) can use this to
// adapt httpqueue.Cache over a byte-oriented client without re-deriving the
// wire format.
func EncodeEntry(key string, entry *httpqueue.CacheEntry) []byte {
	return encodeEntry(key, entry)
}

// DecodeEntry parses raw bytes produced by EncodeEntry (or a diskcache
// file), verifying the embedded key matches expectedKey.
func DecodeEntry(expectedKey string, raw []byte) (*httpqueue.CacheEntry, error) {
	return decodeEntry(expectedKey, raw)
}

// corruptFileError indicates the reader should delete the file and treat
// the key as absent from the index: a magic mismatch, short read, or a
// stored key that does not match the requested one.
type corruptFileError struct {
	reason string
}

func (e *corruptFileError) Error() string { return "diskcache: corrupt file: " + e.reason }

func readUint32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := r.Read(b[:]); err != nil {
		return 0, &corruptFileError{"short read (uint32)"}
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readInt64(r *bytes.Reader) (int64, error) {
	var b [8]byte
	n, err := r.Read(b[:])
	if err != nil || n != 8 {
		return 0, &corruptFileError{"short read (int64)"}
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// readLengthPrefixedString reads the 8-byte length prefix and following
// UTF-8 bytes. A sentinel length of -1 (the legacy "null string" encoding)
// and a length of 0 both read back as "".
func readLengthPrefixedString(r *bytes.Reader) (string, error) {
	length, err := readInt64(r)
	if err != nil {
		return "", err
	}
	if length == absentStringLength || length == 0 {
		return "", nil
	}
	if length < 0 {
		return "", &corruptFileError{"negative string length"}
	}
	b := make([]byte, length)
	n, err := r.Read(b)
	if err != nil || int64(n) != length {
		return "", &corruptFileError{"short read (string body)"}
	}
	return string(b), nil
}

// readHeaderList reads the int32 count then that many name/value pairs.
// Both the legacy null-sentinel encoding and the empty-list encoding
// produce an empty, non-nil HeaderList on read-back.
func readHeaderList(r *bytes.Reader) (httpqueue.HeaderList, error) {
	var b [4]byte
	n, err := r.Read(b[:])
	if err != nil || n != 4 {
		return nil, &corruptFileError{"short read (header count)"}
	}
	count := int32(binary.LittleEndian.Uint32(b[:]))
	if count <= 0 {
		return httpqueue.HeaderList{}, nil
	}
	out := make(httpqueue.HeaderList, 0, count)
	for i := int32(0); i < count; i++ {
		name, err := readLengthPrefixedString(r)
		if err != nil {
			return nil, err
		}
		value, err := readLengthPrefixedString(r)
		if err != nil {
			return nil, err
		}
		out = append(out, httpqueue.Header{Name: name, Value: value})
	}
	return out, nil
}

// decodeStoredKey reads just the magic number and embedded cache key from
// raw file bytes, for rebuilding the in-memory index at startup without
// knowing the key in advance.
func decodeStoredKey(raw []byte) (string, error) {
	r := bytes.NewReader(raw)
	got, err := readUint32(r)
	if err != nil {
		return "", err
	}
	if got != magic {
		return "", &corruptFileError{"magic mismatch"}
	}
	return readLengthPrefixedString(r)
}

// decodeEntry parses raw file bytes, verifying the magic number and the
// stored key against expectedKey. Returns a corruptFileError when the
// caller should delete the file.
func decodeEntry(expectedKey string, raw []byte) (*httpqueue.CacheEntry, error) {
	r := bytes.NewReader(raw)

	got, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	if got != magic {
		return nil, &corruptFileError{"magic mismatch"}
	}

	storedKey, err := readLengthPrefixedString(r)
	if err != nil {
		return nil, err
	}
	if storedKey != expectedKey {
		return nil, &corruptFileError{"stored key mismatch"}
	}

	etag, err := readLengthPrefixedString(r)
	if err != nil {
		return nil, err
	}
	serverDate, err := readInt64(r)
	if err != nil {
		return nil, err
	}
	lastModified, err := readInt64(r)
	if err != nil {
		return nil, err
	}
	ttl, err := readInt64(r)
	if err != nil {
		return nil, err
	}
	softTTL, err := readInt64(r)
	if err != nil {
		return nil, err
	}
	headers, err := readHeaderList(r)
	if err != nil {
		return nil, err
	}

	body := make([]byte, r.Len())
	if _, err := r.Read(body); err != nil && r.Len() != 0 {
		return nil, &corruptFileError{"short read (body)"}
	}

	return &httpqueue.CacheEntry{
		Data:            body,
		ETag:            etag,
		ServerDate:      serverDate,
		LastModified:    lastModified,
		TTL:             ttl,
		SoftTTL:         softTTL,
		ResponseHeaders: headers,
	}, nil
}
