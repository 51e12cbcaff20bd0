package btree

import (
	"encoding/binary"

	"github.com/jgodjo/imdbdb/config"
	"github.com/jgodjo/imdbdb/rid"
)

// Page layout (spec §4.3):
//   pageId        4 bytes (int32 BE)
//   isLeaf        1 byte
//   parentPageId  4 bytes (int32 BE, noParent sentinel)
//   keyCount      4 bytes (uint32 BE)
//   -- leaf only --
//   nextLeafPageId 4 bytes (int32 BE, noNextLeaf sentinel)
//   keyCount records of: keyLen(2B) keyBytes ridCount(4B) ridCount*{pageId(4B) slotId(4B)}
//   -- internal only --
//   keyCount records of: keyLen(2B) keyBytes childPageId(4B)
//   one trailing childPageId(4B)
const commonHeaderSize = 4 + 1 + 4 + 4
const leafHeaderSize = commonHeaderSize + 4

// nodeByteSize returns the number of bytes n would occupy if serialized,
// used to decide whether a node must split before it overflows its page
// (spec §4.3 invariants + "truncation must be deterministic").
func nodeByteSize(n *node) int {
	if n.isLeaf {
		size := leafHeaderSize
		for i, k := range n.keys {
			size += 2 + len(k) + 4 + len(n.rids[i])*8
		}
		return size
	}
	size := commonHeaderSize
	for _, k := range n.keys {
		size += 2 + len(k) + 4
	}
	size += 4 // trailing child
	return size
}

// marshal encodes n into a fresh config.PageSize-byte buffer. If n would
// overflow the page, entries are dropped from the end deterministically
// (this should never happen in practice for a node kept under its split
// threshold; see nodeByteSize).
func marshal(n *node) []byte {
	buf := make([]byte, config.PageSize)
	binary.BigEndian.PutUint32(buf[0:4], uint32(int32(n.pageId)))
	if n.isLeaf {
		buf[4] = 1
	} else {
		buf[4] = 0
	}
	binary.BigEndian.PutUint32(buf[5:9], uint32(int32(n.parentId)))

	if n.isLeaf {
		off := leafHeaderSize
		written := 0
		for i, k := range n.keys {
			need := 2 + len(k) + 4 + len(n.rids[i])*8
			if off+need > config.PageSize {
				break
			}
			binary.BigEndian.PutUint16(buf[off:off+2], uint16(len(k)))
			off += 2
			off += copy(buf[off:], k)
			binary.BigEndian.PutUint32(buf[off:off+4], uint32(len(n.rids[i])))
			off += 4
			for _, r := range n.rids[i] {
				binary.BigEndian.PutUint32(buf[off:off+4], uint32(int32(r.PageId)))
				off += 4
				binary.BigEndian.PutUint32(buf[off:off+4], uint32(int32(r.SlotId)))
				off += 4
			}
			written++
		}
		binary.BigEndian.PutUint32(buf[9:13], uint32(written))
		binary.BigEndian.PutUint32(buf[13:17], uint32(int32(n.nextLeaf)))
		return buf
	}

	off := commonHeaderSize
	written := 0
	// reserve room for the trailing child pointer while deciding how many
	// separator/child pairs fit.
	for i, k := range n.keys {
		need := 2 + len(k) + 4
		if off+need+4 > config.PageSize {
			break
		}
		binary.BigEndian.PutUint16(buf[off:off+2], uint16(len(k)))
		off += 2
		off += copy(buf[off:], k)
		binary.BigEndian.PutUint32(buf[off:off+4], uint32(int32(n.children[i])))
		off += 4
		written++
	}
	binary.BigEndian.PutUint32(buf[9:13], uint32(written))
	// trailing child: the child that followed the last written separator.
	binary.BigEndian.PutUint32(buf[off:off+4], uint32(int32(n.children[written])))
	return buf
}

// unmarshal decodes a node from a config.PageSize-byte buffer.
func unmarshal(pageId int, buf []byte) *node {
	parentId := int(int32(binary.BigEndian.Uint32(buf[5:9])))
	isLeaf := buf[4] == 1
	keyCount := int(binary.BigEndian.Uint32(buf[9:13]))

	if isLeaf {
		n := newLeaf(pageId, parentId)
		n.nextLeaf = int(int32(binary.BigEndian.Uint32(buf[13:17])))
		off := leafHeaderSize
		n.keys = make([]string, 0, keyCount)
		n.rids = make([][]rid.RID, 0, keyCount)
		for i := 0; i < keyCount; i++ {
			keyLen := int(binary.BigEndian.Uint16(buf[off : off+2]))
			off += 2
			key := string(buf[off : off+keyLen])
			off += keyLen
			ridCount := int(binary.BigEndian.Uint32(buf[off : off+4]))
			off += 4
			rids := make([]rid.RID, ridCount)
			for j := 0; j < ridCount; j++ {
				pid := int(int32(binary.BigEndian.Uint32(buf[off : off+4])))
				off += 4
				sid := int(int32(binary.BigEndian.Uint32(buf[off : off+4])))
				off += 4
				rids[j] = rid.RID{PageId: pid, SlotId: sid}
			}
			n.keys = append(n.keys, key)
			n.rids = append(n.rids, rids)
		}
		return n
	}

	n := newInternal(pageId, parentId)
	off := commonHeaderSize
	n.keys = make([]string, 0, keyCount)
	n.children = make([]int, 0, keyCount+1)
	for i := 0; i < keyCount; i++ {
		keyLen := int(binary.BigEndian.Uint16(buf[off : off+2]))
		off += 2
		key := string(buf[off : off+keyLen])
		off += keyLen
		child := int(int32(binary.BigEndian.Uint32(buf[off : off+4])))
		off += 4
		n.keys = append(n.keys, key)
		n.children = append(n.children, child)
	}
	trailing := int(int32(binary.BigEndian.Uint32(buf[off : off+4])))
	n.children = append(n.children, trailing)
	return n
}

// looksLikeValidHeader does a cheap sanity check used when probing page 0
// on open to decide whether a pre-existing tree is present (spec §4.3
// "on open, page 0 is probed for a valid header").
func looksLikeValidHeader(buf []byte) bool {
	if len(buf) != config.PageSize {
		return false
	}
	keyCount := int32(binary.BigEndian.Uint32(buf[9:13]))
	return keyCount >= 0 && int(keyCount) <= config.PageSize/2
}
