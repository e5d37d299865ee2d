package storage

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
)

// keys: o:<8-byte-id>, t:<8-byte-id>, a:<20-byte-account><20-byte-asset>
const (
	prefixOrder   = "o:"
	prefixTrigger = "t:"
	prefixBalance = "a:"
)

func orderKey(id uint64) []byte {
	return append([]byte(prefixOrder), idKey(id)...)
}

func triggerKey(id uint64) []byte {
	return append([]byte(prefixTrigger), idKey(id)...)
}

func balanceKey(account, asset common.Address) []byte {
	k := append([]byte(prefixBalance), account[:]...)
	return append(k, asset[:]...)
}

func splitBalanceKey(key []byte) (account, asset common.Address, ok bool) {
	if len(key) != len(prefixBalance)+40 {
		return common.Address{}, common.Address{}, false
	}
	copy(account[:], key[len(prefixBalance):len(prefixBalance)+20])
	copy(asset[:], key[len(prefixBalance)+20:])
	return account, asset, true
}

func idKey(id uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], id)
	return k[:]
}

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil // prefix is all 0xff
}
