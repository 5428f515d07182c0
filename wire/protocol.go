package wire

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

const (
	// ProtocolVersion is the latest protocol version this package supports.
	ProtocolVersion uint32 = 70015
)

// ServiceFlag identifies services supported by a bitcoin peer.
type ServiceFlag uint64

const (
	// SFNone explicitly advertises that no services are available.  It is
	// the sentinel placed in a ServicesList whose wire mask is zero, which
	// keeps "no services" distinguishable from a list that was never
	// populated.
	SFNone ServiceFlag = 0

	// SFNodeNetwork is a flag used to indicate a peer is a full node.
	SFNodeNetwork ServiceFlag = 1 << 0

	// SFNodeGetUTXO is a flag used to indicate a peer supports the
	// getutxos and utxos commands (BIP0064).
	SFNodeGetUTXO ServiceFlag = 1 << 1

	// SFNodeBloom is a flag used to indicate a peer supports bloom
	// filtering.
	SFNodeBloom ServiceFlag = 1 << 2

	// SFNodeWitness is a flag used to indicate a peer supports blocks and
	// transactions including witness data (BIP0144).
	SFNodeWitness ServiceFlag = 1 << 3

	// SFNodeCF is a flag used to indicate a peer supports committed
	// filters (CFs).
	SFNodeCF ServiceFlag = 1 << 6

	// SFNodeNetworkLimited is a flag used to indicate a peer supports
	// serving the last 288 blocks (BIP0159).
	SFNodeNetworkLimited ServiceFlag = 1 << 10
)

// serviceFlags is the static table of known service bits.  Both the encode
// and decode paths walk this table, so a bit outside of it can neither be
// inserted into a ServicesList nor decoded from a wire mask.
var serviceFlags = []ServiceFlag{
	SFNodeNetwork,
	SFNodeGetUTXO,
	SFNodeBloom,
	SFNodeWitness,
	SFNodeCF,
	SFNodeNetworkLimited,
}

// Map of service flags back to their constant names for pretty printing.
var sfStrings = map[ServiceFlag]string{
	SFNodeNetwork:        "SFNodeNetwork",
	SFNodeGetUTXO:        "SFNodeGetUTXO",
	SFNodeBloom:          "SFNodeBloom",
	SFNodeWitness:        "SFNodeWitness",
	SFNodeCF:             "SFNodeCF",
	SFNodeNetworkLimited: "SFNodeNetworkLimited",
}

// String returns the ServiceFlag in human-readable form.
func (f ServiceFlag) String() string {
	if f == SFNone {
		return "SFNone"
	}
	if s, ok := sfStrings[f]; ok {
		return s
	}
	return fmt.Sprintf("Unknown ServiceFlag (0x%x)", uint64(f))
}

// ServicesList is a set of service flags advertised by a peer.  It is built
// incrementally via AddFlag and encodes to a single 8-byte little-endian
// bitmask on the wire.  The zero mask decodes to a list containing only the
// SFNone sentinel rather than an empty set.
type ServicesList struct {
	flags map[ServiceFlag]struct{}
}

// NewServicesList returns a new, empty ServicesList.
func NewServicesList() *ServicesList {
	return &ServicesList{flags: make(map[ServiceFlag]struct{})}
}

// DefaultServicesList returns a ServicesList advertising no services, which
// is the default used for version messages until the caller opts in to
// specific flags.
func DefaultServicesList() *ServicesList {
	sl := NewServicesList()
	sl.flags[SFNone] = struct{}{}
	return sl
}

// AddFlag inserts the given flag into the list.  Flags outside the known
// service bit table are rejected so a list can never encode a bit the decoder
// would refuse.
func (sl *ServicesList) AddFlag(flag ServiceFlag) error {
	if flag != SFNone {
		known := false
		for _, sf := range serviceFlags {
			if flag == sf {
				known = true
				break
			}
		}
		if !known {
			str := fmt.Sprintf("unknown service flag 0x%x", uint64(flag))
			return messageError("ServicesList.AddFlag", str)
		}
	}
	if sl.flags == nil {
		sl.flags = make(map[ServiceFlag]struct{})
	}
	sl.flags[flag] = struct{}{}
	return nil
}

// HasFlag returns whether the list contains the given flag.
func (sl *ServicesList) HasFlag(flag ServiceFlag) bool {
	_, ok := sl.flags[flag]
	return ok
}

// Flags returns the flags in the list in ascending bit order.
func (sl *ServicesList) Flags() []ServiceFlag {
	flags := make([]ServiceFlag, 0, len(sl.flags))
	for flag := range sl.flags {
		flags = append(flags, flag)
	}
	sort.Slice(flags, func(i, j int) bool { return flags[i] < flags[j] })
	return flags
}

// Mask returns the 8-byte wire bitmask formed by combining every flag in the
// list.  The flags are disjoint bits, so xor and or are equivalent here.
func (sl *ServicesList) Mask() uint64 {
	var mask uint64
	for flag := range sl.flags {
		mask ^= uint64(flag)
	}
	return mask
}

// String returns the ServicesList in human-readable form.
func (sl *ServicesList) String() string {
	flags := sl.Flags()
	s := make([]string, 0, len(flags))
	for _, flag := range flags {
		s = append(s, flag.String())
	}
	if len(s) == 0 {
		return "[]"
	}
	return "[" + strings.Join(s, "|") + "]"
}

// readServicesList reads an 8-byte little-endian service mask from r and
// reconstructs the set of flags it names.  A set bit with no matching entry
// in the service bit table is an error rather than being silently dropped.
func readServicesList(r io.Reader) (*ServicesList, error) {
	mask, err := binarySerializer.Uint64(r, littleEndian)
	if err != nil {
		return nil, err
	}

	sl := NewServicesList()
	if mask == 0 {
		sl.flags[SFNone] = struct{}{}
		return sl, nil
	}
	for _, flag := range serviceFlags {
		if mask&uint64(flag) != 0 {
			sl.flags[flag] = struct{}{}
			mask &^= uint64(flag)
		}
	}
	if mask != 0 {
		str := fmt.Sprintf("service mask has unknown bits set 0x%x", mask)
		return nil, messageError("readServicesList", str)
	}
	return sl, nil
}

// writeServicesList serializes the service mask of sl to w.  A nil list is
// written as the zero mask.
func writeServicesList(w io.Writer, sl *ServicesList) error {
	var mask uint64
	if sl != nil {
		mask = sl.Mask()
	}
	return binarySerializer.PutUint64(w, littleEndian, mask)
}

// BitcoinNet represents which bitcoin network a message belongs to.
type BitcoinNet uint32

// Constants used to indicate the message bitcoin network.
const (
	// MainNet represents the main bitcoin network.
	MainNet BitcoinNet = 0xd9b4bef9

	// TestNet represents the test bitcoin network.
	TestNet BitcoinNet = 0xdab5bffa
)

// bnStrings is a map of bitcoin networks back to their constant names for
// pretty printing.
var bnStrings = map[BitcoinNet]string{
	MainNet: "MainNet",
	TestNet: "TestNet",
}

// String returns the BitcoinNet in human-readable form.
func (n BitcoinNet) String() string {
	if s, ok := bnStrings[n]; ok {
		return s
	}
	return fmt.Sprintf("Unknown BitcoinNet (%d)", uint32(n))
}
