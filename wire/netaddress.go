package wire

import (
	"io"
	"net"
	"time"
)

// maxNetAddressPayload returns the max payload size for a bitcoin NetAddress
// as it appears in a version message: services 8 bytes + ip 16 bytes + port 2
// bytes.
func maxNetAddressPayload(pver uint32) uint32 {
	return 8 + 16 + 2
}

// maxTimestampedNetAddressPayload returns the max payload size for a network
// address record that carries a timestamp, as used by the addr message.
func maxTimestampedNetAddressPayload(pver uint32) uint32 {
	return 4 + maxNetAddressPayload(pver)
}

// NetAddress defines information about a peer on the network including the
// services it supports, its IP address, and port.  This is the form used in
// the bitcoin version message; address gossip wraps it in a
// TimestampedNetAddress instead.
type NetAddress struct {
	// Bitfield which identifies the services supported by the address.
	Services *ServicesList

	// IP address of the peer.  IPv4 addresses are written to the wire in
	// their 16-byte IPv6-mapped form.
	IP net.IP

	// Port the peer is using.  This is encoded in big endian on the wire
	// which differs from most everything else.
	Port uint16
}

// HasService returns whether the specified service flag is in the services
// list of the address.
func (na *NetAddress) HasService(flag ServiceFlag) bool {
	if na.Services == nil {
		return false
	}
	return na.Services.HasFlag(flag)
}

// AddService adds the given service flag to the services list of the address.
func (na *NetAddress) AddService(flag ServiceFlag) error {
	if na.Services == nil {
		na.Services = NewServicesList()
	}
	return na.Services.AddFlag(flag)
}

// NewNetAddressIPPort returns a new NetAddress using the provided IP, port,
// and services list.
func NewNetAddressIPPort(ip net.IP, port uint16, services *ServicesList) *NetAddress {
	if services == nil {
		services = DefaultServicesList()
	}
	return &NetAddress{
		Services: services,
		IP:       ip,
		Port:     port,
	}
}

// NewNetAddress returns a new NetAddress using the provided TCP address and
// services list.
func NewNetAddress(addr *net.TCPAddr, services *ServicesList) *NetAddress {
	return NewNetAddressIPPort(addr.IP, uint16(addr.Port), services)
}

// TCPAddr returns the address as a *net.TCPAddr for dialing.
func (na *NetAddress) TCPAddr() *net.TCPAddr {
	return &net.TCPAddr{IP: na.IP, Port: int(na.Port)}
}

// TimestampedNetAddress couples a NetAddress with the last time the address
// was seen.  The timestamp is, unfortunately, encoded as a uint32 on the wire
// and therefore is limited to 2106.  Addresses in the version message do not
// carry this field; addresses in the addr message do.
type TimestampedNetAddress struct {
	// Last time the address was seen.
	Timestamp time.Time

	NetAddress
}

// NewTimestampedNetAddress returns a new TimestampedNetAddress pairing the
// given last-seen time with the given address.
func NewTimestampedNetAddress(timestamp time.Time, na *NetAddress) *TimestampedNetAddress {
	// Limit the timestamp to one second precision since the protocol
	// doesn't support better.
	return &TimestampedNetAddress{
		Timestamp:  time.Unix(timestamp.Unix(), 0),
		NetAddress: *na,
	}
}

// readNetAddress reads an encoded untimestamped NetAddress from r.
func readNetAddress(r io.Reader, pver uint32, na *NetAddress) error {
	services, err := readServicesList(r)
	if err != nil {
		return err
	}

	var ip [16]byte
	err = readElement(r, &ip)
	if err != nil {
		return err
	}

	// Sigh.  Bitcoin protocol mixes little and big endian.
	port, err := binarySerializer.Uint16(r, bigEndian)
	if err != nil {
		return err
	}

	*na = NetAddress{
		Services: services,
		IP:       net.IP(ip[:]),
		Port:     port,
	}
	return nil
}

// writeNetAddress serializes an untimestamped NetAddress to w.
func writeNetAddress(w io.Writer, pver uint32, na *NetAddress) error {
	err := writeServicesList(w, na.Services)
	if err != nil {
		return err
	}

	// Ensure to always write 16 bytes even if the IP is nil.
	var ip [16]byte
	if na.IP != nil {
		copy(ip[:], na.IP.To16())
	}
	err = writeElement(w, ip)
	if err != nil {
		return err
	}

	// Sigh.  Bitcoin protocol mixes little and big endian.
	return binarySerializer.PutUint16(w, bigEndian, na.Port)
}

// ReadTimestampedNetAddress reads an encoded TimestampedNetAddress from r:
// a 4-byte unix timestamp followed by the untimestamped address fields.  It
// is exported for callers such as address books that persist gossiped
// addresses in the wire encoding.
func ReadTimestampedNetAddress(r io.Reader, pver uint32, tna *TimestampedNetAddress) error {
	ts, err := binarySerializer.Uint32(r, littleEndian)
	if err != nil {
		return err
	}
	tna.Timestamp = time.Unix(int64(ts), 0)

	return readNetAddress(r, pver, &tna.NetAddress)
}

// WriteTimestampedNetAddress serializes a TimestampedNetAddress to w.
func WriteTimestampedNetAddress(w io.Writer, pver uint32, tna *TimestampedNetAddress) error {
	err := binarySerializer.PutUint32(w, littleEndian, uint32(tna.Timestamp.Unix()))
	if err != nil {
		return err
	}

	return writeNetAddress(w, pver, &tna.NetAddress)
}
