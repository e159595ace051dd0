// Package discovery locates the facts needed to start a transfer server on
// the local network: a reachable private IPv4 address, a free TCP port, and
// a bounded reachability probe for the receiving side.
//
// Interface selection prefers Wi-Fi over Ethernet over anything else, judged
// by interface name patterns, and only accepts private-range or link-local
// addresses — transfers are strictly local-network.
package discovery
