// Package dtls implements a DTLS 1.2 endpoint: handshake state machine,
// record-layer framing with retransmission and reassembly, and connection
// multiplexing for UDP-based secure transport.
//
// Certificate validation, PSK lookup, cipher-suite primitives and socket
// binding below the UDP layer are treated as plugged-in services; see
// Config for the interfaces this package consumes from them.
package dtls
