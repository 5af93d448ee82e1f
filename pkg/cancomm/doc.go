// Package cancomm exposes a board's subbus registers over CAN.
package cancomm

// Requests and replies are logical messages of up to MaxTransferLimit
// bytes, carried by one or more classical CAN frames:
//
//   first frame:        [cmd(seq=0), declared_len, payload...]
//   continuation frame: [cmd(seq=n), payload...]
//
// The low 3 bits of the command byte carry the command code, the high
// 5 bits a sequence number incremented for every continuation frame.
//
// A board only handles one exchange at a time. It accumulates a request
// (Reassembler), executes it against the registers (Interpreter) and
// streams the reply back (Transmitter), resuming on the next poll when
// the transport has no room. Protocol failures are reported with ERROR
// replies, transport failures are latched in sticky registers (Reporter).
//
// Producer: board (Engine)
// Consumer: host (Client)
