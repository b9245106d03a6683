// Package udpserver serves the pixelflut protocol over UDP.
//
// One reader goroutine receives datagrams and hands each to one of N
// workers. The worker is chosen by the murmur3 hash of the source address,
// so datagrams from one source are applied in arrival order while
// different sources proceed in parallel. When the chosen worker's queue is
// full the datagram is dropped and counted; UDP gives no delivery
// guarantee anyway.
//
// Every datagram is a complete command buffer. Responses, if any, are sent
// back to the source address, split at line boundaries to fit datagrams.
package udpserver
