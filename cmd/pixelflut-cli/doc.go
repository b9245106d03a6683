// Command pixelflut-cli draws on and inspects a pixelflut canvas.
//
// Usage:
//
//	pixelflut-cli size
//	pixelflut-cli -t udp -s localhost:1234 set 10 20 FF8800
//	pixelflut-cli -t ws -s localhost:1235/ rect 0 0 100 50 00FF0080
//	pixelflut-cli -o json state --encoding rgb64
//	pixelflut-cli snapshot inspect --verify pixmap.snapshot
//	pixelflut-cli -m 127.0.0.1:9100 metrics
package main
