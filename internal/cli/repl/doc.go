// Package repl implements the interactive protocol shell of pixelflut-cli.
//
// Each line typed is sent to the server as one protocol command and any
// reply is printed. A few words are handled locally: history, exit and
// quit. History is kept across runs in a plain text file.
package repl
