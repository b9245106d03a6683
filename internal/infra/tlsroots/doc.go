// Package tlsroots builds the trust store pixelflut-cli uses for wss://
// and https:// endpoints, whose TLS is terminated in front of the server.
package tlsroots
