// Package protocol implements the wire encoding shared with the MCU command
// stream: a VLQ integer/bytes/string codec and the buffer types stepcompress
// uses to stage an outgoing batch before handing it to a transport.
package protocol

// MessageMax bounds a single staged output batch.
const MessageMax = 512
