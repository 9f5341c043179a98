package stepcompress

import "gopper-motion/protocol"

// encodeMessage VLQ-encodes an MCU command as msgID, oid, then each
// argument in order, reusing the teacher's protocol.ScratchOutput/VLQ codec
// (the same wire format used by Klipper/Anchor command streams).
func encodeMessage(msgID, oid uint32, args ...int32) []byte {
	out := protocol.NewScratchOutput()
	protocol.EncodeVLQUint(out, msgID)
	protocol.EncodeVLQUint(out, oid)
	for _, a := range args {
		protocol.EncodeVLQInt(out, a)
	}
	result := out.Result()
	cp := make([]byte, len(result))
	copy(cp, result)
	return cp
}
