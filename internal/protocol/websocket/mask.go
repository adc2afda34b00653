package websocket

// Mask XORs the payload with the key in place. The key is repeated over the payload,
// so masking twice with the same key restores the original bytes. Empty keys
// leave the payload untouched.
func Mask(payload, key []byte) {
	if len(key) == 0 {
		return
	}

	for i := range payload {
		payload[i] ^= key[i%len(key)]
	}
}
