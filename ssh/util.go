package ssh

import "encoding/base64"

func decodeBase64Key(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

func encodeBase64Key(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
