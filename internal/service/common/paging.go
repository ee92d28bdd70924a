package common

import (
	"encoding/base64"
	"fmt"
)

// EncodePagingState converts a driver paging state to an opaque API token.
func EncodePagingState(state []byte) string {
	if len(state) == 0 {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(state)
}

// DecodePagingState turns an API token back into driver paging state.
func DecodePagingState(token string) ([]byte, error) {
	if token == "" {
		return nil, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("decode paging state: %w", err)
	}
	return data, nil
}
