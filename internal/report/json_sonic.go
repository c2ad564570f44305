//go:build sonic

package report

import "github.com/bytedance/sonic"

var (
	jsonMarshal       = sonic.Marshal
	jsonMarshalIndent = sonic.MarshalIndent
	jsonUnmarshal     = sonic.Unmarshal
)
