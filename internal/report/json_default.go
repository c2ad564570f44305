//go:build !sonic

package report

import "github.com/goccy/go-json"

var (
	jsonMarshal       = json.Marshal
	jsonMarshalIndent = json.MarshalIndent
	jsonUnmarshal     = json.Unmarshal
)
