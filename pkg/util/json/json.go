// Package json routes encoding through json-iterator while keeping the encoding/json API.
package json

import (
	jsoniter "github.com/json-iterator/go"
)

var api = jsoniter.ConfigCompatibleWithStandardLibrary

var Marshal = api.Marshal
var Unmarshal = api.Unmarshal
var NewDecoder = api.NewDecoder
var NewEncoder = api.NewEncoder
